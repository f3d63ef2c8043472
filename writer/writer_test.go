package writer

import (
	"context"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/building"
	"github.com/b2gm/lodmap/element"
	"github.com/b2gm/lodmap/geom"
	"github.com/b2gm/lodmap/geom/fgb"
	"github.com/b2gm/lodmap/mapping"
)

func square(x, y, size float64) orb.Ring {
	return orb.Ring{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}
}

func feature(t *testing.T, index int, attrs *element.Attributes, rings ...orb.Ring) *building.Feature3D {
	t.Helper()
	f := &building.Feature3D{
		Index:              index,
		Attributes:         attrs,
		GroundStoreys:      2,
		UndergroundStoreys: 1,
		BuildingHeight:     9,
		UndergroundHeight:  3,
	}
	for _, r := range rings {
		s, err := geom.Extrude(r, 9)
		if err != nil {
			t.Fatal(err)
		}
		f.Solids = append(f.Solids, s.Translate(0, 0, -3))
		f.Footprints = append(f.Footprints, r)
	}
	return f
}

func attrs(kv ...interface{}) *element.Attributes {
	a := element.NewAttributes()
	for i := 0; i < len(kv); i += 2 {
		a.Set(kv[i].(string), element.ValueOf(kv[i+1]))
	}
	return a
}

func testFeatures(t *testing.T) []*building.Feature3D {
	return []*building.Feature3D{
		feature(t, 0, attrs("name", "tower", "GRND_FLR", 2), square(0, 0, 10), square(20, 0, 5)),
		feature(t, 2, attrs("GRND_FLR", 3, "use", "shop, office"), square(40, 0, 10)),
		feature(t, 5, attrs("name", nil, "flag", true), square(60, 0, 10)),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestMeshIndices(t *testing.T) {
	idx := MeshIndices(testFeatures(t))
	if !reflect.DeepEqual(idx, []int{1, 3, 4}) {
		t.Fatal(idx)
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "batch")
	s, err := Write(context.Background(), testFeatures(t), dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Features != 3 || s.Solids != 4 || len(s.Files) != 5 {
		t.Fatal(s)
	}
	want := []string{"building_1.obj", "building_2.obj", "building_3.obj", "building_4.obj", "building_properties.csv"}
	if got := listDir(t, dir); !reflect.DeepEqual(got, want) {
		t.Fatal(got)
	}

	csv := readFile(t, filepath.Join(dir, PropertiesFile))
	wantCSV := "ID,name,GRND_FLR,use,flag\n" +
		"0,tower,2,,\n" +
		"1,,3,\"shop, office\",\n" +
		"2,,,,true\n"
	if csv != wantCSV {
		t.Errorf("%q", csv)
	}

	obj := readFile(t, filepath.Join(dir, "building_2.obj"))
	lines := strings.Split(strings.TrimSpace(obj), "\n")
	var vertices, faces int
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "v "):
			vertices++
		case strings.HasPrefix(l, "f "):
			faces++
		}
	}
	if vertices != 8 || faces != 6 {
		t.Error(vertices, faces)
	}
	if !strings.Contains(obj, "o building_2\n") || !strings.Contains(obj, "v 20 0 -3\n") || !strings.Contains(obj, "f 4 3 2 1\n") {
		t.Error(obj)
	}
	if strings.Contains(obj, "usemtl") {
		t.Error(obj)
	}
}

func TestWritePLY(t *testing.T) {
	dir := t.TempDir()
	if _, err := Write(context.Background(), testFeatures(t)[:1], dir, Options{Format: mapping.PLY}); err != nil {
		t.Fatal(err)
	}
	ply := readFile(t, filepath.Join(dir, "building_1.ply"))
	for _, part := range []string{"ply\nformat ascii 1.0\n", "element vertex 8\n", "element face 6\n",
		"property list uchar int vertex_indices\nend_header\n0 0 -3\n", "\n4 3 2 1 0\n"} {
		if !strings.Contains(ply, part) {
			t.Errorf("%q not in %q", part, ply)
		}
	}
}

func TestWriteOverwrite(t *testing.T) {
	dir := t.TempDir()
	features := testFeatures(t)
	if _, err := Write(context.Background(), features, dir, Options{}); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(dir, "notes.txt")
	if err := ioutil.WriteFile(other, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Write(context.Background(), features[:1], dir, Options{})
	if errors.Cause(err) != ErrArtifactsExist {
		t.Fatal(err)
	}

	s, err := Write(context.Background(), features[:1], dir, Options{Overwrite: true})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Removed, []string{"building_3.obj", "building_4.obj"}) {
		t.Error(s.Removed)
	}
	want := []string{"building_1.obj", "building_2.obj", "building_properties.csv", "notes.txt"}
	if got := listDir(t, dir); !reflect.DeepEqual(got, want) {
		t.Fatal(got)
	}
}

func TestWriteRollback(t *testing.T) {
	dir := t.TempDir()
	features := testFeatures(t)
	if _, err := Write(context.Background(), features[:1], dir, Options{}); err != nil {
		t.Fatal(err)
	}
	before := readFile(t, filepath.Join(dir, PropertiesFile))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Write(ctx, features, dir, Options{Overwrite: true, Format: mapping.PLY}); errors.Cause(err) != context.Canceled {
		t.Fatal(err)
	}
	want := []string{"building_1.obj", "building_2.obj", "building_properties.csv"}
	if got := listDir(t, dir); !reflect.DeepEqual(got, want) {
		t.Fatal(got)
	}
	if after := readFile(t, filepath.Join(dir, PropertiesFile)); after != before {
		t.Error(after)
	}
}

func TestWriteKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"building_survey_notes.txt", "building_7.obj.orig", "building_x.obj"} {
		if err := ioutil.WriteFile(filepath.Join(dir, name), []byte("keep"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	features := testFeatures(t)

	// foreign files are no artifacts of a previous run
	if _, err := Write(context.Background(), features, dir, Options{}); err != nil {
		t.Fatal(err)
	}
	s, err := Write(context.Background(), features[:1], dir, Options{Overwrite: true})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Removed, []string{"building_3.obj", "building_4.obj"}) {
		t.Error(s.Removed)
	}
	want := []string{"building_1.obj", "building_2.obj", "building_7.obj.orig", "building_properties.csv",
		"building_survey_notes.txt", "building_x.obj"}
	if got := listDir(t, dir); !reflect.DeepEqual(got, want) {
		t.Fatal(got)
	}
	if !isArtifact(CityGMLFile) || !isArtifact(FootprintsFile) || !isArtifact(MaterialsFile) || !isArtifact("building_12.ply") {
		t.Error("known artifact not recognized")
	}
}

func TestWriteCommitRestoresPrevious(t *testing.T) {
	dir := t.TempDir()
	features := testFeatures(t)
	if _, err := Write(context.Background(), features[1:], dir, Options{}); err != nil {
		t.Fatal(err)
	}
	before := map[string]string{}
	for _, name := range []string{"building_1.obj", "building_2.obj", PropertiesFile} {
		before[name] = readFile(t, filepath.Join(dir, name))
	}
	// blocks the third mesh after the first two were replaced
	if err := os.MkdirAll(filepath.Join(dir, "building_3.obj", "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := Write(context.Background(), features, dir, Options{Overwrite: true}); err == nil {
		t.Fatal("expected error")
	}
	want := []string{"building_1.obj", "building_2.obj", "building_3.obj", "building_properties.csv"}
	if got := listDir(t, dir); !reflect.DeepEqual(got, want) {
		t.Fatal(got)
	}
	for name, content := range before {
		if got := readFile(t, filepath.Join(dir, name)); got != content {
			t.Errorf("%s changed: %q", name, got)
		}
	}
}

func TestWriteMaterials(t *testing.T) {
	if _, err := Write(context.Background(), testFeatures(t), t.TempDir(), Options{Materials: true}); err == nil {
		t.Fatal("expected error without colour source")
	}

	write := func() string {
		dir := t.TempDir()
		_, err := Write(context.Background(), testFeatures(t), dir, Options{Materials: true, Rand: rand.New(rand.NewSource(42))})
		if err != nil {
			t.Fatal(err)
		}
		obj := readFile(t, filepath.Join(dir, "building_4.obj"))
		if !strings.Contains(obj, "mtllib buildings.mtl\n") || !strings.Contains(obj, "usemtl feature_2\n") {
			t.Error(obj)
		}
		return readFile(t, filepath.Join(dir, MaterialsFile))
	}
	mtl := write()
	if mtl != write() {
		t.Error("materials differ for the same seed")
	}
	if strings.Count(mtl, "newmtl ") != 3 {
		t.Error(mtl)
	}

	for _, c := range materialColours(rand.New(rand.NewSource(1)), 100) {
		if c[0] < 0.3 || c[0] >= 1 || c[1] < 0.3 || c[1] >= 1 || c[2] < 0.2 || c[2] >= 0.3 {
			t.Fatal(c)
		}
	}
}

func TestWriteCityGML(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(context.Background(), testFeatures(t), dir, Options{CityGML: true, SRSName: "EPSG:32652"})
	if err != nil {
		t.Fatal(err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(filepath.Join(dir, CityGMLFile)); err != nil {
		t.Fatal(err)
	}
	buildings := doc.FindElements("//bldg:Building")
	if len(buildings) != 4 {
		t.Fatal(len(buildings))
	}
	b := buildings[1]
	if id := b.SelectAttrValue("gml:id", ""); id != "building_2" {
		t.Error(id)
	}
	if h := b.SelectElement("bldg:measuredHeight"); h == nil || h.Text() != "9" {
		t.Error(h)
	}
	if s := b.SelectElement("bldg:storeysBelowGround"); s == nil || s.Text() != "1" {
		t.Error(s)
	}
	if polys := b.FindElements(".//gml:Polygon"); len(polys) != 6 {
		t.Error(len(polys))
	}
	pos := b.FindElement(".//gml:posList")
	if pos == nil || len(strings.Fields(pos.Text())) != 15 {
		t.Error(pos)
	}
	env := doc.FindElement("//gml:Envelope")
	if env == nil || env.SelectAttrValue("srsName", "") != "EPSG:32652" {
		t.Fatal(env)
	}
	if lc := env.SelectElement("gml:lowerCorner"); lc.Text() != "0 0 -3" {
		t.Error(lc.Text())
	}
}

func TestWriteFootprints(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(context.Background(), testFeatures(t), dir, Options{Footprints: true, FootprintEPSG: 4326})
	if err != nil {
		t.Fatal(err)
	}
	r, err := fgb.Open(filepath.Join(dir, FootprintsFile))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Count() != 4 {
		t.Fatal(r.Count())
	}
	var names []string
	for _, c := range r.Columns() {
		names = append(names, c.Name)
	}
	want := []string{"name", "GRND_FLR", "building_id", "building_height", "underground_height", "use", "flag"}
	if !reflect.DeepEqual(names, want) {
		t.Fatal(names)
	}
	features, err := r.Features()
	if err != nil {
		t.Fatal(err)
	}
	ids := map[float64]bool{}
	for _, f := range features {
		v, _ := f.Attributes.Get("building_id")
		ids[v.Num] = true
		if h, _ := f.Attributes.Get("building_height"); h.Num != 9 {
			t.Error(h)
		}
	}
	if len(ids) != 4 {
		t.Error(ids)
	}
}

func TestWriteEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Write(context.Background(), nil, dir, Options{Footprints: true, CityGML: true})
	if err != nil {
		t.Fatal(err)
	}
	if s.Solids != 0 || !reflect.DeepEqual(listDir(t, dir), []string{"building_lod1.gml", "building_properties.csv"}) {
		t.Fatal(s, listDir(t, dir))
	}
	if csv := readFile(t, filepath.Join(dir, PropertiesFile)); csv != "ID\n" {
		t.Error(csv)
	}
	if _, err := os.Stat(filepath.Join(dir, FootprintsFile)); !os.IsNotExist(err) {
		t.Error(err)
	}
}
