package reader

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	osm "github.com/omniscale/go-osm"
	"github.com/paulmach/orb"

	"github.com/b2gm/lodmap/element"
	"github.com/b2gm/lodmap/geom/fgb"
)

func TestDetectFormat(t *testing.T) {
	for _, tc := range []struct {
		path string
		want Format
	}{
		{"a/b/buildings.geojson", GeoJSON},
		{"buildings.JSON", GeoJSON},
		{"buildings.shp", Shapefile},
		{"buildings.fgb", FlatGeobuf},
		{"seoul.osm.pbf", OSM},
		{"seoul.pbf", OSM},
	} {
		f, err := DetectFormat(tc.path)
		if err != nil || f != tc.want {
			t.Errorf("%s: %v %v", tc.path, f, err)
		}
	}
	for _, p := range []string{"buildings", "buildings.gpkg"} {
		if _, err := DetectFormat(p); err == nil {
			t.Errorf("expected error for %s", p)
		}
	}
	if _, err := ParseFormat("kml"); err == nil {
		t.Error("expected error for kml")
	}
}

const collection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 7,
     "geometry": {"type": "Polygon", "coordinates": [[[127.0, 37.5], [127.001, 37.5], [127.001, 37.501], [127.0, 37.5]]]},
     "properties": {"zeta": "first", "GRND_FLR": 3, "UGRND_FLR": 1, "alpha": true, "nested": {"a": 1}, "empty": null}},
    {"type": "Feature",
     "geometry": {"type": "MultiPolygon", "coordinates": [
        [[[127.0, 37.5], [127.001, 37.5], [127.001, 37.501], [127.0, 37.5]]],
        [[[127.01, 37.5], [127.011, 37.5], [127.011, 37.501], [127.01, 37.5]]]]},
     "properties": {"GRND_FLR": 2}},
    {"type": "Feature", "geometry": null, "properties": null},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {}}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readAll(t *testing.T, path string, format Format) []element.Feature {
	t.Helper()
	src, err := Open(path, format)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	features, err := ReadAll(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	return features
}

func TestGeoJSON(t *testing.T) {
	features := readAll(t, writeFile(t, "b.geojson", collection), "")
	if len(features) != 4 {
		t.Fatalf("%d features", len(features))
	}

	f := features[0]
	if f.Index != 0 || f.ID != "7" {
		t.Error(f.Index, f.ID)
	}
	keys := f.Attributes.Keys()
	want := []string{"zeta", "GRND_FLR", "UGRND_FLR", "alpha", "nested", "empty"}
	if len(keys) != len(want) {
		t.Fatal(keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key order %v", keys)
		}
	}
	if v, _ := f.Attributes.Get("GRND_FLR"); v.Kind != element.Number || v.Num != 3 {
		t.Error(v)
	}
	if v, _ := f.Attributes.Get("alpha"); v.Kind != element.Bool || !v.Bool {
		t.Error(v)
	}
	if v, _ := f.Attributes.Get("nested"); v.Str != `{"a":1}` {
		t.Error(v)
	}
	if v, _ := f.Attributes.Get("empty"); v.Kind != element.Null {
		t.Error(v)
	}
	if _, ok := f.Geometry.(orb.Polygon); !ok {
		t.Errorf("%T", f.Geometry)
	}

	if mp, ok := features[1].Geometry.(orb.MultiPolygon); !ok || len(mp) != 2 {
		t.Errorf("%#v", features[1].Geometry)
	}
	if features[2].Geometry != nil || features[2].Attributes.Len() != 0 {
		t.Error(features[2])
	}
	if _, ok := features[3].Geometry.(orb.Point); !ok || features[3].Index != 3 {
		t.Error(features[3])
	}
}

func TestGeoJSONSingleFeature(t *testing.T) {
	path := writeFile(t, "f.json", `{"type": "Feature", "geometry": null, "properties": {"b": 1, "a": 2}}`)
	features := readAll(t, path, GeoJSON)
	if len(features) != 1 || features[0].Attributes.Keys()[0] != "b" {
		t.Fatal(features)
	}
}

func TestGeoJSONInvalid(t *testing.T) {
	for _, content := range []string{
		`{"type": "Point", "coordinates": [1, 2]}`,
		`{"type": "FeatureCollection", "features": [{"type": "Feature", "geometry": {"type": "Circle"}}]}`,
		`{"type": "FeatureCollection", "features": [{"type": "Feature", "geometry": null, "properties": [1]}]}`,
		`not json`,
	} {
		src, err := Open(writeFile(t, "x.geojson", content), "")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := ReadAll(context.Background(), src); err == nil {
			t.Errorf("expected error for %s", content)
		}
	}
}

func TestGeoJSONCancel(t *testing.T) {
	src, err := Open(writeFile(t, "b.geojson", collection), "")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadAll(ctx, src); err != context.Canceled {
		t.Fatal(err)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.geojson"), ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildings.shp")
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.SetFields([]shp.Field{
		shp.StringField("NAME", 20),
		shp.NumberField("GRND_FLR", 5),
		shp.FloatField("HEIGHT", 8, 2),
	}); err != nil {
		t.Fatal(err)
	}
	// clockwise outer ring with a counter-clockwise hole, then a second outer ring
	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}
	second := []shp.Point{{X: 20, Y: 0}, {X: 20, Y: 5}, {X: 25, Y: 5}, {X: 25, Y: 0}, {X: 20, Y: 0}}
	multi := shp.Polygon(*shp.NewPolyLine([][]shp.Point{outer, hole, second}))
	single := shp.Polygon(*shp.NewPolyLine([][]shp.Point{outer}))

	row := int(w.Write(&multi))
	w.WriteAttribute(row, 0, "Tower")
	w.WriteAttribute(row, 1, 12)
	w.WriteAttribute(row, 2, 40.5)
	row = int(w.Write(&single))
	w.WriteAttribute(row, 0, "Annex")
	w.WriteAttribute(row, 1, 2)
	w.Close()

	features := readAll(t, path, "")
	if len(features) != 2 {
		t.Fatalf("%d features", len(features))
	}
	keys := features[0].Attributes.Keys()
	if len(keys) != 3 || keys[0] != "NAME" || keys[1] != "GRND_FLR" || keys[2] != "HEIGHT" {
		t.Fatal(keys)
	}
	if v, _ := features[0].Attributes.Get("NAME"); v.Str != "Tower" {
		t.Error(v)
	}
	if v, _ := features[0].Attributes.Get("GRND_FLR"); v.Kind != element.Number || v.Num != 12 {
		t.Error(v)
	}
	if v, _ := features[0].Attributes.Get("HEIGHT"); v.Num != 40.5 {
		t.Error(v)
	}
	if v, _ := features[1].Attributes.Get("HEIGHT"); v.Kind != element.Null {
		t.Error(v)
	}

	mp, ok := features[0].Geometry.(orb.MultiPolygon)
	if !ok || len(mp) != 2 || len(mp[0]) != 2 || len(mp[1]) != 1 {
		t.Fatalf("%#v", features[0].Geometry)
	}
	if _, ok := features[1].Geometry.(orb.Polygon); !ok {
		t.Fatalf("%T", features[1].Geometry)
	}
	if features[1].Index != 1 || features[1].ID != "2" {
		t.Error(features[1].Index, features[1].ID)
	}
}

func TestDBFValue(t *testing.T) {
	if v := dbfValue('L', "T"); v.Kind != element.Bool || !v.Bool {
		t.Error(v)
	}
	if v := dbfValue('L', "?"); v.Kind != element.Null {
		t.Error(v)
	}
	if v := dbfValue('N', " 3 "); v.Num != 3 {
		t.Error(v)
	}
	if v := dbfValue('N', "abc"); v.Kind != element.String {
		t.Error(v)
	}
	if v := dbfValue('D', "20240101"); v.Str != "20240101" {
		t.Error(v)
	}
}

func TestFlatGeobuf(t *testing.T) {
	attrs := element.NewAttributes()
	attrs.Set("GRND_FLR", element.NumberValue(4))
	attrs.Set("name", element.StringValue("hall"))
	features := []fgb.Feature{{
		Geometry:   orb.Polygon{{{127.0, 37.5}, {127.001, 37.5}, {127.001, 37.501}, {127.0, 37.5}}},
		Attributes: attrs,
	}}
	path := filepath.Join(t.TempDir(), "b.fgb")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := fgb.Write(f, fgb.Layer{Name: "b", Columns: fgb.InferColumns(features)}, features); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got := readAll(t, path, "")
	if len(got) != 1 {
		t.Fatal(got)
	}
	keys := got[0].Attributes.Keys()
	if len(keys) != 2 || keys[0] != "GRND_FLR" || keys[1] != "name" {
		t.Fatal(keys)
	}
	if _, ok := got[0].Geometry.(orb.Polygon); !ok {
		t.Fatalf("%T", got[0].Geometry)
	}
}

func TestOSMWayPolygon(t *testing.T) {
	points := map[int64]orb.Point{1: {0, 0}, 2: {1, 0}, 3: {1, 1}}
	closed := osm.Way{Refs: []int64{1, 2, 3, 1}}
	poly, ok := wayPolygon(&closed, points).(orb.Polygon)
	if !ok || len(poly[0]) != 4 || poly[0][2] != (orb.Point{1, 1}) {
		t.Fatal(poly)
	}
	open := osm.Way{Refs: []int64{1, 2, 3}}
	if g := wayPolygon(&open, points); g != nil {
		t.Fatal(g)
	}
	missing := osm.Way{Refs: []int64{1, 2, 4, 1}}
	if g := wayPolygon(&missing, points); g != nil {
		t.Fatal(g)
	}
}

func TestOSMTags(t *testing.T) {
	attrs := tagAttributes(osm.Tags{"name": "x", "building:levels": "5", "building": "yes"})
	keys := attrs.Keys()
	if len(keys) != 3 || keys[0] != "building" || keys[1] != "building:levels" || keys[2] != "name" {
		t.Fatal(keys)
	}
	if v, _ := attrs.Get("building:levels"); v.Kind != element.String {
		t.Fatal(v)
	} else if f, ok := v.Float(); !ok || f != 5 {
		t.Fatal(f)
	}

	if !isBuildingRelation(osm.Tags{"type": "building"}) ||
		!isBuildingRelation(osm.Tags{"type": "multipolygon", "building": "yes"}) ||
		isBuildingRelation(osm.Tags{"type": "multipolygon", "landuse": "grass"}) {
		t.Fatal("building relation detection")
	}
}
