// Package fgb reads and writes FlatGeobuf files with orb geometries and
// ordered element attributes.
package fgb

import (
	"io"
	"math"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/element"
)

var (
	ErrNoFeatures = errors.New("fgb: no features")
	ErrNoIndex    = errors.New("fgb: file has no spatial index")
)

// Column is a property column of a FlatGeobuf layer.
type Column struct {
	Name string
	Type flattypes.ColumnType
}

type Feature struct {
	Geometry   orb.Geometry
	Attributes *element.Attributes
}

type Reader struct {
	fgb    *flatgeobuf.FlatGeoBuf
	header *flattypes.Header
}

// Open memory maps the FlatGeobuf file at path.
func Open(path string) (*Reader, error) {
	f, err := flatgeobuf.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return &Reader{fgb: f, header: f.Header()}, nil
}

func OpenData(data []byte) (*Reader, error) {
	f, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, errors.Wrap(err, "reading flatgeobuf data")
	}
	return &Reader{fgb: f, header: f.Header()}, nil
}

func (r *Reader) Name() string {
	return string(r.header.Name())
}

func (r *Reader) Count() uint64 {
	return r.header.FeaturesCount()
}

// Columns returns the layer schema in declaration order.
func (r *Reader) Columns() []Column {
	n := r.header.ColumnsLength()
	cols := make([]Column, 0, n)
	for i := 0; i < n; i++ {
		var col flattypes.Column
		if r.header.Columns(&col, i) {
			cols = append(cols, Column{Name: string(col.Name()), Type: col.Type()})
		}
	}
	return cols
}

// Features returns all features of the file in stored order. Attributes
// follow the column order of the header. Only indexed files can be read.
func (r *Reader) Features() ([]Feature, error) {
	if r.header.FeaturesCount() == 0 {
		return nil, nil
	}
	if r.header.IndexNodeSize() == 0 {
		return nil, ErrNoIndex
	}

	minX, minY := -math.MaxFloat64, -math.MaxFloat64
	maxX, maxY := math.MaxFloat64, math.MaxFloat64
	if r.header.EnvelopeLength() >= 4 {
		minX, minY = r.header.Envelope(0), r.header.Envelope(1)
		maxX, maxY = r.header.Envelope(2), r.header.Envelope(3)
	}
	found, err := r.fgb.Search(minX, minY, maxX, maxY)
	if err != nil {
		return nil, errors.Wrap(err, "searching flatgeobuf index")
	}

	cols := r.Columns()
	features := make([]Feature, 0, len(found))
	for _, f := range found {
		if f == nil {
			continue
		}
		var g flattypes.Geometry
		var geom orb.Geometry
		if fg := f.Geometry(&g); fg != nil {
			geom = geometryFromFGB(fg)
		}

		n := f.PropertiesLength()
		props := make([]byte, n)
		for i := 0; i < n; i++ {
			props[i] = byte(f.Properties(i))
		}
		attrs, err := decodeProperties(props, cols)
		if err != nil {
			return nil, err
		}
		features = append(features, Feature{Geometry: geom, Attributes: attrs})
	}
	return features, nil
}

// Close drops the reference to the mapped file.
func (r *Reader) Close() error {
	r.fgb = nil
	r.header = nil
	return nil
}

// Layer describes the header of a written file.
type Layer struct {
	Name    string
	EPSG    int
	Columns []Column
}

// Write writes features as an indexed FlatGeobuf layer. Attributes that
// are not part of layer.Columns are not written. Feature order in the file
// follows the spatial index.
func Write(w io.Writer, layer Layer, features []Feature) error {
	if len(features) == 0 {
		return ErrNoFeatures
	}
	columns := layer.Columns

	builder := flatbuffers.NewBuilder(4096)
	header := writer.NewHeader(builder)
	header.SetName(layer.Name)
	header.SetGeometryType(layerType(features))

	colIndex := make(map[string]int, len(columns))
	if len(columns) > 0 {
		hcols := make([]*writer.Column, 0, len(columns))
		for i, c := range columns {
			col := writer.NewColumn(builder)
			col.SetName(c.Name)
			col.SetTitle(c.Name)
			col.SetType(c.Type)
			col.SetNullable(true)
			hcols = append(hcols, col)
			colIndex[c.Name] = i
		}
		header.SetColumns(hcols)
	}

	if layer.EPSG > 0 {
		crs := writer.NewCrs(builder)
		crs.SetOrg("EPSG")
		crs.SetCode(int32(layer.EPSG))
		header.SetCrs(crs)
	}

	gen := &featureGenerator{
		features: features,
		columns:  columns,
		colIndex: colIndex,
	}
	fw := writer.NewWriter(header, true, gen, nil)
	if _, err := fw.Write(w); err != nil {
		return errors.Wrap(err, "writing flatgeobuf")
	}
	return gen.err
}

// InferColumns returns one column per attribute key in first-seen order.
// Keys with values of different kinds are written as strings, keys with
// only null values as well.
func InferColumns(features []Feature) []Column {
	var cols []Column
	index := map[string]int{}
	typed := map[string]bool{}
	for _, f := range features {
		for _, k := range f.Attributes.Keys() {
			v, _ := f.Attributes.Get(k)
			i, seen := index[k]
			if !seen {
				i = len(cols)
				index[k] = i
				cols = append(cols, Column{Name: k, Type: flattypes.ColumnTypeString})
			}
			t, ok := columnType(v)
			if !ok {
				continue
			}
			if !typed[k] {
				cols[i].Type = t
				typed[k] = true
			} else if cols[i].Type != t {
				cols[i].Type = flattypes.ColumnTypeString
			}
		}
	}
	return cols
}

func layerType(features []Feature) flattypes.GeometryType {
	t := geometryType(features[0].Geometry)
	for _, f := range features[1:] {
		if geometryType(f.Geometry) != t {
			return flattypes.GeometryTypeUnknown
		}
	}
	return t
}

type featureGenerator struct {
	features []Feature
	columns  []Column
	colIndex map[string]int
	next     int
	err      error
}

func (g *featureGenerator) Generate() *writer.Feature {
	if g.next >= len(g.features) || g.err != nil {
		return nil
	}
	f := g.features[g.next]
	g.next++

	builder := flatbuffers.NewBuilder(1024)
	geom := geometryToFGB(f.Geometry, builder)
	if geom == nil {
		g.err = errors.Errorf("fgb: unsupported geometry %T in feature %d", f.Geometry, g.next-1)
		return nil
	}
	out := writer.NewFeature(builder)
	out.SetGeometry(geom)
	if props := encodeProperties(f.Attributes, g.columns, g.colIndex); len(props) > 0 {
		out.SetProperties(props)
	}
	return out
}
