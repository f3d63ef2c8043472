package reader

import (
	"context"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/element"
)

type shapefileSource struct {
	path string
	r    *shp.Reader
}

func openShapefile(path string) (*shapefileSource, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return &shapefileSource{path: path, r: r}, nil
}

// Features reads shapes in record order. Attributes follow the DBF field
// order. A missing DBF yields features without attributes.
func (s *shapefileSource) Features(ctx context.Context, fn func(element.Feature) error) error {
	fields := s.r.Fields()
	i := 0
	for s.r.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, shape := s.r.Shape()
		f := element.Feature{
			Index:      i,
			ID:         strconv.Itoa(row + 1),
			Geometry:   shapeGeometry(shape),
			Attributes: element.NewAttributes(),
		}
		for n, field := range fields {
			f.Attributes.Set(field.String(), dbfValue(field.Fieldtype, s.r.ReadAttribute(row, n)))
		}
		if err := fn(f); err != nil {
			return err
		}
		i++
	}
	return errors.Wrapf(s.r.Err(), "reading %s", s.path)
}

func (s *shapefileSource) Close() error {
	return s.r.Close()
}

func dbfValue(fieldType byte, raw string) element.Value {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	switch fieldType {
	case 'N', 'F':
		if raw == "" {
			return element.NullValue()
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return element.NumberValue(f)
		}
		return element.StringValue(raw)
	case 'L':
		switch raw {
		case "T", "t", "Y", "y":
			return element.BoolValue(true)
		case "F", "f", "N", "n":
			return element.BoolValue(false)
		}
		return element.NullValue()
	}
	return element.StringValue(raw)
}

// shapeGeometry converts polygon shapes. Clockwise rings start a new
// polygon, counter-clockwise rings are holes of the preceding polygon.
// Other shapes are returned as orb points or lines so that they can be
// reported as unsupported.
func shapeGeometry(s shp.Shape) orb.Geometry {
	switch v := s.(type) {
	case *shp.Polygon:
		return polygonParts(v.Parts, v.Points)
	case *shp.PolygonZ:
		return polygonParts(v.Parts, v.Points)
	case *shp.PolygonM:
		return polygonParts(v.Parts, v.Points)
	case *shp.Point:
		return orb.Point{v.X, v.Y}
	case *shp.PolyLine:
		return orb.LineString(ring(v.Points))
	case *shp.Null:
		return nil
	}
	return orb.Collection{}
}

func polygonParts(parts []int32, points []shp.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if int(start) >= end || end > len(points) {
			continue
		}
		r := orb.Ring(ring(points[start:end]))
		if r.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			mp[last] = append(mp[last], r)
			continue
		}
		mp = append(mp, orb.Polygon{r})
	}
	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}

func ring(points []shp.Point) []orb.Point {
	pts := make([]orb.Point, len(points))
	for i, p := range points {
		pts[i] = orb.Point{p.X, p.Y}
	}
	return pts
}
