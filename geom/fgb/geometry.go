package fgb

import (
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
)

func geometryType(g orb.Geometry) flattypes.GeometryType {
	switch g.(type) {
	case orb.Point:
		return flattypes.GeometryTypePoint
	case orb.MultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case orb.LineString:
		return flattypes.GeometryTypeLineString
	case orb.MultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case orb.Ring, orb.Polygon:
		return flattypes.GeometryTypePolygon
	case orb.MultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	default:
		return flattypes.GeometryTypeUnknown
	}
}

// geometryToFGB returns nil for unsupported or nil geometries.
func geometryToFGB(g orb.Geometry, b *flatbuffers.Builder) *writer.Geometry {
	if g == nil {
		return nil
	}
	out := writer.NewGeometry(b)

	switch v := g.(type) {
	case orb.Point:
		out.SetType(flattypes.GeometryTypePoint)
		out.SetXY([]float64{v[0], v[1]})
	case orb.MultiPoint:
		out.SetType(flattypes.GeometryTypeMultiPoint)
		out.SetXY(pointsXY(v))
	case orb.LineString:
		out.SetType(flattypes.GeometryTypeLineString)
		out.SetXY(pointsXY(v))
	case orb.MultiLineString:
		out.SetType(flattypes.GeometryTypeMultiLineString)
		parts := make([][]orb.Point, len(v))
		for i := range v {
			parts[i] = v[i]
		}
		xy, ends := partsXY(parts)
		out.SetXY(xy)
		out.SetEnds(ends)
	case orb.Ring:
		return geometryToFGB(orb.Polygon{v}, b)
	case orb.Polygon:
		out.SetType(flattypes.GeometryTypePolygon)
		xy, ends := polygonXY(v)
		out.SetXY(xy)
		out.SetEnds(ends)
	case orb.MultiPolygon:
		out.SetType(flattypes.GeometryTypeMultiPolygon)
		parts := make([]writer.Geometry, 0, len(v))
		for _, poly := range v {
			part := writer.NewGeometry(b)
			part.SetType(flattypes.GeometryTypePolygon)
			xy, ends := polygonXY(poly)
			part.SetXY(xy)
			part.SetEnds(ends)
			parts = append(parts, *part)
		}
		out.SetParts(parts)
	default:
		return nil
	}
	return out
}

func pointsXY(pts []orb.Point) []float64 {
	xy := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		xy = append(xy, p[0], p[1])
	}
	return xy
}

func partsXY(parts [][]orb.Point) ([]float64, []uint32) {
	var xy []float64
	ends := make([]uint32, 0, len(parts))
	for _, part := range parts {
		xy = append(xy, pointsXY(part)...)
		ends = append(ends, uint32(len(xy)/2))
	}
	return xy, ends
}

func polygonXY(poly orb.Polygon) ([]float64, []uint32) {
	parts := make([][]orb.Point, len(poly))
	for i := range poly {
		parts[i] = poly[i]
	}
	return partsXY(parts)
}

func geometryFromFGB(g *flattypes.Geometry) orb.Geometry {
	switch g.Type() {
	case flattypes.GeometryTypePoint:
		pts := readPoints(g, 0, g.XyLength()/2)
		if len(pts) == 0 {
			return nil
		}
		return pts[0]
	case flattypes.GeometryTypeMultiPoint:
		return orb.MultiPoint(readPoints(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeLineString:
		return orb.LineString(readPoints(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeMultiLineString:
		var mls orb.MultiLineString
		for _, part := range readParts(g) {
			mls = append(mls, orb.LineString(part))
		}
		return mls
	case flattypes.GeometryTypePolygon:
		return readPolygon(g)
	case flattypes.GeometryTypeMultiPolygon:
		n := g.PartsLength()
		if n == 0 {
			return orb.MultiPolygon{readPolygon(g)}
		}
		mp := make(orb.MultiPolygon, 0, n)
		for i := 0; i < n; i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				mp = append(mp, readPolygon(&part))
			}
		}
		return mp
	}
	return nil
}

func readPolygon(g *flattypes.Geometry) orb.Polygon {
	parts := readParts(g)
	poly := make(orb.Polygon, len(parts))
	for i, part := range parts {
		poly[i] = orb.Ring(part)
	}
	return poly
}

// readParts splits the coordinates at the ends offsets. A geometry without
// ends is a single part.
func readParts(g *flattypes.Geometry) [][]orb.Point {
	n := g.XyLength() / 2
	if g.EndsLength() == 0 {
		return [][]orb.Point{readPoints(g, 0, n)}
	}
	var parts [][]orb.Point
	start := 0
	for i := 0; i < g.EndsLength(); i++ {
		end := int(g.Ends(i))
		if end > n {
			end = n
		}
		parts = append(parts, readPoints(g, start, end))
		start = end
	}
	return parts
}

func readPoints(g *flattypes.Geometry, from, to int) []orb.Point {
	if to <= from {
		return nil
	}
	pts := make([]orb.Point, 0, to-from)
	for i := from; i < to; i++ {
		pts = append(pts, orb.Point{g.Xy(2 * i), g.Xy(2*i + 1)})
	}
	return pts
}
