package writer

import (
	"bufio"

	"github.com/paulmach/orb"

	"github.com/b2gm/lodmap/building"
	"github.com/b2gm/lodmap/element"
	"github.com/b2gm/lodmap/geom/fgb"
)

// writeFootprints writes the source footprint of every solid with its
// heights, for 2.5D viewers that extrude polygons themselves.
func writeFootprints(w *bufio.Writer, features []*building.Feature3D, epsg int) error {
	var out []fgb.Feature
	indices := MeshIndices(features)
	for i, f := range features {
		for j, ring := range f.Footprints {
			attrs := f.Attributes.Clone()
			attrs.Set("building_id", element.NumberValue(float64(indices[i]+j)))
			attrs.Set("building_height", element.NumberValue(f.BuildingHeight))
			attrs.Set("underground_height", element.NumberValue(f.UndergroundHeight))
			out = append(out, fgb.Feature{
				Geometry:   orb.Polygon{ring},
				Attributes: attrs,
			})
		}
	}
	layer := fgb.Layer{
		Name:    "building_footprints",
		EPSG:    epsg,
		Columns: fgb.InferColumns(out),
	}
	return fgb.Write(w, layer, out)
}
