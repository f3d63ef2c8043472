package writer

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/b2gm/lodmap/building"
	"github.com/b2gm/lodmap/element"
	"github.com/b2gm/lodmap/geom"
)

var cityGMLNamespaces = [][2]string{
	{"xmlns:core", "http://www.opengis.net/citygml/2.0"},
	{"xmlns:bldg", "http://www.opengis.net/citygml/building/2.0"},
	{"xmlns:gen", "http://www.opengis.net/citygml/generics/2.0"},
	{"xmlns:gml", "http://www.opengis.net/gml"},
	{"xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance"},
	{"xsi:schemaLocation", "http://www.opengis.net/citygml/2.0 http://schemas.opengis.net/citygml/2.0/cityGMLBase.xsd " +
		"http://www.opengis.net/citygml/building/2.0 http://schemas.opengis.net/citygml/building/2.0/building.xsd"},
}

// writeCityGML writes a CityGML 2.0 model with one LoD1 building per
// solid. Parts of a multipolygon feature share its attributes.
func writeCityGML(w *bufio.Writer, features []*building.Feature3D, srsName string) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	model := doc.CreateElement("core:CityModel")
	for _, ns := range cityGMLNamespaces {
		model.CreateAttr(ns[0], ns[1])
	}

	if bounds, ok := solidBounds(features); ok {
		env := model.CreateElement("gml:boundedBy").CreateElement("gml:Envelope")
		if srsName != "" {
			env.CreateAttr("srsName", srsName)
		}
		env.CreateAttr("srsDimension", "3")
		env.CreateElement("gml:lowerCorner").SetText(posList(bounds.Min))
		env.CreateElement("gml:upperCorner").SetText(posList(bounds.Max))
	}

	indices := MeshIndices(features)
	for i, f := range features {
		for j, solid := range f.Solids {
			id := fmt.Sprintf("building_%d", indices[i]+j)
			b := model.CreateElement("core:cityObjectMember").CreateElement("bldg:Building")
			b.CreateAttr("gml:id", id)
			if f.ID != "" {
				b.CreateElement("gml:name").SetText(f.ID)
			}
			genericAttributes(b, f.Attributes)

			height := b.CreateElement("bldg:measuredHeight")
			height.CreateAttr("uom", "m")
			height.SetText(formatFloat(f.BuildingHeight))
			b.CreateElement("bldg:storeysAboveGround").SetText(storeys(f.GroundStoreys))
			b.CreateElement("bldg:storeysBelowGround").SetText(storeys(f.UndergroundStoreys))

			gmlSolid := b.CreateElement("bldg:lod1Solid").CreateElement("gml:Solid")
			gmlSolid.CreateAttr("gml:id", id+"_solid")
			surface := gmlSolid.CreateElement("gml:exterior").CreateElement("gml:CompositeSurface")
			for k, face := range solid.Faces {
				poly := surface.CreateElement("gml:surfaceMember").CreateElement("gml:Polygon")
				poly.CreateAttr("gml:id", fmt.Sprintf("%s_face_%d", id, k))
				pos := poly.CreateElement("gml:exterior").CreateElement("gml:LinearRing").CreateElement("gml:posList")
				pos.CreateAttr("srsDimension", "3")
				pos.SetText(facePosList(solid, face))
			}
		}
	}

	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}

func genericAttributes(b *etree.Element, attrs *element.Attributes) {
	for _, k := range attrs.Keys() {
		v, _ := attrs.Get(k)
		var el *etree.Element
		switch v.Kind {
		case element.Null:
			continue
		case element.Number:
			el = b.CreateElement("gen:doubleAttribute")
		default:
			el = b.CreateElement("gen:stringAttribute")
		}
		el.CreateAttr("name", k)
		el.CreateElement("gen:value").SetText(v.String())
	}
}

func storeys(n float64) string {
	return strconv.Itoa(int(math.Round(n)))
}

func posList(v geom.Vec3) string {
	return formatFloat(v[0]) + " " + formatFloat(v[1]) + " " + formatFloat(v[2])
}

// facePosList returns the closed ring of face.
func facePosList(s *geom.Solid, face []int) string {
	parts := make([]string, 0, len(face)+1)
	for _, i := range face {
		parts = append(parts, posList(s.Vertices[i]))
	}
	parts = append(parts, posList(s.Vertices[face[0]]))
	return strings.Join(parts, " ")
}

func solidBounds(features []*building.Feature3D) (geom.Bound3, bool) {
	var total geom.Bound3
	found := false
	for _, f := range features {
		for _, s := range f.Solids {
			b := s.Bounds()
			if !found {
				total, found = b, true
				continue
			}
			for i := 0; i < 3; i++ {
				total.Min[i] = math.Min(total.Min[i], b.Min[i])
				total.Max[i] = math.Max(total.Max[i], b.Max[i])
			}
		}
	}
	return total, found
}
