package postgis

import (
	"strconv"
	"strings"

	"github.com/b2gm/lodmap/geom"
)

// PolyhedralSurfaceZ returns s as EWKT. Each face becomes one closed
// polygon.
func PolyhedralSurfaceZ(s *geom.Solid, srid int) string {
	var b strings.Builder
	if srid > 0 {
		b.WriteString("SRID=")
		b.WriteString(strconv.Itoa(srid))
		b.WriteByte(';')
	}
	b.WriteString("POLYHEDRALSURFACE Z (")
	for i, face := range s.Faces {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("((")
		for j := 0; j <= len(face); j++ {
			if j > 0 {
				b.WriteByte(',')
			}
			v := s.Vertices[face[j%len(face)]]
			b.WriteString(formatFloat(v[0]))
			b.WriteByte(' ')
			b.WriteString(formatFloat(v[1]))
			b.WriteByte(' ')
			b.WriteString(formatFloat(v[2]))
		}
		b.WriteString("))")
	}
	b.WriteByte(')')
	return b.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
