package geom

import (
	"errors"
	"math"

	"github.com/paulmach/orb"

	"github.com/b2gm/lodmap/proj"
)

var ErrNonPositiveHeight = errors.New("extrusion height must be positive")

// Extrude builds a vertical prism from z=0 to z=height over ring.
// Vertices are the bottom ring followed by the top ring. Faces are the
// bottom cap, the top cap and one quad per ring edge.
func Extrude(ring orb.Ring, height float64) (*Solid, error) {
	if !(height > 0) || math.IsInf(height, 0) {
		return nil, ErrNonPositiveHeight
	}
	pts, err := PrepareRing(ring)
	if err != nil {
		return nil, err
	}
	n := len(pts)

	s := &Solid{
		Vertices: make([]Vec3, 0, 2*n),
		Faces:    make([][]int, 0, n+2),
	}
	for _, p := range pts {
		s.Vertices = append(s.Vertices, Vec3{p[0], p[1], 0})
	}
	for _, p := range pts {
		s.Vertices = append(s.Vertices, Vec3{p[0], p[1], height})
	}

	bottom := make([]int, n)
	top := make([]int, n)
	for i := 0; i < n; i++ {
		// bottom faces down, so it is clockwise seen from above
		bottom[i] = n - 1 - i
		top[i] = n + i
	}
	s.Faces = append(s.Faces, bottom, top)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		s.Faces = append(s.Faces, []int{i, j, n + j, n + i})
	}
	return s, nil
}

// Extruder extrudes geographic footprint rings.
type Extruder struct {
	// Reproject converts lat/long rings to UTM before extruding. Without
	// reprojection the ring stays in degrees and heights are scaled by
	// 1/proj.MetersPerDegree.
	Reproject bool
	// Offset is subtracted from (easting, northing) after reprojection.
	Offset orb.Point
	// Zone pins the UTM zone. Zero uses the zone of the ring centroid.
	Zone  int
	South bool
}

// VerticalScale returns the factor applied to heights in meters.
func (e Extruder) VerticalScale() float64 {
	if e.Reproject {
		return 1
	}
	return 1 / proj.MetersPerDegree
}

// PlanarRing returns ring in the planar output coordinates.
// Rings with less than 3 vertices return ErrDegenerateRing, also before
// a zone could be chosen.
func (e Extruder) PlanarRing(ring orb.Ring) (orb.Ring, error) {
	if len(ring) < 3 {
		return nil, ErrDegenerateRing
	}
	if !e.Reproject {
		return ring, nil
	}
	zone, north := e.Zone, !e.South
	if zone == 0 {
		var err error
		zone, north, err = proj.ZoneForRing(ring)
		if err != nil {
			return nil, err
		}
	}

	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		x, y, err := proj.ToUTM(p.Lat(), p.Lon(), zone, north)
		if err != nil {
			return nil, err
		}
		out[i] = orb.Point{x - e.Offset[0], y - e.Offset[1]}
	}
	return out, nil
}

// Extrude extrudes ring by height meters.
func (e Extruder) Extrude(ring orb.Ring, height float64) (*Solid, error) {
	planarRing, err := e.PlanarRing(ring)
	if err != nil {
		return nil, err
	}
	return Extrude(planarRing, height*e.VerticalScale())
}
