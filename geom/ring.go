package geom

import (
	"errors"

	"github.com/paulmach/orb"
)

var ErrDegenerateRing = errors.New("ring has less than 3 distinct vertices")

// PrepareRing returns the vertices of ring without the closing vertex and
// without consecutive duplicates, in counter-clockwise order.
// The ring may be closed (first == last) or implicitly closed.
func PrepareRing(ring orb.Ring) ([]orb.Point, error) {
	pts := make([]orb.Point, 0, len(ring))
	for _, p := range ring {
		if len(pts) > 0 && pts[len(pts)-1] == p {
			continue
		}
		pts = append(pts, p)
	}
	for len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return nil, ErrDegenerateRing
	}

	area := signedArea(pts)
	if area == 0 {
		// collinear
		return nil, ErrDegenerateRing
	}
	if area < 0 {
		reverse(pts)
	}
	return pts, nil
}

// signedArea returns the shoelace area of the open ring pts, positive for
// counter-clockwise rings.
func signedArea(pts []orb.Point) float64 {
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	return sum / 2
}

func reverse(pts []orb.Point) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

// Exterior returns the outer ring of a polygon, holes are ignored.
func Exterior(p orb.Polygon) orb.Ring {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}
