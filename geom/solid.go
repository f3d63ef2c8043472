package geom

import "math"

type Vec3 [3]float64

// Solid is a closed polyhedral mesh. Faces index into Vertices and are
// ordered counter-clockwise seen from outside.
type Solid struct {
	Vertices []Vec3
	Faces    [][]int
}

// Bound3 is an axis aligned 3D bounding box.
type Bound3 struct {
	Min, Max Vec3
}

func (b Bound3) Height() float64 {
	return b.Max[2] - b.Min[2]
}

func (s *Solid) Bounds() Bound3 {
	if len(s.Vertices) == 0 {
		return Bound3{}
	}
	b := Bound3{
		Min: Vec3{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
	for _, v := range s.Vertices {
		for i := 0; i < 3; i++ {
			b.Min[i] = math.Min(b.Min[i], v[i])
			b.Max[i] = math.Max(b.Max[i], v[i])
		}
	}
	return b
}

// Translate returns a copy of s moved by (dx, dy, dz). Faces are shared
// with s.
func (s *Solid) Translate(dx, dy, dz float64) *Solid {
	vertices := make([]Vec3, len(s.Vertices))
	for i, v := range s.Vertices {
		vertices[i] = Vec3{v[0] + dx, v[1] + dy, v[2] + dz}
	}
	return &Solid{Vertices: vertices, Faces: s.Faces}
}

// CapsAndSides counts horizontal cap faces and vertical side faces.
func (s *Solid) CapsAndSides() (caps, sides int) {
	for _, f := range s.Faces {
		if len(f) == 4 && isSide(s, f) {
			sides++
		} else {
			caps++
		}
	}
	return caps, sides
}

func isSide(s *Solid, f []int) bool {
	z := s.Vertices[f[0]][2]
	for _, i := range f[1:] {
		if s.Vertices[i][2] != z {
			return true
		}
	}
	return false
}
