package writer

import (
	"bufio"
	"strconv"

	"github.com/b2gm/lodmap/geom"
)

type mesh struct {
	name     string
	solid    *geom.Solid
	mtllib   string
	material string
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func writeVertex(w *bufio.Writer, prefix string, v geom.Vec3) {
	w.WriteString(prefix)
	w.WriteString(formatFloat(v[0]))
	w.WriteByte(' ')
	w.WriteString(formatFloat(v[1]))
	w.WriteByte(' ')
	w.WriteString(formatFloat(v[2]))
	w.WriteByte('\n')
}

// writeOBJ writes a Wavefront OBJ object. Face indices are 1-based.
func writeOBJ(w *bufio.Writer, m mesh) error {
	w.WriteString("# lodmap\n")
	if m.mtllib != "" {
		w.WriteString("mtllib " + m.mtllib + "\n")
	}
	w.WriteString("o " + m.name + "\n")
	for _, v := range m.solid.Vertices {
		writeVertex(w, "v ", v)
	}
	if m.material != "" {
		w.WriteString("usemtl " + m.material + "\n")
	}
	for _, f := range m.solid.Faces {
		w.WriteByte('f')
		for _, i := range f {
			w.WriteByte(' ')
			w.WriteString(strconv.Itoa(i + 1))
		}
		w.WriteByte('\n')
	}
	return nil
}

// writePLY writes an ASCII PLY mesh.
func writePLY(w *bufio.Writer, m mesh) error {
	// caps of large rings do not fit the common uchar vertex count
	countType := "uchar"
	for _, f := range m.solid.Faces {
		if len(f) > 255 {
			countType = "int"
			break
		}
	}

	w.WriteString("ply\nformat ascii 1.0\n")
	w.WriteString("comment lodmap " + m.name + "\n")
	w.WriteString("element vertex " + strconv.Itoa(len(m.solid.Vertices)) + "\n")
	w.WriteString("property double x\nproperty double y\nproperty double z\n")
	w.WriteString("element face " + strconv.Itoa(len(m.solid.Faces)) + "\n")
	w.WriteString("property list " + countType + " int vertex_indices\n")
	w.WriteString("end_header\n")
	for _, v := range m.solid.Vertices {
		writeVertex(w, "", v)
	}
	for _, f := range m.solid.Faces {
		w.WriteString(strconv.Itoa(len(f)))
		for _, i := range f {
			w.WriteByte(' ')
			w.WriteString(strconv.Itoa(i))
		}
		w.WriteByte('\n')
	}
	return nil
}
