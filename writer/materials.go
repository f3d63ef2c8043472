package writer

import (
	"bufio"
	"fmt"
	"math/rand"
)

type colour [3]float64

// materialColours draws one colour per feature: reddish to greenish tones
// with little blue.
func materialColours(r *rand.Rand, n int) []colour {
	colours := make([]colour, n)
	for i := range colours {
		colours[i] = colour{
			0.3 + 0.7*r.Float64(),
			0.3 + 0.7*r.Float64(),
			0.2 + 0.1*r.Float64(),
		}
	}
	return colours
}

func materialName(feature int) string {
	return fmt.Sprintf("feature_%d", feature)
}

func writeMaterials(w *bufio.Writer, colours []colour) error {
	for i, c := range colours {
		fmt.Fprintf(w, "newmtl %s\nKa 0 0 0\nKd %.4f %.4f %.4f\nKs 0 0 0\nd 1\nillum 1\n\n",
			materialName(i), c[0], c[1], c[2])
	}
	return nil
}
