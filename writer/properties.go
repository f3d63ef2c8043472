package writer

import (
	"bufio"
	"encoding/csv"
	"strconv"

	"github.com/b2gm/lodmap/building"
)

// Columns returns the union of all attribute keys in first-seen order.
func Columns(features []*building.Feature3D) []string {
	seen := map[string]bool{}
	var cols []string
	for _, f := range features {
		for _, k := range f.Attributes.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// writeProperties writes one row per feature. The ID is the position of
// the feature in features.
func writeProperties(w *bufio.Writer, features []*building.Feature3D) error {
	cols := Columns(features)
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"ID"}, cols...)); err != nil {
		return err
	}
	row := make([]string, len(cols)+1)
	for i, f := range features {
		row[0] = strconv.Itoa(i)
		for j, k := range cols {
			v, _ := f.Attributes.Get(k)
			row[j+1] = v.String()
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
