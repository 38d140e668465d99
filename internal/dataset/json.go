package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// RecordsJSON serializes the dataset row by row as a JSON array of objects.
// Keys follow column order; numeric cells are JSON numbers, missing cells
// and non-finite numbers are null.
func (d *Dataset) RecordsJSON() ([]byte, error) {
	keys := make([][]byte, len(d.Columns))
	for j, c := range d.Columns {
		k, err := json.Marshal(c.Name)
		if err != nil {
			return nil, fmt.Errorf("marshal column name: %w", err)
		}
		keys[j] = k
	}
	var b bytes.Buffer
	b.WriteByte('[')
	for i := 0; i < d.NumRows(); i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('{')
		for j, c := range d.Columns {
			if j > 0 {
				b.WriteByte(',')
			}
			b.Write(keys[j])
			b.WriteByte(':')
			cell := c.Cells[i]
			switch {
			case cell.Missing:
				b.WriteString("null")
			case c.Kind == Numeric:
				if math.IsNaN(cell.Num) || math.IsInf(cell.Num, 0) {
					b.WriteString("null")
				} else {
					b.WriteString(strconv.FormatFloat(cell.Num, 'g', -1, 64))
				}
			default:
				v, err := json.Marshal(cell.Text)
				if err != nil {
					return nil, fmt.Errorf("marshal cell: %w", err)
				}
				b.Write(v)
			}
		}
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}
