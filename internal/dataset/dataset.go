package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the inferred scalar type of a column.
type Kind string

const (
	Numeric     Kind = "numeric"
	Categorical Kind = "categorical"
)

// Cell is a single value in a column. Num is only meaningful for numeric
// columns; Text keeps the value as it appeared in the source.
type Cell struct {
	Text    string
	Num     float64
	Missing bool
}

// Column is a named, uniformly typed sequence of cells.
type Column struct {
	Name  string
	Kind  Kind
	Cells []Cell
}

// Dataset is an ordered set of columns sharing one row count.
type Dataset struct {
	Name    string
	Columns []*Column
	// Delimiter is the separator the source text used; zero for workbooks.
	Delimiter rune
}

// ErrColumnNotFound is returned when a lookup by name fails.
var ErrColumnNotFound = errors.New("column not found")

// missingTokens mirrors the NA markers commonly produced by spreadsheet and
// dataframe exports.
var missingTokens = map[string]struct{}{
	"":      {},
	"NA":    {},
	"N/A":   {},
	"n/a":   {},
	"NaN":   {},
	"nan":   {},
	"-nan":  {},
	"-NaN":  {},
	"null":  {},
	"NULL":  {},
	"None":  {},
	"<NA>":  {},
	"#N/A":  {},
	"#NA":   {},
	"#NULL": {},
}

// IsMissingToken reports whether s (after trimming) denotes a missing value.
func IsMissingToken(s string) bool {
	_, ok := missingTokens[strings.TrimSpace(s)]
	return ok
}

// NumRows returns the shared row count.
func (d *Dataset) NumRows() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Cells)
}

// Names returns column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by exact name.
func (d *Dataset) Column(name string) (*Column, error) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// NumericColumns returns the numeric columns in order.
func (d *Dataset) NumericColumns() []*Column {
	var out []*Column
	for _, c := range d.Columns {
		if c.Kind == Numeric {
			out = append(out, c)
		}
	}
	return out
}

// MissingCount returns the total number of missing cells.
func (d *Dataset) MissingCount() int {
	n := 0
	for _, c := range d.Columns {
		n += c.MissingCount()
	}
	return n
}

// Validate checks that every column has the same number of cells.
func (d *Dataset) Validate() error {
	rows := d.NumRows()
	for _, c := range d.Columns {
		if len(c.Cells) != rows {
			return fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Cells), rows)
		}
	}
	return nil
}

// Row returns the source text of row i. Missing cells are empty.
func (d *Dataset) Row(i int) []string {
	out := make([]string, len(d.Columns))
	for j, c := range d.Columns {
		if i < len(c.Cells) && !c.Cells[i].Missing {
			out[j] = c.Cells[i].Text
		}
	}
	return out
}

// Head returns up to n rows as text.
func (d *Dataset) Head(n int) [][]string {
	rows := d.NumRows()
	if n > rows || n < 0 {
		n = rows
	}
	out := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, d.Row(i))
	}
	return out
}

// DuplicateRows counts rows that exactly repeat an earlier row.
func (d *Dataset) DuplicateRows() int {
	seen := make(map[string]struct{}, d.NumRows())
	dup := 0
	for i := 0; i < d.NumRows(); i++ {
		key := strings.Join(d.Row(i), "\x1f")
		if _, ok := seen[key]; ok {
			dup++
			continue
		}
		seen[key] = struct{}{}
	}
	return dup
}

// Clone returns a deep copy so callers can mutate without affecting d.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{Name: d.Name, Columns: make([]*Column, len(d.Columns)), Delimiter: d.Delimiter}
	for i, c := range d.Columns {
		cells := make([]Cell, len(c.Cells))
		copy(cells, c.Cells)
		out.Columns[i] = &Column{Name: c.Name, Kind: c.Kind, Cells: cells}
	}
	return out
}

// MissingCount returns the number of missing cells in the column.
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Cells {
		if v.Missing {
			n++
		}
	}
	return n
}

// Present returns the non-missing cells.
func (c *Column) Present() []Cell {
	out := make([]Cell, 0, len(c.Cells))
	for _, v := range c.Cells {
		if !v.Missing {
			out = append(out, v)
		}
	}
	return out
}

// Floats returns non-missing numeric values. It is empty for categorical columns.
func (c *Column) Floats() []float64 {
	if c.Kind != Numeric {
		return nil
	}
	out := make([]float64, 0, len(c.Cells))
	for _, v := range c.Cells {
		if !v.Missing {
			out = append(out, v.Num)
		}
	}
	return out
}

// Unique returns the number of distinct non-missing values. Numeric values
// compare by value so "1" and "1.0" count once.
func (c *Column) Unique() int {
	seen := make(map[string]struct{})
	for _, v := range c.Cells {
		if v.Missing {
			continue
		}
		seen[c.key(v)] = struct{}{}
	}
	return len(seen)
}

func (c *Column) key(v Cell) string {
	if c.Kind == Numeric {
		return FormatNumber(v.Num)
	}
	return v.Text
}

// FormatNumber renders a float with the shortest representation that round-trips.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// NewColumn infers the column kind from raw values and builds its cells.
// A column is numeric when every non-missing value parses as a number;
// a column with no values at all is numeric as well.
func NewColumn(name string, raw []string, opt ReadOptions) *Column {
	cells := make([]Cell, len(raw))
	numeric := true
	for i, s := range raw {
		v := strings.TrimSpace(s)
		if IsMissingToken(v) {
			cells[i] = Cell{Missing: true}
			continue
		}
		cells[i] = Cell{Text: v}
		if numeric {
			f, ok := parseNumber(v, opt.DecimalSeparator)
			if !ok {
				numeric = false
				continue
			}
			cells[i].Num = f
		}
	}
	kind := Categorical
	if numeric {
		kind = Numeric
	} else {
		for i := range cells {
			cells[i].Num = 0
		}
	}
	return &Column{Name: name, Kind: kind, Cells: cells}
}

// parseNumber accepts plain decimal and scientific notation. When dec is ','
// the value is treated as using comma decimals with optional '.' grouping.
func parseNumber(s string, dec rune) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	if strings.ContainsAny(raw, "_xXpP") {
		return 0, false
	}
	if dec == ',' {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
