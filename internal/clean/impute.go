// Package clean fills missing values in a dataset.
package clean

import (
	"fmt"
	"sort"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/KaramelBytes/edaloom-cli/internal/metrics"
	"gonum.org/v1/gonum/stat"
)

// ColumnFill records what imputation did to one column.
type ColumnFill struct {
	Name      string
	Kind      dataset.Kind
	Filled    int
	FillValue string
}

// Summary describes an imputation pass. It is derived from the dataset and not stored.
type Summary struct {
	MissingBefore int
	MissingAfter  int
	Columns       []ColumnFill
	// Unfillable lists columns that had no value to derive a fill from.
	Unfillable []string
}

func (s Summary) String() string {
	return fmt.Sprintf("Missing Values Handled: %d → %d", s.MissingBefore, s.MissingAfter)
}

// FilledCells returns the number of cells that received a value.
func (s Summary) FilledCells() int {
	n := 0
	for _, c := range s.Columns {
		n += c.Filled
	}
	return n
}

// Impute fills missing cells column by column, in place. Categorical columns
// take their most frequent value; numeric columns take the mean of their
// non-missing values. Present values are never modified.
func Impute(ds *dataset.Dataset) Summary {
	sum := Summary{MissingBefore: ds.MissingCount()}
	for _, col := range ds.Columns {
		miss := col.MissingCount()
		if miss == 0 {
			continue
		}
		var fill dataset.Cell
		var ok bool
		switch col.Kind {
		case dataset.Categorical:
			fill, ok = modeFill(col)
		default:
			fill, ok = meanFill(col)
		}
		if !ok {
			sum.Unfillable = append(sum.Unfillable, col.Name)
			continue
		}
		for i := range col.Cells {
			if col.Cells[i].Missing {
				col.Cells[i] = fill
			}
		}
		metrics.ObserveImputed(string(col.Kind), miss)
		sum.Columns = append(sum.Columns, ColumnFill{Name: col.Name, Kind: col.Kind, Filled: miss, FillValue: fill.Text})
	}
	sum.MissingAfter = ds.MissingCount()
	return sum
}

// Mode returns the most frequent non-missing text value of a column.
// Ties resolve to the lexicographically smallest value.
func Mode(col *dataset.Column) (string, bool) {
	counts := map[string]int{}
	for _, c := range col.Cells {
		if !c.Missing {
			counts[c.Text]++
		}
	}
	if len(counts) == 0 {
		return "", false
	}
	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Strings(values)
	best := values[0]
	for _, v := range values[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}

// Mean returns the arithmetic mean of the non-missing values of a numeric column.
func Mean(col *dataset.Column) (float64, bool) {
	vals := col.Floats()
	if len(vals) == 0 {
		return 0, false
	}
	return stat.Mean(vals, nil), true
}

func modeFill(col *dataset.Column) (dataset.Cell, bool) {
	v, ok := Mode(col)
	if !ok {
		return dataset.Cell{}, false
	}
	return dataset.Cell{Text: v}, true
}

func meanFill(col *dataset.Column) (dataset.Cell, bool) {
	m, ok := Mean(col)
	if !ok {
		return dataset.Cell{}, false
	}
	return dataset.Cell{Text: dataset.FormatNumber(m), Num: m}, true
}
