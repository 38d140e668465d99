package analysis

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// maxGroups caps the group-by table to the largest groups.
const maxGroups = 20

// Options controls profiling behavior.
type Options struct {
	// SampleRows is how many leading rows the report shows.
	SampleRows int
	// GroupBy computes per-group numeric summaries for the given column names.
	GroupBy []string
	Correlations bool
	// Outliers flags numeric values whose MAD-based z-score exceeds OutlierThreshold.
	Outliers         bool
	OutlierThreshold float64
	// TopValues caps the categorical frequency table.
	TopValues int
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		Correlations:     true,
		Outliers:         true,
		OutlierThreshold: 3.5,
		TopValues:        8,
	}
}

// Report is a markdown-friendly profile of a tabular dataset.
type Report struct {
	Name       string
	Rows       int
	Missing    int
	Duplicates int
	Cols       []ColumnSummary
	Samples    [][]string
	Warnings   []string
	Groups     []GroupResult
	Corr       *CorrMatrix
}

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|datetime|categorical|text
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Categorical top values
	TopValues    []CategoryCount
	ExampleTexts []string
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary // by column name
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
// Undefined coefficients (constant columns, fewer than two paired rows) are NaN.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

// MissingPct returns the share of missing cells in percent.
func (c ColumnSummary) MissingPct() float64 {
	total := c.NonNull + c.Missing
	if total == 0 {
		return 0
	}
	return float64(c.Missing) * 100.0 / float64(total)
}

// Profile summarizes every column of ds.
func Profile(ds *dataset.Dataset, opt Options) *Report {
	rep := &Report{
		Name:       ds.Name,
		Rows:       ds.NumRows(),
		Missing:    ds.MissingCount(),
		Duplicates: ds.DuplicateRows(),
	}
	rep.Samples = ds.Head(max(opt.SampleRows, 0))
	topN := opt.TopValues
	if topN <= 0 {
		topN = 8
	}

	rep.Cols = make([]ColumnSummary, 0, len(ds.Columns))
	for _, col := range ds.Columns {
		s := ColumnSummary{Name: col.Name, Missing: col.MissingCount(), Unique: col.Unique()}
		s.NonNull = len(col.Cells) - s.Missing
		switch col.Kind {
		case dataset.Numeric:
			s.Kind = "numeric"
			vals := col.Floats()
			if len(vals) > 0 {
				s.Min, s.Max = floats.Min(vals), floats.Max(vals)
				s.Mean = stat.Mean(vals, nil)
				if len(vals) > 1 {
					s.Std = stat.StdDev(vals, nil)
				}
			}
			if opt.Outliers && len(vals) >= 8 {
				thr := opt.OutlierThreshold
				if thr <= 0 {
					thr = 3.5
				}
				s.OutliersCount, s.OutliersMaxAbsZ = robustOutliers(vals, thr)
				s.OutlierThreshold = thr
			}
		default:
			present := col.Present()
			switch {
			case len(present) > 0 && allDatetime(present):
				s.Kind = "datetime"
			case s.Unique > 20 && float64(s.Unique) > 0.5*float64(len(present)):
				s.Kind = "text"
				for _, c := range present {
					if len(s.ExampleTexts) == 3 {
						break
					}
					s.ExampleTexts = append(s.ExampleTexts, c.Text)
				}
			default:
				s.Kind = "categorical"
				s.TopValues = topValues(present, topN)
			}
		}
		rep.Cols = append(rep.Cols, s)
	}

	for _, name := range unfilled(ds) {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("column %s has no values", name))
	}
	if len(opt.GroupBy) > 0 {
		groups, missing := groupBy(ds, opt.GroupBy)
		rep.Groups = groups
		for _, m := range missing {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("group-by column %s not found", m))
		}
	}
	if opt.Correlations {
		rep.Corr = Correlations(ds)
	}
	return rep
}

// Correlations computes pairwise Pearson coefficients over numeric columns
// using rows where both values are present. It returns nil when ds has no
// numeric columns.
func Correlations(ds *dataset.Dataset) *CorrMatrix {
	num := ds.NumericColumns()
	if len(num) == 0 {
		return nil
	}
	n := len(num)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]float64, n)}
	for i, c := range num {
		m.Columns[i] = c.Name
		m.Values[i] = make([]float64, n)
	}
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			r := pairwisePearson(num[a], num[b])
			m.Values[a][b] = r
			m.Values[b][a] = r
		}
	}
	return m
}

// TopPairs lists off-diagonal pairs ordered by |r|, skipping undefined ones.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	if m == nil {
		return nil
	}
	var pairs []PairCorr
	for i := 0; i < len(m.Columns); i++ {
		for j := i + 1; j < len(m.Columns); j++ {
			r := m.Values[i][j]
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: r})
		}
	}
	slices.SortStableFunc(pairs, func(a, b PairCorr) int {
		return cmp.Compare(math.Abs(b.R), math.Abs(a.R))
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

func pairwisePearson(x, y *dataset.Column) float64 {
	var xs, ys []float64
	for i := range x.Cells {
		if x.Cells[i].Missing || y.Cells[i].Missing {
			continue
		}
		xs = append(xs, x.Cells[i].Num)
		ys = append(ys, y.Cells[i].Num)
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	if constant(xs) || constant(ys) {
		return math.NaN()
	}
	r := stat.Correlation(xs, ys, nil)
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}

func constant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

func groupBy(ds *dataset.Dataset, names []string) ([]GroupResult, []string) {
	var keys []*dataset.Column
	var missing []string
	for _, name := range names {
		c, err := ds.Column(strings.TrimSpace(name))
		if err != nil {
			missing = append(missing, name)
			continue
		}
		keys = append(keys, c)
	}
	if len(keys) == 0 {
		return nil, missing
	}

	num := ds.NumericColumns()
	index := map[string]int{}
	var out []GroupResult
	var vals []map[string][]float64
	for row := 0; row < ds.NumRows(); row++ {
		parts := make([]string, len(keys))
		for k, c := range keys {
			cell := c.Cells[row]
			label := strings.TrimSpace(cell.Text)
			if cell.Missing {
				label = "(missing)"
			}
			parts[k] = c.Name + "=" + label
		}
		key := strings.Join(parts, ", ")
		g, ok := index[key]
		if !ok {
			g = len(out)
			index[key] = g
			out = append(out, GroupResult{Key: key, Metrics: map[string]NumSummary{}})
			vals = append(vals, map[string][]float64{})
		}
		out[g].Size++
		for _, c := range num {
			if cell := c.Cells[row]; !cell.Missing {
				vals[g][c.Name] = append(vals[g][c.Name], cell.Num)
			}
		}
	}
	for g := range out {
		for name, v := range vals[g] {
			out[g].Metrics[name] = NumSummary{Count: len(v), Min: floats.Min(v), Max: floats.Max(v), Mean: stat.Mean(v, nil)}
		}
	}
	slices.SortFunc(out, func(a, b GroupResult) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	if len(out) > maxGroups {
		out = out[:maxGroups]
	}
	return out, missing
}

func unfilled(ds *dataset.Dataset) []string {
	if ds.NumRows() == 0 {
		return nil
	}
	var out []string
	for _, c := range ds.Columns {
		if c.MissingCount() == len(c.Cells) {
			out = append(out, c.Name)
		}
	}
	return out
}

// topValues counts distinct texts, most frequent first, ties alphabetical.
func topValues(cells []dataset.Cell, limit int) []CategoryCount {
	counts := map[string]int{}
	for _, c := range cells {
		counts[c.Text]++
	}
	tops := make([]CategoryCount, 0, len(counts))
	for v, n := range counts {
		tops = append(tops, CategoryCount{Value: v, Count: n})
	}
	slices.SortFunc(tops, func(a, b CategoryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Value, b.Value)
	})
	return tops[:min(limit, len(tops))]
}

var dateLayouts = []string{
	time.RFC3339, time.DateOnly, time.DateTime, "2006/01/02", "2006-01-02 15:04",
	"01/02/2006", "02/01/2006", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

func allDatetime(cells []dataset.Cell) bool {
	return !slices.ContainsFunc(cells, func(c dataset.Cell) bool {
		return !isDate(strings.TrimSpace(c.Text))
	})
}

func isDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// robustOutliers counts values whose modified z-score 0.6745*(x-median)/MAD
// exceeds thr and reports the largest score seen.
func robustOutliers(vals []float64, thr float64) (int, float64) {
	sorted := slices.Clone(vals)
	slices.Sort(sorted)
	med := median(sorted)
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - med)
	}
	slices.Sort(dev)
	mad := median(dev)
	if mad == 0 {
		return 0, 0
	}
	var n int
	var top float64
	for _, v := range vals {
		z := 0.6745 * math.Abs(v-med) / mad
		if z > thr {
			n++
		}
		top = max(top, z)
	}
	return n, top
}

// median of an ascending slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n%2 == 1:
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
