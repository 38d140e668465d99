package report

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/clean"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxCellWidth = 32

func newWriter() table.Writer {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	// Column names are data; keep their case.
	w.Style().Format.Header = text.FormatDefault
	return w
}

func headerRow(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	return row
}

// PreviewTable renders the first n rows of ds. Missing cells show as NaN.
func PreviewTable(ds *dataset.Dataset, n int) string {
	w := newWriter()
	w.AppendHeader(headerRow(ds.Names()...))
	rows := ds.NumRows()
	if n < 0 || n > rows {
		n = rows
	}
	for i := 0; i < n; i++ {
		row := make(table.Row, len(ds.Columns))
		for j, c := range ds.Columns {
			cell := c.Cells[i]
			if cell.Missing {
				row[j] = "NaN"
				continue
			}
			row[j] = truncate(cell.Text, maxCellWidth)
		}
		w.AppendRow(row)
	}
	if n < rows {
		w.SetCaption("%s of %s rows", humanize.Comma(int64(n)), humanize.Comma(int64(rows)))
	}
	return w.Render()
}

// SummaryTable renders one line per profiled column.
func SummaryTable(rep *analysis.Report) string {
	w := newWriter()
	w.AppendHeader(headerRow("Column", "Kind", "Non-null", "Missing", "Unique", "Mean", "Std", "Min", "Max"))
	for _, c := range rep.Cols {
		row := table.Row{c.Name, c.Kind, humanize.Comma(int64(c.NonNull)), fmt.Sprintf("%d (%.1f%%)", c.Missing, c.MissingPct()), c.Unique, "", "", "", ""}
		if c.Kind == "numeric" && c.NonNull > 0 {
			row[5] = fmt.Sprintf("%.4g", c.Mean)
			row[6] = fmt.Sprintf("%.4g", c.Std)
			row[7] = fmt.Sprintf("%.4g", c.Min)
			row[8] = fmt.Sprintf("%.4g", c.Max)
		}
		w.AppendRow(row)
	}
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMax: maxCellWidth},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	w.SetCaption("%s rows, %s columns, %s missing cells, %s duplicate rows",
		humanize.Comma(int64(rep.Rows)), humanize.Comma(int64(len(rep.Cols))),
		humanize.Comma(int64(rep.Missing)), humanize.Comma(int64(rep.Duplicates)))
	return w.Render()
}

// ImputationTable lists the fill applied to each touched column.
func ImputationTable(sum clean.Summary) string {
	w := newWriter()
	w.AppendHeader(headerRow("Column", "Strategy", "Filled", "Value"))
	for _, c := range sum.Columns {
		strategy := "mean"
		if c.Kind == dataset.Categorical {
			strategy = "mode"
		}
		w.AppendRow(table.Row{c.Name, strategy, c.Filled, truncate(c.FillValue, maxCellWidth)})
	}
	for _, name := range sum.Unfillable {
		w.AppendRow(table.Row{name, "none", 0, "(no values)"})
	}
	w.SetCaption("%s", sum.String())
	return w.Render()
}

// HeatmapText renders the correlation matrix with two-decimal coefficients.
// A nil matrix yields the no-numeric warning.
func HeatmapText(m *analysis.CorrMatrix) string {
	if m == nil {
		return NoNumericWarning
	}
	w := newWriter()
	w.AppendHeader(append(table.Row{""}, headerRow(m.Columns...)...))
	for i, name := range m.Columns {
		row := make(table.Row, 0, len(m.Columns)+1)
		row = append(row, name)
		for _, r := range m.Values[i] {
			row = append(row, analysis.FormatR(r))
		}
		w.AppendRow(row)
	}
	cfg := make([]table.ColumnConfig, 0, len(m.Columns))
	for i := range m.Columns {
		cfg = append(cfg, table.ColumnConfig{Number: i + 2, Align: text.AlignRight})
	}
	w.SetColumnConfigs(cfg)
	return w.Render()
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
