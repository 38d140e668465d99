package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// maxGroupMetrics caps the numeric columns listed per group.
const maxGroupMetrics = 6

// Markdown renders the profile as a GitHub-flavored Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	title := "Dataset profile"
	if r.Name != "" {
		title += ": " + mdCell(r.Name)
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	writeTable(&b, []string{"Rows", "Columns", "Missing cells", "Duplicate rows"}, "rrrr", [][]string{{
		strconv.Itoa(r.Rows), strconv.Itoa(len(r.Cols)), strconv.Itoa(r.Missing), strconv.Itoa(r.Duplicates),
	}})

	b.WriteString("\n## Columns\n\n")
	rows := make([][]string, 0, len(r.Cols))
	for _, c := range r.Cols {
		rows = append(rows, []string{
			safeName(c.Name), c.Kind, strconv.Itoa(c.NonNull),
			fmt.Sprintf("%.1f%%", c.MissingPct()), strconv.Itoa(c.Unique), columnDetail(c),
		})
	}
	writeTable(&b, []string{"Column", "Kind", "Non-null", "Missing", "Unique", "Summary"}, "llrrrl", rows)

	if len(r.Groups) > 0 {
		b.WriteString("\n## Group-by\n")
		for _, g := range r.Groups {
			fmt.Fprintf(&b, "\n### %s (n=%d)\n\n", mdCell(g.Key), g.Size)
			names := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				names = append(names, k)
			}
			sort.Strings(names)
			if len(names) > maxGroupMetrics {
				names = names[:maxGroupMetrics]
			}
			rows := make([][]string, 0, len(names))
			for _, k := range names {
				m := g.Metrics[k]
				rows = append(rows, []string{safeName(k), num(m.Mean), num(m.Min), num(m.Max)})
			}
			writeTable(&b, []string{"Column", "Mean", "Min", "Max"}, "lrrr", rows)
		}
	}

	if pairs := r.Corr.TopPairs(10); len(pairs) > 0 {
		b.WriteString("\n## Correlations\n\n")
		rows := make([][]string, 0, len(pairs))
		for _, p := range pairs {
			rows = append(rows, []string{safeName(p.A), safeName(p.B), fmt.Sprintf("%.3f", p.R)})
		}
		writeTable(&b, []string{"Column", "Column", "r"}, "llr", rows)
	}

	if len(r.Samples) > 0 {
		b.WriteString("\n## Sample rows\n\n")
		header := make([]string, len(r.Cols))
		for i, c := range r.Cols {
			header[i] = safeName(c.Name)
		}
		rows := make([][]string, 0, len(r.Samples))
		for _, s := range r.Samples {
			row := make([]string, len(r.Cols))
			for i := range row {
				if i < len(s) {
					row[i] = clip(s[i], 80)
				}
			}
			rows = append(rows, row)
		}
		writeTable(&b, header, strings.Repeat("l", len(header)), rows)
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func columnDetail(c ColumnSummary) string {
	var parts []string
	switch c.Kind {
	case "numeric":
		if c.NonNull > 0 {
			parts = append(parts, fmt.Sprintf("min %s, max %s, mean %s, std %s", num(c.Min), num(c.Max), num(c.Mean), num(c.Std)))
		}
		if c.OutlierThreshold > 0 {
			o := fmt.Sprintf("outliers: %d (robust z > %.1f", c.OutliersCount, c.OutlierThreshold)
			if c.OutliersMaxAbsZ > 0 {
				o += fmt.Sprintf(", max %.2f", c.OutliersMaxAbsZ)
			}
			parts = append(parts, o+")")
		}
	case "categorical":
		top := make([]string, 0, len(c.TopValues))
		for _, kv := range c.TopValues {
			top = append(top, fmt.Sprintf("%s (%d)", kv.Value, kv.Count))
		}
		if len(top) > 0 {
			parts = append(parts, strings.Join(top, ", "))
		}
	case "text":
		if len(c.ExampleTexts) > 0 {
			parts = append(parts, "e.g. "+strings.Join(c.ExampleTexts, " / "))
		}
	}
	return strings.Join(parts, "; ")
}

// writeTable emits a Markdown table; align holds 'l' or 'r' per column.
func writeTable(b *strings.Builder, header []string, align string, rows [][]string) {
	line := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(mdCell(c))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	line(header)
	b.WriteString("|")
	for i := range header {
		if i < len(align) && align[i] == 'r' {
			b.WriteString("---:|")
		} else {
			b.WriteString("---|")
		}
	}
	b.WriteString("\n")
	for _, row := range rows {
		line(row)
	}
}

func num(f float64) string { return strconv.FormatFloat(f, 'g', 4, 64) }

// FormatR renders a correlation coefficient, leaving undefined values blank.
func FormatR(r float64) string {
	if math.IsNaN(r) {
		return ""
	}
	return fmt.Sprintf("%.2f", r)
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

// mdCell keeps a value on one line and escapes table pipes.
func mdCell(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "|", `\|`).Replace(s)
	return s
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
