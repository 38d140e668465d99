package report

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"math"
	"strings"
	"time"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/clean"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

//go:embed templates/report.html.tmpl
var reportTemplate string

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"bytes": func(n int64) string { return humanize.Bytes(uint64(n)) },
	"pct":   func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"num":   func(f float64) string { return fmt.Sprintf("%.4g", f) },
	"corr":  analysis.FormatR,
	"corrStyle": func(r float64) template.CSS {
		c := nanGray
		if !math.IsNaN(r) {
			c = coolwarm(r)
		}
		return template.CSS(fmt.Sprintf("background-color: rgb(%d,%d,%d)", c.R, c.G, c.B))
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}).Parse(reportTemplate))

// Input is everything the HTML report shows.
type Input struct {
	Title string
	// SizeBytes is the size of the uploaded file, if known.
	SizeBytes  int64
	Profile    *analysis.Report
	Imputation *clean.Summary
	// Generated defaults to the current time.
	Generated time.Time
}

type htmlView struct {
	Input
	RunID     string
	Columns   []string
	Heatmap   template.URL
	Warning   string
	TopPairs  []analysis.PairCorr
	Timestamp string
}

// WriteHTML renders a single self-contained HTML profiling report. The
// heatmap is embedded as a PNG data URI.
func WriteHTML(w io.Writer, in Input) error {
	if in.Profile == nil {
		return errors.New("report: profile is required")
	}
	if in.Title == "" {
		in.Title = "Exploratory Data Analysis Report"
	}
	if in.Generated.IsZero() {
		in.Generated = time.Now()
	}
	v := htmlView{
		Input:     in,
		RunID:     uuid.NewString(),
		Timestamp: in.Generated.UTC().Format(time.RFC3339),
		TopPairs:  in.Profile.Corr.TopPairs(10),
	}
	for _, c := range in.Profile.Cols {
		v.Columns = append(v.Columns, c.Name)
	}
	if in.Profile.Corr == nil {
		v.Warning = NoNumericWarning
	} else {
		var buf bytes.Buffer
		switch err := Heatmap(in.Profile.Corr, &buf); {
		case IsWarning(err):
			v.Warning = err.Error()
		case err != nil:
			return err
		default:
			v.Heatmap = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
		}
	}
	if err := reportTmpl.Execute(w, v); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// HTML renders the report into memory.
func HTML(in Input) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, in); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
