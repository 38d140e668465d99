package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// ReadOptions controls delimited-text ingestion.
type ReadOptions struct {
	// Delimiter for CSV. If 0, auto-detects among ',', ';', '\t'.
	Delimiter rune
	// DecimalSeparator '.' (default) or ','.
	DecimalSeparator rune
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	// XLSX sheet selection. SheetIndex is 1-based.
	SheetName  string
	SheetIndex int
}

// DefaultReadOptions returns options suited to ordinary comma-separated files.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{DecimalSeparator: '.', SheetIndex: 1}
}

// Load reads a dataset from disk, choosing the reader by extension.
func Load(path string, opt ReadOptions) (*Dataset, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".xlsx") {
		return ReadXLSX(path, opt)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 && strings.HasSuffix(lower, ".tsv") {
		opt.Delimiter = '\t'
	}
	return Read(f, filepath.Base(path), opt)
}

// Read parses delimited text with a header row into a Dataset.
func Read(r io.Reader, name string, opt ReadOptions) (*Dataset, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(br)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	// Trimming would swallow empty leading fields when the delimiter is a tab.
	cr.TrimLeadingSpace = delim != '\t'
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Dataset{Name: name}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = dedupeHeader(header)
	ncol := len(header)

	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	raw := make([][]string, ncol)
	rows := 0
	for rows < maxRows {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", rows+1, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && ncol > 1 {
			continue
		}
		if len(rec) > ncol {
			return nil, fmt.Errorf("read row %d: expected %d fields, saw %d", rows+1, ncol, len(rec))
		}
		for j := 0; j < ncol; j++ {
			v := ""
			if j < len(rec) {
				v = rec[j]
			}
			raw[j] = append(raw[j], v)
		}
		rows++
	}
	ds := build(name, header, raw, opt)
	ds.Delimiter = delim
	return ds, nil
}

func build(name string, header []string, raw [][]string, opt ReadOptions) *Dataset {
	ds := &Dataset{Name: name, Columns: make([]*Column, len(header))}
	for j, h := range header {
		ds.Columns[j] = NewColumn(h, raw[j], opt)
	}
	return ds
}

// dedupeHeader names blank headers "Unnamed: i" and suffixes repeats with ".1", ".2", ...
func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	used := map[string]bool{}
	suffix := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		base := h
		for used[h] {
			suffix[base]++
			h = fmt.Sprintf("%s.%d", base, suffix[base])
		}
		used[h] = true
		out[i] = h
	}
	return out
}

// sniffDelimiter inspects the first line and picks the most frequent of
// ',', ';' and '\t'. Ties and empty input fall back to comma.
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	line := string(peek)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestN := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// WriteCSV writes the dataset with a header row. Numeric cells use the
// shortest round-trip form and missing cells are written empty.
func (d *Dataset) WriteCSV(w io.Writer, delim rune) error {
	if delim == 0 {
		delim = ','
	}
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(d.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(d.Columns))
	for i := 0; i < d.NumRows(); i++ {
		for j, c := range d.Columns {
			cell := c.Cells[i]
			switch {
			case cell.Missing:
				rec[j] = ""
			case c.Kind == Numeric:
				rec[j] = FormatNumber(cell.Num)
			default:
				rec[j] = cell.Text
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVBytes renders the dataset as comma-separated UTF-8 bytes.
func (d *Dataset) CSVBytes() ([]byte, error) {
	var b strings.Builder
	if err := d.WriteCSV(&b, ','); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}
