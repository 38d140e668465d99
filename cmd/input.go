package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/edaloom-cli/internal/clean"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/KaramelBytes/edaloom-cli/internal/metrics"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// readFlags are the dataset parsing flags shared by every command that takes a file.
type readFlags struct {
	delimiter  string
	decimal    string
	maxRows    int
	sheetName  string
	sheetIndex int
}

func (f *readFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (default: auto-detect)")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.' or 'comma'")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "limit rows read (0 = all)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to read")
	cmd.Flags().IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not set)")
}

func (f *readFlags) options() (dataset.ReadOptions, error) {
	opt := dataset.DefaultReadOptions()
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot", "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	opt.MaxRows = f.maxRows
	opt.SheetName = f.sheetName
	if f.sheetIndex > 0 {
		opt.SheetIndex = f.sheetIndex
	}
	return opt, nil
}

// input is a dataset read from disk together with its size on disk.
type input struct {
	path string
	size int64
	ds   *dataset.Dataset
}

func (f *readFlags) load(path string) (*input, error) {
	opt, err := f.options()
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}
	ds, err := dataset.Load(path, opt)
	if err != nil {
		return nil, err
	}
	metrics.ObserveIngest("file")
	logger.Debug("dataset loaded", "path", path, "rows", ds.NumRows(), "cols", len(ds.Columns), "size", humanize.Bytes(uint64(st.Size())))
	return &input{path: path, size: st.Size(), ds: ds}, nil
}

// loadCleaned loads path and imputes missing values in place.
func (f *readFlags) loadCleaned(path string) (*input, clean.Summary, error) {
	in, err := f.load(path)
	if err != nil {
		return nil, clean.Summary{}, err
	}
	sum := clean.Impute(in.ds)
	logger.Debug("imputed", "before", sum.MissingBefore, "after", sum.MissingAfter, "columns", len(sum.Columns))
	return in, sum, nil
}

// outputDelimiter writes the cleaned file in the input's format: an explicit
// --delimiter wins, then the separator detected while reading.
func outputDelimiter(ds *dataset.Dataset, f *readFlags) rune {
	if opt, err := f.options(); err == nil && opt.Delimiter != 0 {
		return opt.Delimiter
	}
	if ds != nil && ds.Delimiter != 0 {
		return ds.Delimiter
	}
	return ','
}

// outDir resolves the artifact directory: flag, then config.
func outDir(flag string) string {
	if flag != "" {
		return flag
	}
	if c := config(); c != nil && c.OutputDir != "" {
		return c.OutputDir
	}
	return "."
}
