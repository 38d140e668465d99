package cmd

import (
	"bytes"
	"fmt"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/KaramelBytes/edaloom-cli/internal/report"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const (
	cleanedFileName = "cleaned_dataset.csv"
	reportFileName  = "EDA_Report.html"
	heatmapFileName = "heatmap.png"
)

var (
	clnRead    readFlags
	clnOutput  string
	clnOutDir  string
	clnPreview int
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Fill missing values (mode for text, mean for numbers) and write the cleaned file",
	Example: `  edaloom clean data.csv
  edaloom clean data.xlsx --sheet-name Sales -o sales_clean.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, sum, err := clnRead.loadCleaned(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, report.ImputationTable(sum))
		if clnPreview > 0 {
			fmt.Fprintln(out, report.PreviewTable(in.ds, clnPreview))
		}
		path := clnOutput
		if path == "" {
			path = utils.OutputPath(outDir(clnOutDir), cleanedName(in.ds, &clnRead))
		}
		n, err := writeCleaned(in.ds, path, outputDelimiter(in.ds, &clnRead))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote cleaned dataset to %s (%s)\n", path, humanize.Bytes(uint64(n)))
		return nil
	},
}

func cleanedName(ds *dataset.Dataset, f *readFlags) string {
	if outputDelimiter(ds, f) == '\t' {
		return "cleaned_dataset.tsv"
	}
	return cleanedFileName
}

func writeCleaned(ds *dataset.Dataset, path string, delim rune) (int, error) {
	var buf bytes.Buffer
	if err := ds.WriteCSV(&buf, delim); err != nil {
		return 0, fmt.Errorf("encode cleaned dataset: %w", err)
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("write cleaned dataset: %w", err)
	}
	return buf.Len(), nil
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	clnRead.register(cleanCmd)
	cleanCmd.Flags().StringVarP(&clnOutput, "output", "o", "", "write the cleaned file to this path")
	cleanCmd.Flags().StringVar(&clnOutDir, "out-dir", "", "directory for the cleaned file (default: output_dir from config)")
	cleanCmd.Flags().IntVar(&clnPreview, "preview", 5, "rows of the cleaned data to print (0 = none)")
}
