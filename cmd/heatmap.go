package cmd

import (
	"bytes"
	"fmt"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/report"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	hmRead   readFlags
	hmOutput string
	hmOutDir string
	hmText   bool
)

var heatmapCmd = &cobra.Command{
	Use:   "heatmap <file>",
	Short: "Render the correlation heatmap of the numeric columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, _, err := hmRead.loadCleaned(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		m := analysis.Correlations(in.ds)
		if hmText {
			fmt.Fprintln(out, report.HeatmapText(m))
			return nil
		}
		path, err := writeHeatmap(m, hmOutput, hmOutDir)
		if report.IsWarning(err) {
			fmt.Fprintf(out, "⚠ %s\n", err)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote heatmap to %s\n", path)
		return nil
	},
}

func writeHeatmap(m *analysis.CorrMatrix, output, dir string) (string, error) {
	var buf bytes.Buffer
	if err := report.Heatmap(m, &buf); err != nil {
		return "", err
	}
	path := output
	if path == "" {
		path = utils.OutputPath(outDir(dir), heatmapFileName)
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("write heatmap: %w", err)
	}
	return path, nil
}

func init() {
	rootCmd.AddCommand(heatmapCmd)
	hmRead.register(heatmapCmd)
	heatmapCmd.Flags().StringVarP(&hmOutput, "output", "o", "", "write the PNG to this path")
	heatmapCmd.Flags().StringVar(&hmOutDir, "out-dir", "", "directory for "+heatmapFileName+" (default: output_dir from config)")
	heatmapCmd.Flags().BoolVar(&hmText, "text", false, "print the matrix as a table instead of writing a PNG")
}
