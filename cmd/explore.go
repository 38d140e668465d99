package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/clean"
	"github.com/KaramelBytes/edaloom-cli/internal/report"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	expRead       readFlags
	expOutDir     string
	expTarget     string
	expNoInsights bool
	expPreview    int
)

// stepResult is the outcome of one pipeline step; a failed step never stops the others.
type stepResult struct {
	name string
	ok   string
	warn string
	err  error
}

func (s stepResult) print(w io.Writer) {
	switch {
	case s.err != nil:
		fmt.Fprintf(w, "✗ %s: %v\n", s.name, s.err)
	case s.warn != "":
		fmt.Fprintf(w, "⚠ %s\n", s.warn)
	case s.ok != "":
		fmt.Fprintf(w, "✓ %s\n", s.ok)
	}
}

var exploreCmd = &cobra.Command{
	Use:   "explore <file>",
	Short: "Run the full pipeline: clean, report, heatmap, insights and recommendation",
	Long: `Reads a CSV/TSV/XLSX file and runs every step in order:

  1. preview the data
  2. fill missing values (mode for text columns, mean for numeric ones)
  3. write cleaned_dataset.csv
  4. write EDA_Report.html
  5. write heatmap.png (or warn when there are no numeric columns)
  6. print insights from the remote analysis service
  7. print a model-family recommendation for --target

A failing step is reported and the remaining steps still run.`,
	Example: `  edaloom explore sales.csv --target churned
  edaloom explore survey.xlsx --sheet-name Responses --out-dir reports --no-insights`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		out := cmd.OutOrStdout()
		src := args[0]
		dir := outDir(expOutDir)

		in, err := expRead.load(src)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Loaded %s: %s rows × %d columns (%s)\n\n", in.ds.Name,
			humanize.Comma(int64(in.ds.NumRows())), len(in.ds.Columns), humanize.Bytes(uint64(in.size)))

		if expPreview > 0 {
			fmt.Fprintln(out, "Dataset Preview")
			fmt.Fprintln(out, report.PreviewTable(in.ds, expPreview))
		}
		sum := clean.Impute(in.ds)
		fmt.Fprintln(out, report.ImputationTable(sum))

		cleaned := stepResult{name: "cleaned dataset"}
		cleanedPath := utils.OutputPath(dir, cleanedName(in.ds, &expRead))
		if n, err := writeCleaned(in.ds, cleanedPath, outputDelimiter(in.ds, &expRead)); err != nil {
			cleaned.err = err
		} else {
			cleaned.ok = fmt.Sprintf("Wrote cleaned dataset to %s (%s)", cleanedPath, humanize.Bytes(uint64(n)))
		}
		cleaned.print(out)

		var reportStep, heatmapStep, insightsStep stepResult
		var insightsText string
		rep := analysis.Profile(in.ds, analysis.DefaultOptions())

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			reportStep = stepResult{name: "report"}
			b, err := report.HTML(report.Input{Profile: rep, Imputation: &sum, SizeBytes: in.size, Generated: time.Now().UTC()})
			if err != nil {
				reportStep.err = err
				return nil
			}
			path := utils.OutputPath(dir, reportFileName)
			if err := utils.SafeWriteFile(path, b); err != nil {
				reportStep.err = fmt.Errorf("write report: %w", err)
				return nil
			}
			reportStep.ok = fmt.Sprintf("Wrote report to %s", path)
			return nil
		})
		g.Go(func() error {
			heatmapStep = stepResult{name: "heatmap"}
			path, err := writeHeatmap(rep.Corr, "", dir)
			switch {
			case report.IsWarning(err):
				heatmapStep.warn = err.Error()
			case err != nil:
				heatmapStep.err = err
			default:
				heatmapStep.ok = fmt.Sprintf("Wrote heatmap to %s", path)
			}
			return nil
		})
		if !expNoInsights {
			g.Go(func() error {
				insightsStep = stepResult{name: "insights"}
				client, err := newInsightsClient()
				if err != nil {
					insightsStep.warn = fmt.Sprintf("Skipping insights: %v", err)
					return nil
				}
				insightsText = requestInsights(gctx, client, in.ds, cmd.ErrOrStderr())
				return nil
			})
		}
		_ = g.Wait()

		reportStep.print(out)
		heatmapStep.print(out)
		if !expNoInsights {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "AI-Powered Insights")
			if insightsText != "" {
				fmt.Fprintln(out, insightsText)
			}
			insightsStep.print(out)
		}

		if expTarget != "" {
			fmt.Fprintln(out)
			rec, err := analysis.Recommend(in.ds, expTarget)
			if err != nil {
				stepResult{name: "recommendation", err: fmt.Errorf("%w (columns: %v)", err, in.ds.Names())}.print(out)
			} else {
				fmt.Fprintln(out, rec.String())
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exploreCmd)
	expRead.register(exploreCmd)
	exploreCmd.Flags().StringVar(&expOutDir, "out-dir", "", "directory for generated files (default: output_dir from config)")
	exploreCmd.Flags().StringVarP(&expTarget, "target", "t", "", "target column for the model recommendation")
	exploreCmd.Flags().BoolVar(&expNoInsights, "no-insights", false, "skip the remote insights request")
	exploreCmd.Flags().IntVar(&expPreview, "preview", 5, "rows to preview (0 = none)")
}
