package cmd

import (
	"fmt"
	"time"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/clean"
	"github.com/KaramelBytes/edaloom-cli/internal/report"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	proRead       readFlags
	proMarkdown   bool
	proOutputPath string
	proHTML       bool
	proOutDir     string
	proSampleRows int
	proGroupBy    []string
	proNoCorr     bool
	proOutlierThr float64
	proRaw        bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Profile a dataset: column types, missing values, statistics and correlations",
	Example: `  edaloom profile data.csv
  edaloom profile data.csv --markdown -o summary.md
  edaloom profile data.csv --group-by region --html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			in  *input
			sum *clean.Summary
			err error
		)
		if proRaw {
			in, err = proRead.load(args[0])
		} else {
			var s clean.Summary
			in, s, err = proRead.loadCleaned(args[0])
			sum = &s
		}
		if err != nil {
			return err
		}
		opt := analysis.DefaultOptions()
		if proSampleRows >= 0 {
			opt.SampleRows = proSampleRows
		}
		opt.GroupBy = proGroupBy
		opt.Correlations = !proNoCorr
		if proOutlierThr > 0 {
			opt.OutlierThreshold = proOutlierThr
		}
		rep := analysis.Profile(in.ds, opt)

		out := cmd.OutOrStdout()
		if proMarkdown || proOutputPath != "" {
			md := rep.Markdown()
			if proOutputPath != "" {
				if err := utils.SafeWriteFile(proOutputPath, []byte(md)); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Fprintf(out, "✓ Wrote profile to %s\n", proOutputPath)
			} else {
				fmt.Fprint(out, md)
			}
		} else {
			fmt.Fprintln(out, report.SummaryTable(rep))
			if opt.Correlations {
				fmt.Fprintln(out, report.HeatmapText(rep.Corr))
			}
		}

		if proHTML {
			if rep.Corr == nil {
				rep.Corr = analysis.Correlations(in.ds)
			}
			b, err := report.HTML(report.Input{Profile: rep, Imputation: sum, SizeBytes: in.size, Generated: time.Now().UTC()})
			if err != nil {
				return err
			}
			path := utils.OutputPath(outDir(proOutDir), reportFileName)
			if err := utils.SafeWriteFile(path, b); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote report to %s\n", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	proRead.register(profileCmd)
	profileCmd.Flags().BoolVar(&proMarkdown, "markdown", false, "print a Markdown summary instead of tables")
	profileCmd.Flags().StringVarP(&proOutputPath, "output", "o", "", "write the Markdown summary to this path")
	profileCmd.Flags().BoolVar(&proHTML, "html", false, "also write "+reportFileName)
	profileCmd.Flags().StringVar(&proOutDir, "out-dir", "", "directory for the HTML report (default: output_dir from config)")
	profileCmd.Flags().IntVar(&proSampleRows, "sample-rows", -1, "sample rows in the Markdown summary (default 5)")
	profileCmd.Flags().StringSliceVar(&proGroupBy, "group-by", nil, "group numeric summaries by these columns")
	profileCmd.Flags().BoolVar(&proNoCorr, "no-corr", false, "skip the correlation matrix")
	profileCmd.Flags().Float64Var(&proOutlierThr, "outlier-threshold", 0, "robust z-score threshold for outliers (default 3.5)")
	profileCmd.Flags().BoolVar(&proRaw, "raw", false, "profile the data as read, without imputing missing values")
}
