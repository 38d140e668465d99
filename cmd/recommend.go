package cmd

import (
	"fmt"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	recRead   readFlags
	recTarget string
	recJSON   bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <file>",
	Short: "Suggest a model family (classification or regression) for a target column",
	Example: `  edaloom recommend data.csv --target churned
  edaloom recommend data.csv -t price --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if recTarget == "" {
			return fmt.Errorf("--target is required")
		}
		in, _, err := recRead.loadCleaned(args[0])
		if err != nil {
			return err
		}
		rec, err := analysis.Recommend(in.ds, recTarget)
		if err != nil {
			return fmt.Errorf("%w (columns: %v)", err, in.ds.Names())
		}
		out := cmd.OutOrStdout()
		if recJSON {
			b, err := utils.PrettyJSON(struct {
				analysis.Recommendation
				Examples []string `json:"examples"`
			}{rec, rec.Family.Examples()})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprintln(out, rec.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recRead.register(recommendCmd)
	recommendCmd.Flags().StringVarP(&recTarget, "target", "t", "", "target column (required)")
	recommendCmd.Flags().BoolVar(&recJSON, "json", false, "print the recommendation as JSON")
}
