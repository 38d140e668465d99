package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/KaramelBytes/edaloom-cli/internal/ai"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	insRead       readFlags
	insTimeoutSec int
	insRaw        bool
)

var insightsCmd = &cobra.Command{
	Use:   "insights <file>",
	Short: "Ask the remote analysis service for insights about a dataset",
	Long: `Sends the dataset as JSON records together with the task label to the
configured insights endpoint and prints the "insights" field of the answer.
A failed call prints "Error <status>: <message>" or "API Request Failed: <reason>";
there are no retries.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			in  *input
			err error
		)
		if insRaw {
			in, err = insRead.load(args[0])
		} else {
			in, _, err = insRead.loadCleaned(args[0])
		}
		if err != nil {
			return err
		}
		client, err := newInsightsClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if insTimeoutSec > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(insTimeoutSec)*time.Second)
			defer cancel()
		}
		fmt.Fprintln(cmd.OutOrStdout(), requestInsights(ctx, client, in.ds, cmd.ErrOrStderr()))
		return nil
	},
}

func newInsightsClient() (*ai.InsightsClient, error) {
	c := config()
	if c.APIKey == "" {
		return nil, fmt.Errorf("api_key is not set (run: edaloom config set api_key <key> or export EDALOOM_API_KEY)")
	}
	return ai.NewInsightsClient(c.APIKey, c.InsightsURL, c.InsightsTask, c.HTTPTimeout()), nil
}

// requestInsights runs one insights call and returns the text to display.
// Payload size warnings go to warn.
func requestInsights(ctx context.Context, client *ai.InsightsClient, ds *dataset.Dataset, warn io.Writer) string {
	records, err := ds.RecordsJSON()
	if err != nil {
		return ai.DisplayText(nil, err)
	}
	if n, big := utils.OversizedPayload(records); big {
		fmt.Fprintf(warn, "⚠ Warning: payload is ~%d tokens; the service may reject it\n", n)
	}
	resp, err := client.AnalyzeRecords(ctx, records)
	if err != nil {
		logger.Debug("insights call failed", "err", err)
	} else {
		logger.Debug("insights call done", "request_id", resp.RequestID, "elapsed", resp.Duration)
	}
	return ai.DisplayText(resp, err)
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insRead.register(insightsCmd)
	insightsCmd.Flags().IntVar(&insTimeoutSec, "timeout", 0, "overall deadline in seconds (0 = HTTP timeout only)")
	insightsCmd.Flags().BoolVar(&insRaw, "raw", false, "send the data as read, without imputing missing values")
}
