package cmd

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/edaloom-cli/internal/ai"
	"github.com/spf13/cobra"
)

var (
	pingModel     string
	pingMaxTokens int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the chat-completion API key is accepted",
	Long: `Sends a single short chat completion ("` + ai.PingPrompt + `") with the
configured chat_api_key and reports whether the key works. On rejection the
status code and response body are printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := config()
		if c.ChatAPIKey == "" {
			return fmt.Errorf("chat_api_key is not set (run: edaloom config set chat_api_key <key> or export EDALOOM_CHAT_API_KEY)")
		}
		model := c.ChatModel
		if pingModel != "" {
			model = pingModel
		}
		maxTokens := c.ChatMaxTokens
		if pingMaxTokens > 0 {
			maxTokens = pingMaxTokens
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		client := ai.NewChatClient(c.ChatAPIKey, c.ChatURL, model, maxTokens, c.HTTPTimeout())
		res, err := client.Ping(ctx)
		if err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		out := cmd.OutOrStdout()
		if res.OK {
			fmt.Fprintln(out, "✓ API key is working!")
			fmt.Fprintf(out, "Model: %s\n", res.Model)
			if res.Reply != "" {
				fmt.Fprintf(out, "Reply: %s\n", res.Reply)
			}
			if res.Usage.TotalTokens > 0 {
				fmt.Fprintf(out, "Tokens: %d\n", res.Usage.TotalTokens)
			}
			return nil
		}
		fmt.Fprintf(out, "✗ API key is NOT working! Status Code: %d\n", res.StatusCode)
		fmt.Fprintln(out, res.Body)
		logger.Debug("ping rejected", "err", res.Err, "request_id", res.RequestID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().StringVar(&pingModel, "model", "", "chat model (default: chat_model from config)")
	pingCmd.Flags().IntVar(&pingMaxTokens, "max-tokens", 0, "max tokens for the reply (default: chat_max_tokens from config)")
}
