package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/edaloom-cli/internal/ai"
	"github.com/KaramelBytes/edaloom-cli/internal/metrics"
	"github.com/KaramelBytes/edaloom-cli/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	srvAddr        string
	srvMaxUploadMB int
	srvMaxSessions int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP upload service",
	Long: `Serves the explore pipeline over HTTP: upload a file to /api/sessions, then
download cleaned_dataset.csv, EDA_Report.html and the heatmap, request insights
and model recommendations per session. Prometheus metrics are on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := config()
		if srvAddr != "" {
			c.ListenAddr = srvAddr
		}
		if srvMaxUploadMB > 0 {
			c.MaxUploadMB = srvMaxUploadMB
		}
		if srvMaxSessions > 0 {
			c.MaxSessions = srvMaxSessions
		}
		if c.APIKey == "" {
			fmt.Fprintln(os.Stderr, "⚠ Warning: api_key is not set; insights requests will fail")
		}
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		insights := ai.NewInsightsClient(c.APIKey, c.InsightsURL, c.InsightsTask, c.HTTPTimeout())
		srv := server.New(server.Config{
			Address:        c.ListenAddr,
			MaxUploadBytes: c.MaxUploadBytes(),
			MaxSessions:    c.MaxSessions,
		}, insights, logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(gctx) })
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("stopping", "reason", context.Cause(gctx))
			return nil
		})
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Listening on http://%s\n", c.ListenAddr)
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default: listen_addr from config)")
	serveCmd.Flags().IntVar(&srvMaxUploadMB, "max-upload-mb", 0, "maximum upload size in MB (default: max_upload_mb from config)")
	serveCmd.Flags().IntVar(&srvMaxSessions, "max-sessions", 0, "sessions kept in memory (default: max_sessions from config)")
}
