package cmd

import (
	"fmt"
	"log/slog"
	"os"

	cfgpkg "github.com/KaramelBytes/edaloom-cli/internal/config"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	cfgFile            string
	debug              bool
	flagHTTPTimeoutSec int

	cfg *cfgpkg.Global
	// logger carries diagnostics only; user-facing output is printed.
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "edaloom",
	Short: "EdaLoom CLI: clean, profile and explain tabular datasets",
	Long: `EdaLoom ingests a CSV/TSV/XLSX dataset, fills missing values (mode for text
columns, mean for numeric ones), writes the cleaned file, builds an HTML
profiling report and a correlation heatmap, asks a remote analysis service for
insights, and suggests a model family for a target column.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "path to the YAML config (default ~/.edaloom/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "log diagnostics at debug level")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "timeout for remote calls in seconds; overrides http_timeout_sec")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Local commands still work with zero values.
		fmt.Fprintf(os.Stderr, "⚠ Warning: config not loaded (%v); using defaults\n", err)
		c = &cfgpkg.Global{}
	}
	if rootCmd.PersistentFlags().Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		c.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	cfg = c

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	logger = utils.NewLogger(level, cfg.LogJSON)
	slog.SetDefault(logger)
}

// config returns the loaded configuration, loading it on demand when a
// command runs outside Execute (as the tests do).
func config() *cfgpkg.Global {
	if cfg == nil {
		loadConfig()
	}
	return cfg
}
