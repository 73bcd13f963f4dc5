package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datatidy-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/datatidy-cli/internal/config"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
	"github.com/KaramelBytes/datatidy-cli/internal/logging"
)

var (
	cfgFile  string
	debug    bool
	logLevel string
	logJSON  bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec    int
	flagRetryMaxAttempts  int
	flagRetryBaseDelayMs  int
	flagRetryMaxDelayMs   int
	flagRequestsPerMinute int

	// Loaded configuration, or the error that prevented loading it.
	cfg    *cfgpkg.Global
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "datatidy",
	Short: "DataTidy CLI: profile, diagnose and clean tabular data",
	Long: `DataTidy loads a CSV, XLSX or XLS file, profiles every column, asks an LLM
for an advisory list of data quality issues, and applies a fixed set of
cleaning rules (sparse row drop, dedup, imputation, normalization). The
cleaned data is written as CSV together with a before/after report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.datatidy/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON on stderr")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRequestsPerMinute, "rpm", 0, "LLM requests per minute across a run (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		cfg, cfgErr = nil, err
		return
	}
	cfg, cfgErr = c, nil

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	if f.Changed("rpm") {
		cfg.RequestsPerMinute = flagRequestsPerMinute
	}
	if f.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	if f.Changed("log-json") {
		cfg.LogJSON = logJSON
	}
	if err := logging.Initialize(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON}); err != nil {
		fmt.Fprint(os.Stderr, pterm.Warning.Sprintf("logging setup failed: %v\n", err))
	}

	if cfg.ModelsCatalog != "" {
		m, err := ai.LoadCatalogFromJSON(cfg.ModelsCatalog)
		if err != nil {
			logging.Logger.Warnw("model catalog not loaded", "path", cfg.ModelsCatalog, "error", err)
		} else {
			ai.MergeCatalog(m)
			logging.Logger.Debugw("model catalog merged", "path", cfg.ModelsCatalog, "models", len(m))
		}
	}
}

// requireConfig returns the loaded configuration or the reason it is missing.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	if cfgErr != nil {
		return nil, cfgErr
	}
	loadConfig()
	if cfgErr != nil {
		return nil, cfgErr
	}
	return cfg, nil
}

// printError writes err and any hints attached to it.
func printError(w io.Writer, err error) {
	fmt.Fprint(w, pterm.Error.Sprintln(err.Error()))
	if hints := errors.FlattenHints(err); hints != "" {
		for _, h := range strings.Split(hints, "\n") {
			if h = strings.TrimSpace(h); h != "" && !strings.HasPrefix(h, "--") {
				fmt.Fprint(w, pterm.Info.Sprintln(h))
			}
		}
	}
}
