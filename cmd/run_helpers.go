package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/datatidy-cli/internal/ai"
	"github.com/KaramelBytes/datatidy-cli/internal/analysis"
	"github.com/KaramelBytes/datatidy-cli/internal/cleaning"
	cfgpkg "github.com/KaramelBytes/datatidy-cli/internal/config"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
	"github.com/KaramelBytes/datatidy-cli/internal/issues"
	"github.com/KaramelBytes/datatidy-cli/internal/loader"
	"github.com/KaramelBytes/datatidy-cli/internal/logging"
	"github.com/KaramelBytes/datatidy-cli/internal/pipeline"
)

// runFlags are the loading, profiling, cleaning and reporter flags shared by
// clean, profile, issues and clean-batch.
type runFlags struct {
	format    string
	delimiter string
	sheet     string
	decimal   string
	thousands string

	sampleRows int
	threshold  float64
	casePolicy string
	noReimpute bool

	noAI               bool
	provider           string
	model              string
	ollamaHost         string
	reporterTimeoutSec int
}

// addLoadFlags registers the input flags.
func addLoadFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.format, "input-format", "", "input format: csv|xlsx|xls (detected from the extension if omitted)")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (sniffed if omitted)")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "XLSX/XLS: sheet name or 1-based index (first sheet if omitted)")
	cmd.Flags().IntVar(&f.sampleRows, "sample-rows", 0, "rows kept as the profile sample sent to the issue reporter (overrides config)")
}

// addReporterFlags registers the issue reporter flags.
func addReporterFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().BoolVar(&f.noAI, "no-ai", false, "skip the advisory AI issue report")
	cmd.Flags().StringVar(&f.provider, "provider", "", "issue reporter provider: groq|openrouter|ollama (overrides config)")
	cmd.Flags().StringVar(&f.model, "model", "", "issue reporter model (overrides config)")
	cmd.Flags().StringVar(&f.ollamaHost, "ollama-host", "", "Ollama host URL (overrides config)")
	cmd.Flags().IntVar(&f.reporterTimeoutSec, "reporter-timeout", 0, "seconds to wait for the issue report (overrides config)")
}

// addCleanFlags registers the cleaning rule flags.
func addCleanFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "drop rows with more than this fraction of missing cells (overrides config)")
	cmd.Flags().StringVar(&f.casePolicy, "case", "", "case policy for text columns: none|lower|upper|title (overrides config)")
	cmd.Flags().BoolVar(&f.noReimpute, "no-reimpute", false, "leave cells that fail type coercion missing instead of re-imputing them")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
}

func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\t", "\\t", "tab":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, errors.WithHint(errors.Newf("unsupported --delimiter: %s", s), "use ',', ';', 'tab' or '|'")
}

func parseDecimal(s string) (rune, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ",", "comma":
		return ',', nil
	case ".", "dot":
		return '.', nil
	case "":
		return 0, nil
	}
	return 0, errors.Newf("unsupported --decimal: %s (use '.'|'comma')", s)
}

func parseThousands(s string) (rune, error) {
	switch strings.ToLower(s) {
	case ",":
		return ',', nil
	case ".":
		return '.', nil
	case "space", " ":
		return ' ', nil
	case "":
		return 0, nil
	}
	return 0, errors.Newf("unsupported --thousands: %s (use ','|'.'|'space')", s)
}

// loaderOptions converts the input flags. Sheet is a name unless it parses as
// a positive integer.
func loaderOptions(c *cfgpkg.Global, f *runFlags) (loader.Options, error) {
	var opt loader.Options
	if f.format != "" {
		ft, ok := loader.ParseFormat(f.format)
		if !ok {
			return opt, errors.WithHint(errors.Newf("unsupported --input-format: %s", f.format), "use csv, xlsx or xls")
		}
		opt.Format = ft
	}
	d, err := parseDelimiter(f.delimiter)
	if err != nil {
		return opt, err
	}
	opt.Delimiter = d
	if s := strings.TrimSpace(f.sheet); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			opt.SheetIndex = n
		} else {
			opt.SheetName = s
		}
	}
	if c.MaxFileMB > 0 {
		opt.MaxBytes = int64(c.MaxFileMB) << 20
	}
	return opt, nil
}

// pipelineOptions merges config and flags. Flags win only when set on cmd.
func pipelineOptions(cmd *cobra.Command, c *cfgpkg.Global, f *runFlags) (pipeline.Options, error) {
	var opt pipeline.Options
	lo, err := loaderOptions(c, f)
	if err != nil {
		return opt, err
	}
	opt.Load = lo

	opt.Profile = analysis.DefaultOptions()
	if c.SampleRows > 0 {
		opt.Profile.SampleRows = c.SampleRows
	}
	if changed(cmd, "sample-rows") && f.sampleRows >= 0 {
		opt.Profile.SampleRows = f.sampleRows
	}

	opt.Clean = cleaning.DefaultOptions()
	opt.Clean.MissingRowThreshold = cleaning.Threshold(c.MissingRowThreshold)
	if changed(cmd, "threshold") {
		if f.threshold < 0 || f.threshold > 1 {
			return opt, errors.Newf("--threshold must be in [0,1], got %v", f.threshold)
		}
		opt.Clean.MissingRowThreshold = cleaning.Threshold(f.threshold)
	}
	policy := c.CasePolicy
	if changed(cmd, "case") {
		policy = f.casePolicy
	}
	if opt.Clean.CasePolicy, err = cleaning.ParseCasePolicy(policy); err != nil {
		return opt, errors.WithHint(err, "use none, lower, upper or title")
	}
	opt.Clean.NoReimpute = !c.Reimpute || f.noReimpute
	if opt.Clean.NumberFormat.Decimal, err = parseDecimal(f.decimal); err != nil {
		return opt, err
	}
	if opt.Clean.NumberFormat.Thousands, err = parseThousands(f.thousands); err != nil {
		return opt, err
	}

	opt.ReporterTimeout = time.Duration(c.ReporterTimeoutSec) * time.Second
	if changed(cmd, "reporter-timeout") && f.reporterTimeoutSec > 0 {
		opt.ReporterTimeout = time.Duration(f.reporterTimeoutSec) * time.Second
	}
	opt.Logger = logging.Logger
	return opt, nil
}

func changed(cmd *cobra.Command, name string) bool {
	fl := cmd.Flags().Lookup(name)
	return fl != nil && fl.Changed
}

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
	Limiter      *rate.Limiter
}

// resolveProvider picks the provider from the flag or config, mapping the
// usual aliases.
func resolveProvider(c *cfgpkg.Global, flag string) string {
	name := strings.ToLower(strings.TrimSpace(flag))
	if name == "" && c != nil {
		name = strings.ToLower(c.DefaultProvider)
	}
	switch name {
	case "":
		return ai.ProviderGroq
	case "local":
		return ai.ProviderOllama
	case "openai", "anthropic", "google", "gemini", "meta":
		return ai.ProviderOpenRouter
	}
	return name
}

func buildRuntime(c *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 60 * time.Second
	retryMax := 3
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if c.HTTPTimeoutSec > 0 {
		httpTimeout = time.Duration(c.HTTPTimeoutSec) * time.Second
	}
	if c.RetryMaxAttempts > 0 {
		retryMax = c.RetryMaxAttempts
	}
	if c.RetryBaseDelayMs > 0 {
		baseDelay = time.Duration(c.RetryBaseDelayMs) * time.Millisecond
	}
	if c.RetryMaxDelayMs > 0 {
		maxDelay = time.Duration(c.RetryMaxDelayMs) * time.Millisecond
	}

	providerName := resolveProvider(c, opts.ProviderFlag)
	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		Limiter:     opts.Limiter,
		Logger:      logging.Logger,
		APIKey:      c.ResolveAPIKey(providerName),
	}
	if providerName == ai.ProviderOllama {
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" {
			host = c.OllamaHost
		}
		if host == "" {
			host = ai.DefaultOllamaHost
		}
		rc.Host = host
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, errors.WithHintf(errors.Newf("provider not supported: %s", providerName),
			"choose one of: %s", strings.Join(ai.Providers(), ", "))
	}
	return client, providerName, nil
}

func selectModel(c *cfgpkg.Global, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return c.ModelFor(provider)
}

// buildReporter returns the issue reporter for a run, or nil when the report
// is disabled or a hosted provider has no API key. limiter is shared by all
// runs of one invocation.
func buildReporter(c *cfgpkg.Global, f *runFlags, limiter *rate.Limiter) (issues.Reporter, error) {
	if f.noAI {
		return issues.Off, nil
	}
	rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: f.provider, OllamaHost: f.ollamaHost, Limiter: limiter})
	if err != nil {
		return nil, err
	}
	if ai.NeedsAPIKey(provider) && c.ResolveAPIKey(provider) == "" {
		logging.Logger.Debugw("issue reporter disabled", "provider", provider, "reason", fmt.Sprintf("%s not set", ai.APIKeyEnv(provider)))
		return nil, nil
	}
	return issues.NewLLMReporter(issues.Config{
		Runtime:  rt,
		Provider: provider,
		Model:    selectModel(c, provider, f.model),
		Logger:   logging.Logger,
	}), nil
}
