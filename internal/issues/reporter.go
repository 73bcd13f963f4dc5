package issues

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/datatidy-cli/internal/ai"
	"github.com/KaramelBytes/datatidy-cli/internal/analysis"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
	"github.com/KaramelBytes/datatidy-cli/internal/utils"
)

// promptOverheadTokens is kept free for the instructions around the data.
const promptOverheadTokens = 400

const systemPrompt = "You are a meticulous data quality analyst. You review tabular datasets and report concrete, column-specific problems. You answer with JSON only."

const instructions = `Analyze this dataset profile and CSV sample and provide data cleaning recommendations.
Return ONLY a valid JSON object with this exact structure (no markdown, no explanations):
{
  "issues": [{"description": "specific issue", "severity": "high|medium|low", "columns": ["affected column"]}],
  "recommendations": ["cleaning step to take"],
  "summary": "brief summary of data quality",
  "severity": "high|medium|low"
}`

// Config configures an LLMReporter.
type Config struct {
	Runtime     ai.Runtime
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	Logger      *zap.SugaredLogger
}

// LLMReporter sends the profile and row sample to a chat runtime and parses
// the reply into an Assessment.
type LLMReporter struct {
	cfg Config
	log *zap.SugaredLogger
}

// NewLLMReporter returns a reporter. A nil Runtime yields a reporter whose
// every call fails with ErrReporterDisabled.
func NewLLMReporter(cfg Config) *LLMReporter {
	if cfg.Model == "" {
		cfg.Model = ai.DefaultModel(cfg.Provider)
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = ai.DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = ai.DefaultMaxTokens
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LLMReporter{cfg: cfg, log: log}
}

type generateResult struct {
	resp *ai.GenerateResponse
	err  error
}

// ReportIssues asks the runtime for an assessment. The deadline is enforced
// here even when the runtime ignores its context.
func (r *LLMReporter) ReportIssues(ctx context.Context, rep *analysis.Report, timeout time.Duration) (*Assessment, error) {
	if r == nil || r.cfg.Runtime == nil {
		return nil, ErrReporterDisabled
	}
	if rep == nil {
		return nil, &ReporterFailure{Err: errors.New("no profile to report on")}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := ai.GenerateRequest{
		Model:       r.cfg.Model,
		Messages:    BuildPrompt(rep, ai.ContextTokens(r.cfg.Model)-r.cfg.MaxTokens),
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}
	start := time.Now()
	done := make(chan generateResult, 1)
	go func() {
		resp, err := r.cfg.Runtime.Generate(ctx, req)
		done <- generateResult{resp: resp, err: err}
	}()

	var res generateResult
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ReporterTimeoutError{Timeout: timeout}
		}
		return nil, &ReporterFailure{Err: ctx.Err()}
	case res = <-done:
	}
	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			return nil, &ReporterTimeoutError{Timeout: timeout}
		}
		return nil, r.failure(res.err)
	}
	if res.resp == nil {
		return nil, &ReporterFailure{Err: errors.New("empty response from runtime")}
	}

	a := ParseAssessment(res.resp.Content(), rep.Header)
	a.Provider = r.cfg.Provider
	a.Model = r.cfg.Model
	a.RequestID = res.resp.RequestID
	a.Usage = res.resp.Usage
	if cost, ok := ai.EstimateCostUSD(r.cfg.Model, a.Usage.PromptTokens, a.Usage.CompletionTokens); ok {
		a.CostUSD = cost
	}
	r.log.Debugw("issue report received",
		"model", r.cfg.Model,
		"issues", len(a.Issues),
		"elapsed", time.Since(start),
		"request_id", a.RequestID,
	)
	return a, nil
}

// failure wraps a runtime error, adding a fix hint when the runtime gave none.
func (r *LLMReporter) failure(err error) error {
	f := &ReporterFailure{Err: err}
	if len(errors.GetAllHints(err)) > 0 {
		return f
	}
	if hint := ai.Hint(r.cfg.Provider, err); hint != "" {
		return errors.WithHint(f, hint)
	}
	return f
}

// BuildPrompt renders the chat messages for rep, trimming the profile and
// sample so the user message stays within budget tokens.
func BuildPrompt(rep *analysis.Report, budget int) []ai.Message {
	profile := rep.Markdown()
	sample := rep.SampleCSV()

	avail := budget - promptOverheadTokens
	if avail < 256 {
		avail = 256
	}
	pt, st := utils.CountTokens(profile), utils.CountTokens(sample)
	if pt+st > avail {
		// Profile gets at most two thirds of the budget.
		maxProfile := avail * 2 / 3
		if pt > maxProfile {
			profile = utils.TruncateToTokenLimit(profile, maxProfile)
			pt = utils.CountTokens(profile)
		}
		sample = utils.TruncateToTokenLimit(sample, avail-pt)
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nDataset profile:\n")
	b.WriteString(profile)
	b.WriteString("\n\nCSV Data Sample:\n")
	b.WriteString(sample)
	return []ai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// Advise runs rep through the reporter and never fails: a disabled, slow or
// failing reporter yields an empty Assessment and a warning for the user.
func Advise(ctx context.Context, r Reporter, rep *analysis.Report, timeout time.Duration, log *zap.SugaredLogger) (*Assessment, string) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if r == nil {
		return &Assessment{}, "issue report skipped: no AI provider configured"
	}
	a, err := r.ReportIssues(ctx, rep, timeout)
	if err == nil {
		return a, ""
	}
	if errors.Is(err, ErrReporterOff) {
		return &Assessment{}, "issue report skipped: AI turned off (--no-ai)"
	}
	warning := "issue report skipped: no AI provider configured"
	if !errors.Is(err, ErrReporterDisabled) {
		warning = fmt.Sprintf("%v; continuing without issue report", err)
		if hints := errors.FlattenHints(err); hints != "" {
			warning += " (" + hints + ")"
		}
		log.Warnw("issue reporter degraded", "error", err)
	}
	return &Assessment{}, warning
}
