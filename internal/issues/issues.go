// Package issues asks an LLM for an advisory list of data-quality issues.
// Nothing in the cleaning pipeline depends on its output.
package issues

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/datatidy-cli/internal/ai"
	"github.com/KaramelBytes/datatidy-cli/internal/analysis"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
)

// DefaultTimeout bounds a ReportIssues call when the caller passes zero.
const DefaultTimeout = 30 * time.Second

type Severity string

const (
	High   Severity = "High"
	Medium Severity = "Medium"
	Low    Severity = "Low"
)

// ParseSeverity accepts high/medium/low in any case.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "critical", "severe":
		return High, true
	case "medium", "moderate":
		return Medium, true
	case "low", "minor":
		return Low, true
	}
	return "", false
}

// Rank orders severities from High (0) to Low (2).
func (s Severity) Rank() int {
	switch s {
	case High:
		return 0
	case Low:
		return 2
	default:
		return 1
	}
}

// Issue is one advisory finding. Columns lists the affected column names.
type Issue struct {
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Columns     []string `json:"columns,omitempty"`
}

// Assessment is the parsed reply of the reporter.
type Assessment struct {
	Issues          []Issue  `json:"issues"`
	Recommendations []string `json:"recommendations,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Severity        Severity `json:"severity,omitempty"`

	Provider  string   `json:"provider,omitempty"`
	Model     string   `json:"model,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	Usage     ai.Usage `json:"usage"`
	CostUSD   float64  `json:"cost_usd,omitempty"`
}

// Empty reports whether the assessment carries no findings.
func (a *Assessment) Empty() bool {
	return a == nil || (len(a.Issues) == 0 && len(a.Recommendations) == 0 && a.Summary == "")
}

// Reporter produces an Assessment for a profiled dataset within timeout.
type Reporter interface {
	ReportIssues(ctx context.Context, rep *analysis.Report, timeout time.Duration) (*Assessment, error)
}

// ErrReporterDisabled is returned when no LLM runtime is configured.
var ErrReporterDisabled = errors.New("issue reporter disabled")

// ErrReporterOff is returned by Off.
var ErrReporterOff = errors.New("issue reporter turned off")

// Off is the Reporter for runs where the user asked for no issue report.
var Off Reporter = offReporter{}

type offReporter struct{}

func (offReporter) ReportIssues(context.Context, *analysis.Report, time.Duration) (*Assessment, error) {
	return nil, ErrReporterOff
}

// ReporterTimeoutError reports that the LLM did not answer in time.
type ReporterTimeoutError struct {
	Timeout time.Duration
}

func (e *ReporterTimeoutError) Error() string {
	return fmt.Sprintf("issue reporter timed out after %s", e.Timeout)
}

// ReporterFailure wraps any other reporter error.
type ReporterFailure struct {
	Err error
}

func (e *ReporterFailure) Error() string { return "issue reporter failed: " + e.Err.Error() }

func (e *ReporterFailure) Unwrap() error { return e.Err }
