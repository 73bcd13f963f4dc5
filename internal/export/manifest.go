package export

import (
	"strings"
	"time"

	"github.com/KaramelBytes/datatidy-cli/internal/analysis"
	"github.com/KaramelBytes/datatidy-cli/internal/cleaning"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
	"github.com/KaramelBytes/datatidy-cli/internal/issues"
)

// Summary holds the headline before/after metrics of a run.
type Summary struct {
	RowsBefore        int `json:"rows_before"`
	RowsAfter         int `json:"rows_after"`
	ColumnsBefore     int `json:"columns_before"`
	ColumnsAfter      int `json:"columns_after"`
	MissingBefore     int `json:"missing_before"`
	MissingAfter      int `json:"missing_after"`
	RowsDropped       int `json:"rows_dropped"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	Imputed           int `json:"imputed"`
	Unresolved        int `json:"unresolved"`
}

// Summarize extracts the headline metrics from a cleaning report.
func Summarize(rep *cleaning.Report) Summary {
	if rep == nil {
		return Summary{}
	}
	return Summary{
		RowsBefore:        rep.RowsBefore,
		RowsAfter:         rep.RowsAfter,
		ColumnsBefore:     rep.ColumnsBefore,
		ColumnsAfter:      rep.ColumnsAfter,
		MissingBefore:     rep.MissingBefore,
		MissingAfter:      rep.MissingAfter,
		RowsDropped:       rep.RowsDropped,
		DuplicatesRemoved: rep.DuplicatesRemoved,
		Imputed:           rep.ImputedTotal(),
		Unresolved:        len(rep.Unresolved),
	}
}

// RowsRemoved is the total number of rows the cleaning removed.
func (s Summary) RowsRemoved() int { return s.RowsBefore - s.RowsAfter }

// Manifest is everything a report renderer needs about one run.
type Manifest struct {
	RunID      string             `json:"run_id"`
	Source     string             `json:"source"`
	Output     string             `json:"output,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Summary    Summary            `json:"summary"`
	Profile    *analysis.Report   `json:"profile,omitempty"`
	Assessment *issues.Assessment `json:"assessment,omitempty"`
	Cleaning   *cleaning.Report   `json:"cleaning,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// Duration is the wall time of the run.
func (m *Manifest) Duration() time.Duration {
	if m.FinishedAt.IsZero() || m.FinishedAt.Before(m.StartedAt) {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}

// Format selects a report renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts text, markdown (md) and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", errors.WithHint(errors.Newf("unknown report format %q", s), "use text, markdown or json")
}

// Ext is the file extension conventionally used for the format.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}
