package cleaning

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/KaramelBytes/datatidy-cli/internal/dataset"
)

// CasePolicy selects how text and categorical values are cased.
type CasePolicy string

const (
	CaseNone  CasePolicy = "none"
	CaseLower CasePolicy = "lower"
	CaseUpper CasePolicy = "upper"
	CaseTitle CasePolicy = "title"
)

// ParseCasePolicy maps a user-supplied name to a CasePolicy. Empty means none.
func ParseCasePolicy(s string) (CasePolicy, error) {
	switch p := CasePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CaseNone, nil
	case CaseNone, CaseLower, CaseUpper, CaseTitle:
		return p, nil
	}
	return "", fmt.Errorf("unknown case policy %q (want none, lower, upper or title)", s)
}

// caser returns a fresh caser; cases.Caser keeps state and must not be shared
// across goroutines.
func (p CasePolicy) caser() *cases.Caser {
	var c cases.Caser
	switch p {
	case CaseLower:
		c = cases.Lower(language.Und)
	case CaseUpper:
		c = cases.Upper(language.Und)
	case CaseTitle:
		c = cases.Title(language.Und)
	default:
		return nil
	}
	return &c
}

// Options controls the cleaning rules.
type Options struct {
	// MissingRowThreshold drops rows whose missing fraction is strictly
	// greater than this value. Nil means 0.5; use Threshold to set it.
	MissingRowThreshold *float64
	CasePolicy          CasePolicy
	// DateLayouts is the prioritized list tried on date-like values.
	DateLayouts []string
	// DateOutputLayout formats dates without a time of day;
	// DateTimeOutputLayout is used when any parsed value carries one.
	DateOutputLayout     string
	DateTimeOutputLayout string
	// CoerceRatio is the share of non-missing values that must coerce before a
	// text column is treated as numeric or date-like.
	CoerceRatio float64
	// NoReimpute leaves cells that failed coercion missing instead of filling
	// them with the column statistic.
	NoReimpute bool
	// NumberFormat fixes separators for numeric coercion; zero auto-detects.
	NumberFormat dataset.NumberFormat
	Logger       *zap.SugaredLogger
}

// DefaultOptions returns the standard rule set.
func DefaultOptions() Options {
	return Options{
		MissingRowThreshold:  Threshold(0.5),
		CasePolicy:           CaseNone,
		DateLayouts:          dataset.DateLayouts,
		DateOutputLayout:     "2006-01-02",
		DateTimeOutputLayout: "2006-01-02 15:04:05",
		CoerceRatio:          0.8,
	}
}

// Threshold returns a MissingRowThreshold value.
func Threshold(v float64) *float64 { return &v }

func (o Options) threshold() float64 {
	if o.MissingRowThreshold == nil {
		return 0.5
	}
	return *o.MissingRowThreshold
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MissingRowThreshold == nil || *o.MissingRowThreshold < 0 || *o.MissingRowThreshold > 1 {
		o.MissingRowThreshold = d.MissingRowThreshold
	}
	if o.CasePolicy == "" {
		o.CasePolicy = CaseNone
	}
	if len(o.DateLayouts) == 0 {
		o.DateLayouts = d.DateLayouts
	}
	if o.DateOutputLayout == "" {
		o.DateOutputLayout = d.DateOutputLayout
	}
	if o.DateTimeOutputLayout == "" {
		o.DateTimeOutputLayout = d.DateTimeOutputLayout
	}
	if o.CoerceRatio <= 0 || o.CoerceRatio > 1 {
		o.CoerceRatio = d.CoerceRatio
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	return o
}
