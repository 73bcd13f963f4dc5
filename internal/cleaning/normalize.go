package cleaning

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/datatidy-cli/internal/dataset"
)

// normalize canonicalizes column j according to its kind. Text columns are
// first tried as numeric-looking, then as date-like; cells that fail a
// coercion become missing and are re-imputed when enabled.
func (r *cleanRun) normalize(j int) {
	col := &r.ds.Columns[j]
	if len(col.Present()) == 0 {
		return
	}
	switch {
	case col.Kind == dataset.KindNumeric:
		r.normalizeNumbers(j)
	case col.Kind == dataset.KindBoolean:
		r.normalizeBools(j)
	case col.Kind == dataset.KindDatetime:
		r.normalizeDates(j)
	case col.Kind.Textual():
		if r.coerceNumbers(j) || r.normalizeDates(j) {
			return
		}
		r.normalizeText(j)
	}
}

// maxExact is the largest magnitude a float64 holds without losing integer
// digits.
const maxExact = 1 << 53

// normalizeNumbers rewrites numeric cells in canonical form, so "12 " and
// "1.50" come out as "12" and "1.5".
func (r *cleanRun) normalizeNumbers(j int) {
	col := &r.ds.Columns[j]
	changed := 0
	for i, c := range col.Cells {
		if c.Missing {
			continue
		}
		v := strings.TrimSpace(c.Value)
		if f, ok := dataset.ParseNumber(v); ok && f > -maxExact && f < maxExact {
			v = dataset.FormatNumber(f)
		}
		if v != c.Value {
			col.Cells[i] = dataset.Value(v)
			changed++
		}
	}
	if changed > 0 {
		r.log(Operation{Step: StepNormalize, Column: col.Name, Detail: "canonical numbers", Cells: changed})
	}
}

func (r *cleanRun) normalizeBools(j int) {
	col := &r.ds.Columns[j]
	changed, failed := 0, 0
	for i, c := range col.Cells {
		if c.Missing {
			continue
		}
		b, ok := dataset.ParseBool(c.Value)
		if !ok {
			col.Cells[i] = dataset.Null
			failed++
			continue
		}
		if v := strconv.FormatBool(b); v != c.Value {
			col.Cells[i] = dataset.Value(v)
			changed++
		}
	}
	if changed > 0 {
		r.log(Operation{Step: StepNormalize, Column: col.Name, Detail: "canonical true/false", Cells: changed})
	}
	r.afterCoercion(j, failed)
}

// coerceNumbers converts a numeric-looking text column to numbers. It reports
// false, leaving the column untouched, when too few values coerce.
func (r *cleanRun) coerceNumbers(j int) bool {
	col := &r.ds.Columns[j]
	vals := make([]float64, len(col.Cells))
	ok := make([]bool, len(col.Cells))
	present, hits := 0, 0
	for i, c := range col.Cells {
		if c.Missing {
			continue
		}
		present++
		if vals[i], ok[i] = dataset.ParseLooseNumber(c.Value, r.opt.NumberFormat); ok[i] {
			hits++
		}
	}
	if !r.enough(hits, present) {
		return false
	}
	failed := 0
	for i, c := range col.Cells {
		if c.Missing {
			continue
		}
		if !ok[i] {
			col.Cells[i] = dataset.Null
			failed++
			continue
		}
		col.Cells[i] = dataset.Value(dataset.FormatNumber(vals[i]))
	}
	col.Kind = dataset.KindNumeric
	r.log(Operation{Step: StepCoerce, Column: col.Name, Detail: "numeric", Cells: hits})
	r.afterCoercion(j, failed)
	return true
}

// normalizeDates picks a layout for the column and rewrites every value in
// the output layout. Text columns need CoerceRatio of their values to parse.
func (r *cleanRun) normalizeDates(j int) bool {
	col := &r.ds.Columns[j]
	present := col.Present()
	layout, hits := dataset.MatchDateLayout(present, r.opt.DateLayouts)
	if hits == 0 || !r.enough(hits, len(present)) {
		return false
	}
	times := make([]time.Time, len(col.Cells))
	ok := make([]bool, len(col.Cells))
	clock := false
	for i, c := range col.Cells {
		if c.Missing {
			continue
		}
		if times[i], ok[i] = dataset.ParseDate(c.Value, layout); ok[i] && dataset.HasClock(layout) {
			h, m, s := times[i].Clock()
			clock = clock || h != 0 || m != 0 || s != 0 || times[i].Nanosecond() != 0
		}
	}
	out := r.opt.DateOutputLayout
	if clock {
		out = r.opt.DateTimeOutputLayout
	}
	changed, failed := 0, 0
	for i, c := range col.Cells {
		if c.Missing {
			continue
		}
		if !ok[i] {
			col.Cells[i] = dataset.Null
			failed++
			continue
		}
		if v := times[i].Format(out); v != c.Value {
			col.Cells[i] = dataset.Value(v)
			changed++
		}
	}
	if col.Kind == dataset.KindDatetime {
		if changed > 0 {
			r.log(Operation{Step: StepNormalize, Column: col.Name, Detail: fmt.Sprintf("dates from %s to %s", layout, out), Cells: changed})
		}
	} else {
		col.Kind = dataset.KindDatetime
		r.log(Operation{Step: StepCoerce, Column: col.Name, Detail: fmt.Sprintf("datetime from %s to %s", layout, out), Cells: hits})
	}
	r.afterCoercion(j, failed)
	return true
}

func (r *cleanRun) normalizeText(j int) {
	col := &r.ds.Columns[j]
	changed := 0
	for i, c := range col.Cells {
		if c.Missing {
			continue
		}
		v := strings.Join(strings.Fields(c.Value), " ")
		if r.caser != nil {
			v = r.caser.String(v)
		}
		if v != c.Value {
			col.Cells[i] = dataset.Value(v)
			changed++
		}
	}
	if changed == 0 {
		return
	}
	detail := "trimmed whitespace"
	if r.opt.CasePolicy != CaseNone {
		detail = fmt.Sprintf("trimmed whitespace, %s case", r.opt.CasePolicy)
	}
	r.log(Operation{Step: StepNormalize, Column: col.Name, Detail: detail, Cells: changed})
}

// afterCoercion re-imputes cells a coercion left missing, or leaves them to
// be reported as unresolved.
func (r *cleanRun) afterCoercion(j, failed int) {
	if failed == 0 || r.opt.NoReimpute {
		return
	}
	r.impute(j, StepReimpute)
}

func (r *cleanRun) enough(hits, present int) bool {
	if present == 0 || hits == 0 {
		return false
	}
	return float64(hits) >= r.opt.CoerceRatio*float64(present)
}
