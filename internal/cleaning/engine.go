package cleaning

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/KaramelBytes/datatidy-cli/internal/analysis"
	"github.com/KaramelBytes/datatidy-cli/internal/dataset"
)

// Engine applies the fixed cleaning rule set. An Engine holds no per-call
// state and may be shared across goroutines.
type Engine struct {
	opt Options
	log *zap.SugaredLogger
}

// New returns an Engine; unset options take their defaults.
func New(opt Options) *Engine {
	opt = opt.withDefaults()
	return &Engine{opt: opt, log: opt.Logger}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opt }

// cleanRun carries the state of one Clean call.
type cleanRun struct {
	opt   Options
	ds    *dataset.Dataset
	rep   *Report
	caser interface{ String(string) string }
	// noStat marks columns with no value to impute from.
	noStat map[string]bool
}

// Clean applies, in order: row drop by missingness, duplicate removal,
// imputation, normalization (with re-imputation of cells that failed
// coercion) and a final duplicate pass. ds is never modified.
func (e *Engine) Clean(ds *dataset.Dataset) (*dataset.Dataset, *Report, error) {
	if err := ds.Validate(); err != nil {
		return nil, nil, err
	}
	out := ds.Clone()
	run := &cleanRun{
		opt:    e.opt,
		ds:     out,
		noStat: map[string]bool{},
		rep: &Report{
			RowsBefore:    ds.NumRows(),
			ColumnsBefore: ds.NumCols(),
			MissingBefore: ds.MissingCount(),
			Columns:       make([]ColumnDelta, ds.NumCols()),
		},
	}
	if c := e.opt.CasePolicy.caser(); c != nil {
		run.caser = c
	}
	for j := range ds.Columns {
		col := &ds.Columns[j]
		run.rep.Columns[j] = ColumnDelta{Name: col.Name, KindBefore: col.Kind, MissingBefore: col.MissingCount()}
	}

	run.dropSparseRows()
	e.log.Debugw("cleaning step", "step", StepDropRows, "rows", out.NumRows())
	run.rep.DuplicatesRemoved += run.dedup(StepDedup)
	e.log.Debugw("cleaning step", "step", StepDedup, "rows", out.NumRows())
	for j := range out.Columns {
		run.impute(j, StepImpute)
	}
	e.log.Debugw("cleaning step", "step", StepImpute, "rows", out.NumRows())
	for j := range out.Columns {
		run.normalize(j)
	}
	e.log.Debugw("cleaning step", "step", StepNormalize, "rows", out.NumRows())
	run.rep.DuplicatesRemoved += run.dedup(StepFinalDedup)
	e.log.Debugw("cleaning step", "step", StepFinalDedup, "rows", out.NumRows())

	run.finish()
	return out, run.rep, nil
}

func (r *cleanRun) log(op Operation) { r.rep.Operations = append(r.rep.Operations, op) }

// dropSparseRows removes rows whose missing fraction exceeds the threshold.
func (r *cleanRun) dropSparseRows() {
	ncol := r.ds.NumCols()
	nrow := r.ds.NumRows()
	if ncol == 0 || nrow == 0 {
		return
	}
	keep := make([]bool, nrow)
	dropped := 0
	for i := 0; i < nrow; i++ {
		frac := float64(r.ds.RowMissing(i)) / float64(ncol)
		keep[i] = frac <= r.opt.threshold()
		if !keep[i] {
			dropped++
		}
	}
	if dropped == 0 {
		return
	}
	r.ds.KeepRows(keep)
	r.rep.RowsDropped = dropped
	r.log(Operation{
		Step:   StepDropRows,
		Detail: fmt.Sprintf("dropped rows with more than %.0f%% missing", r.opt.threshold()*100),
		Cells:  dropped,
	})
}

// dedup keeps the first occurrence of every exact row and reports how many
// rows it removed.
func (r *cleanRun) dedup(step Step) int {
	nrow := r.ds.NumRows()
	if nrow == 0 {
		return 0
	}
	seen := make(map[string]struct{}, nrow)
	keep := make([]bool, nrow)
	removed := 0
	for i := 0; i < nrow; i++ {
		k := r.ds.RowKey(i)
		if _, dup := seen[k]; dup {
			removed++
			continue
		}
		seen[k] = struct{}{}
		keep[i] = true
	}
	if removed == 0 {
		return 0
	}
	r.ds.KeepRows(keep)
	r.log(Operation{Step: step, Detail: "removed duplicate rows", Cells: removed})
	return removed
}

// impute fills missing cells of column j with its median (numeric) or mode
// (everything else). A column with no values is left alone and flagged.
func (r *cleanRun) impute(j int, step Step) {
	col := &r.ds.Columns[j]
	missing := col.MissingCount()
	if missing == 0 {
		return
	}
	fill, how, ok := statistic(col)
	if !ok {
		r.noStat[col.Name] = true
		return
	}
	for i := range col.Cells {
		if col.Cells[i].Missing {
			col.Cells[i] = dataset.Value(fill)
		}
	}
	r.rep.Columns[j].Imputed += missing
	r.log(Operation{Step: step, Column: col.Name, Detail: fmt.Sprintf("%s %q", how, fill), Cells: missing})
}

// statistic returns the imputation value for col and the method used.
func statistic(col *dataset.Column) (value, method string, ok bool) {
	present := col.Present()
	if len(present) == 0 {
		return "", "", false
	}
	if col.Kind == dataset.KindNumeric {
		nums := make([]float64, 0, len(present))
		for _, v := range present {
			if x, ok := dataset.ParseNumber(v); ok {
				nums = append(nums, x)
			}
		}
		if len(nums) > 0 {
			m := analysis.Median(nums)
			if !math.IsNaN(m) && !math.IsInf(m, 0) {
				return dataset.FormatNumber(m), "median", true
			}
		}
	}
	v, _ := Mode(present)
	return v, "mode", true
}

// Mode returns the most frequent value; ties go to the value seen first.
func Mode(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestN := "", 0
	for _, v := range values {
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best, true
}

// finish fills the after-side of the report.
func (r *cleanRun) finish() {
	rep := r.rep
	rep.RowsAfter = r.ds.NumRows()
	rep.ColumnsAfter = r.ds.NumCols()
	rep.MissingAfter = r.ds.MissingCount()
	for j := range r.ds.Columns {
		col := &r.ds.Columns[j]
		rep.Columns[j].KindAfter = col.Kind
		rep.Columns[j].MissingAfter = col.MissingCount()
		if rep.Columns[j].MissingAfter == 0 {
			continue
		}
		reason := "could not be coerced"
		if r.noStat[col.Name] {
			reason = "no value to impute from"
			rep.UnresolvedColumns = append(rep.UnresolvedColumns, col.Name)
		}
		for i, c := range col.Cells {
			if c.Missing {
				rep.Unresolved = append(rep.Unresolved, CellRef{Row: i, Column: col.Name, Reason: reason})
			}
		}
	}
}
