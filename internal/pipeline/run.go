// Package pipeline wires loading, profiling, the advisory issue report,
// cleaning and export into a single run. Every run owns its datasets; a
// Runner holds only configuration and can serve concurrent runs.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/datatidy-cli/internal/analysis"
	"github.com/KaramelBytes/datatidy-cli/internal/cleaning"
	"github.com/KaramelBytes/datatidy-cli/internal/dataset"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
	"github.com/KaramelBytes/datatidy-cli/internal/export"
	"github.com/KaramelBytes/datatidy-cli/internal/issues"
	"github.com/KaramelBytes/datatidy-cli/internal/loader"
)

// Stage names how far a run goes.
type Stage int

const (
	StageProfile Stage = iota // load and profile
	StageIssues               // ... plus the advisory issue report
	StageClean                // ... plus cleaning and CSV export
)

// Options configures a Runner.
type Options struct {
	Load            loader.Options
	Profile         analysis.Options
	Clean           cleaning.Options
	ReporterTimeout time.Duration
	// Output is the cleaned CSV path for a single run. Empty means
	// cleaned_<name>.csv next to the input, or inside OutDir when set.
	Output string
	OutDir string
	// NoWrite skips writing the cleaned CSV.
	NoWrite bool
	Logger  *zap.SugaredLogger
}

// Run is the state of one pipeline execution.
type Run struct {
	ID         string
	Source     string
	Output     string
	StartedAt  time.Time
	FinishedAt time.Time

	Original   *dataset.Dataset
	Profile    *analysis.Report
	Assessment *issues.Assessment
	Cleaned    *dataset.Dataset
	Report     *cleaning.Report
	// Warnings collects non-fatal problems (reporter timeout or failure).
	Warnings []string
}

// Manifest converts the run into the exporter's view.
func (r *Run) Manifest() *export.Manifest {
	return &export.Manifest{
		RunID:      r.ID,
		Source:     r.Source,
		Output:     r.Output,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Summary:    export.Summarize(r.Report),
		Profile:    r.Profile,
		Assessment: r.Assessment,
		Cleaning:   r.Report,
		Warnings:   r.Warnings,
	}
}

// Runner executes runs with fixed options.
type Runner struct {
	opt      Options
	reporter issues.Reporter
	engine   *cleaning.Engine
	log      *zap.SugaredLogger
}

// NewRunner returns a Runner. reporter may be nil, in which case the issue
// report is skipped with a warning.
func NewRunner(opt Options, reporter issues.Reporter) *Runner {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opt.Clean.Logger == nil {
		opt.Clean.Logger = log
	}
	if opt.ReporterTimeout <= 0 {
		opt.ReporterTimeout = issues.DefaultTimeout
	}
	return &Runner{opt: opt, reporter: reporter, engine: cleaning.New(opt.Clean), log: log}
}

// Run executes the whole pipeline on path and writes the cleaned CSV.
func (r *Runner) Run(ctx context.Context, path string) (*Run, error) {
	return r.Execute(ctx, path, StageClean)
}

// Execute runs the pipeline on path up to stage. Load, clean and write errors
// are fatal: no Run is returned and no output file is left. Reporter problems
// only add warnings.
func (r *Runner) Execute(ctx context.Context, path string, stage Stage) (*Run, error) {
	run := &Run{ID: uuid.NewString(), Source: path, StartedAt: time.Now()}
	log := r.log.With("run_id", run.ID, "source", path)

	ds, err := loader.LoadFile(path, r.opt.Load)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	run.Original = ds
	log.Debugw("pipeline step", "step", "load", "rows", ds.NumRows(), "columns", ds.NumCols())

	run.Profile = analysis.Profile(ds, r.opt.Profile)
	log.Debugw("pipeline step", "step", "profile", "rows", run.Profile.Rows)
	if stage == StageProfile {
		return r.finish(run), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, warning := issues.Advise(ctx, r.reporter, run.Profile, r.opt.ReporterTimeout, log)
	run.Assessment = a
	if warning != "" {
		run.Warnings = append(run.Warnings, warning)
	}
	log.Debugw("pipeline step", "step", "issues", "issues", len(a.Issues))
	if stage == StageIssues {
		return r.finish(run), nil
	}

	cleaned, rep, err := r.engine.Clean(ds)
	if err != nil {
		return nil, errors.Wrapf(err, "clean %s", path)
	}
	run.Cleaned, run.Report = cleaned, rep
	log.Debugw("pipeline step", "step", "clean", "rows", cleaned.NumRows(), "operations", len(rep.Operations))

	if !r.opt.NoWrite {
		out := r.outputPath(path)
		if err := export.WriteCSVFile(out, cleaned); err != nil {
			return nil, err
		}
		run.Output = out
		log.Debugw("pipeline step", "step", "export", "output", out)
	}
	return r.finish(run), nil
}

func (r *Runner) finish(run *Run) *Run {
	run.FinishedAt = time.Now()
	return run
}

func (r *Runner) outputPath(input string) string {
	switch {
	case r.opt.Output != "":
		return r.opt.Output
	case r.opt.OutDir != "":
		return export.OutputPathIn(r.opt.OutDir, input)
	default:
		return export.DefaultOutputPath(input)
	}
}
