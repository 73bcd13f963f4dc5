package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one file in a batch. Exactly one of Run and
// Err is set.
type BatchResult struct {
	Path     string
	Run      *Run
	Err      error
	Duration time.Duration
}

// RunBatch cleans every path with at most concurrency runs in flight. A
// failing file does not stop the others; results keep the order of paths.
// Options.Output is ignored so files do not overwrite each other.
func (r *Runner) RunBatch(ctx context.Context, paths []string, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = 1
	}
	single := *r
	single.opt.Output = ""

	results := make([]BatchResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range paths {
		results[i].Path = p
		g.Go(func() error {
			start := time.Now()
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			run, err := single.Run(gctx, p)
			results[i].Run, results[i].Err = run, err
			results[i].Duration = time.Since(start)
			if err != nil {
				r.log.Warnw("batch file failed", "source", p, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed counts the results that carry an error.
func Failed(results []BatchResult) int {
	n := 0
	for _, res := range results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
