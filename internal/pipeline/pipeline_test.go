package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datatidy-cli/internal/analysis"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
	"github.com/KaramelBytes/datatidy-cli/internal/issues"
	"github.com/KaramelBytes/datatidy-cli/internal/loader"
)

const messyCSV = `id,score,city
1,10,  Paris
1,10,  Paris
2,,Lyon
3,20,lyon
,,
`

type stubReporter struct {
	delay time.Duration
	calls int32
}

func (s *stubReporter) ReportIssues(ctx context.Context, rep *analysis.Report, timeout time.Duration) (*issues.Assessment, error) {
	atomic.AddInt32(&s.calls, 1)
	select {
	case <-time.After(s.delay):
	case <-time.After(timeout):
		return nil, &issues.ReporterTimeoutError{Timeout: timeout}
	}
	return &issues.Assessment{
		Issues:   []issues.Issue{{Description: "score has gaps", Severity: issues.Medium, Columns: []string{"score"}}},
		Severity: issues.Medium,
	}, nil
}

func writeInput(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestRunWritesCleanedCSV(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "messy.csv", messyCSV)
	rep := &stubReporter{}
	r := NewRunner(Options{}, rep)

	run, err := r.Run(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, filepath.Join(dir, "cleaned_messy.csv"), run.Output)
	assert.Empty(t, run.Warnings)
	require.Len(t, run.Assessment.Issues, 1)
	assert.EqualValues(t, 1, atomic.LoadInt32(&rep.calls))

	assert.Equal(t, 5, run.Report.RowsBefore)
	assert.Equal(t, 3, run.Report.RowsAfter)
	assert.Equal(t, 5, run.Original.NumRows(), "the loaded dataset is not modified")

	b, err := os.ReadFile(run.Output)
	require.NoError(t, err)
	assert.Equal(t, "id,score,city\n1,10,Paris\n2,15,Lyon\n3,20,lyon\n", string(b))

	m := run.Manifest()
	assert.Equal(t, run.ID, m.RunID)
	assert.Equal(t, 2, m.Summary.RowsRemoved())
	assert.False(t, m.FinishedAt.Before(m.StartedAt))
}

func TestRunSurvivesReporterTimeout(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "messy.csv", messyCSV)
	r := NewRunner(Options{ReporterTimeout: 20 * time.Millisecond}, &stubReporter{delay: time.Second})

	run, err := r.Run(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, run.Report, "cleaning must not depend on the reporter")
	require.Len(t, run.Warnings, 1)
	assert.Contains(t, run.Warnings[0], "timed out")
	assert.Empty(t, run.Assessment.Issues)
	assert.FileExists(t, run.Output)
}

func TestRunWithoutReporter(t *testing.T) {
	in := writeInput(t, t.TempDir(), "messy.csv", messyCSV)
	out := filepath.Join(t.TempDir(), "custom.csv")
	run, err := NewRunner(Options{Output: out}, nil).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, out, run.Output)
	require.Len(t, run.Warnings, 1)
	assert.Contains(t, run.Warnings[0], "no AI provider")
}

func TestExecuteStopsAtStage(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "messy.csv", messyCSV)
	rep := &stubReporter{}
	r := NewRunner(Options{}, rep)

	run, err := r.Execute(context.Background(), in, StageProfile)
	require.NoError(t, err)
	assert.NotNil(t, run.Profile)
	assert.Nil(t, run.Assessment)
	assert.Nil(t, run.Report)
	assert.EqualValues(t, 0, atomic.LoadInt32(&rep.calls))

	run, err = r.Execute(context.Background(), in, StageIssues)
	require.NoError(t, err)
	assert.NotNil(t, run.Assessment)
	assert.Nil(t, run.Cleaned)
	assert.NoFileExists(t, filepath.Join(dir, "cleaned_messy.csv"))
}

func TestRunFatalLoadErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "bad.csv", "a,b\n1,2,3\n")
	_, err := NewRunner(Options{}, nil).Run(context.Background(), in)
	var pe *loader.ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Contains(t, err.Error(), "load ")
	assert.NoFileExists(t, filepath.Join(dir, "cleaned_bad.csv"))

	unsupported := writeInput(t, dir, "notes.pdf", "%PDF-1.4")
	_, err = NewRunner(Options{}, nil).Run(context.Background(), unsupported)
	var ue *loader.UnsupportedFormatError
	assert.True(t, errors.As(err, &ue), "got %v", err)
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	var paths []string
	for _, n := range []string{"a.csv", "b.csv", "c.csv"} {
		paths = append(paths, writeInput(t, dir, n, messyCSV))
	}
	paths = append(paths, filepath.Join(dir, "missing.csv"))
	paths = append(paths, writeInput(t, dir, "bad.csv", "x\n\"unterminated\n"))

	rep := &stubReporter{delay: 10 * time.Millisecond}
	r := NewRunner(Options{OutDir: outDir, Output: filepath.Join(dir, "ignored.csv")}, rep)
	results := r.RunBatch(context.Background(), paths, 2)

	require.Len(t, results, len(paths))
	assert.Equal(t, 2, Failed(results))
	for i, res := range results {
		assert.Equal(t, paths[i], res.Path, "results keep input order")
	}
	for _, res := range results[:3] {
		require.NoError(t, res.Err)
		assert.True(t, strings.HasPrefix(res.Run.Output, outDir))
		assert.FileExists(t, res.Run.Output)
	}
	assert.Error(t, results[3].Err)
	assert.Error(t, results[4].Err)
	assert.NoFileExists(t, filepath.Join(dir, "ignored.csv"))
	assert.EqualValues(t, 3, atomic.LoadInt32(&rep.calls))

	ids := map[string]bool{}
	for _, res := range results[:3] {
		ids[res.Run.ID] = true
	}
	assert.Len(t, ids, 3, "every run gets its own id")
}

func TestRunBatchCanceled(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "a.csv", messyCSV)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := NewRunner(Options{}, nil).RunBatch(ctx, []string{in}, 1)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
