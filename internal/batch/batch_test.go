package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/cdo-batch/internal/batch"
	"github.com/example/cdo-batch/internal/cdo"
	"github.com/example/cdo-batch/internal/observability"
	"github.com/example/cdo-batch/internal/verify"
)

// --- mocks ---

type mockRunner struct {
	ensureErr error
	clock     *clockwork.FakeClock
	step      time.Duration
	calls     []cdo.ConvertInput
	onConvert func(ctx context.Context)
}

func (m *mockRunner) EnsureBinary() error { return m.ensureErr }

func (m *mockRunner) Version(context.Context) (string, error) { return "mock cdo", nil }

func (m *mockRunner) Convert(ctx context.Context, in cdo.ConvertInput) (cdo.Result, error) {
	m.calls = append(m.calls, in)
	if m.clock != nil {
		m.clock.Advance(m.step)
	}
	if m.onConvert != nil {
		m.onConvert(ctx)
	}
	if err := ctx.Err(); err != nil {
		return cdo.Result{ExitCode: -1}, err
	}
	args := []string{"-f", "nc4", "copy", in.Source, in.Dest}
	if strings.Contains(filepath.Base(in.Source), "bad") {
		return cdo.Result{Args: args, ExitCode: 1, Stderr: "cdo    copy (Abort): Unsupported file type"},
			&cdo.ExitError{Code: 1, Stderr: "cdo    copy (Abort): Unsupported file type", Err: errors.New("exit status 1")}
	}
	data, err := os.ReadFile(in.Source)
	if err != nil {
		return cdo.Result{ExitCode: 1}, err
	}
	return cdo.Result{Args: args, ExitCode: 0}, os.WriteFile(in.Dest, data, 0o644)
}

type recordingObserver struct {
	started   int
	noMatches int
	done      []batch.Outcome
	finished  []batch.Summary
}

func (r *recordingObserver) RunStarted(batch.Summary) { r.started++ }
func (r *recordingObserver) NoMatches(batch.Summary)  { r.noMatches++ }
func (r *recordingObserver) FileDone(_ batch.Summary, o batch.Outcome) {
	r.done = append(r.done, o)
}
func (r *recordingObserver) RunFinished(s batch.Summary) { r.finished = append(r.finished, s) }

// --- helpers ---

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newJob(t *testing.T) batch.Job {
	t.Helper()
	root := t.TempDir()
	in := filepath.Join(root, "enfo_cf")
	require.NoError(t, os.Mkdir(in, 0o755))
	return batch.Job{
		InputDir:  in,
		OutputDir: filepath.Join(root, "enfo_cf_nc4"),
		SourceExt: ".nc",
		TargetExt: ".nc4",
	}
}

func existsChecks(t *testing.T) []verify.Check {
	t.Helper()
	checks, err := verify.DefaultRegistry.Build([]string{"exists"})
	require.NoError(t, err)
	return checks
}

// --- tests ---

func TestRun_ConvertsRegularFilesAndSkipsDirectories(t *testing.T) {
	job := newJob(t)
	writeFile(t, filepath.Join(job.InputDir, "a.nc"), "GRIB-a")
	writeFile(t, filepath.Join(job.InputDir, "b.nc"), "GRIB-b")
	require.NoError(t, os.Mkdir(filepath.Join(job.InputDir, "c.nc"), 0o755))
	writeFile(t, filepath.Join(job.InputDir, "notes.txt"), "ignored")

	runner := &mockRunner{}
	obs := &recordingObserver{}
	conv := batch.New(runner, batch.WithObserver(obs), batch.WithChecks(existsChecks(t)))

	summary, err := conv.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Matched)
	assert.Equal(t, 2, summary.Converted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Failed)
	assert.True(t, summary.OK())
	assert.False(t, summary.NoMatches)

	require.Len(t, obs.done, 3)
	assert.Equal(t, batch.StatusConverted, obs.done[0].Status)
	assert.Equal(t, filepath.Join(job.OutputDir, "a.nc4"), obs.done[0].Dest)
	assert.Equal(t,
		[]string{"-f", "nc4", "copy", filepath.Join(job.InputDir, "a.nc"), filepath.Join(job.OutputDir, "a.nc4")},
		obs.done[0].Args,
	)
	assert.Equal(t, batch.StatusConverted, obs.done[1].Status)
	assert.Equal(t, batch.StatusSkipped, obs.done[2].Status)
	assert.Equal(t, "c.nc", obs.done[2].Name)
	assert.Nil(t, obs.done[2].Args, "skipped entries never reach cdo")
	assert.Contains(t, obs.done[2].Error, "not a regular file")

	assert.FileExists(t, filepath.Join(job.OutputDir, "a.nc4"))
	assert.FileExists(t, filepath.Join(job.OutputDir, "b.nc4"))
	assert.NoFileExists(t, filepath.Join(job.OutputDir, "c.nc4"))
	assert.Len(t, runner.calls, 2)
	assert.Equal(t, 1, obs.started)
	assert.Len(t, obs.finished, 1)
}

func TestRun_MissingInputDirectory(t *testing.T) {
	root := t.TempDir()
	job := batch.Job{
		InputDir:  filepath.Join(root, "missing"),
		OutputDir: filepath.Join(root, "out"),
		SourceExt: ".nc",
		TargetExt: ".nc4",
	}

	runner := &mockRunner{}
	obs := &recordingObserver{}
	_, err := batch.New(runner, batch.WithObserver(obs)).Run(context.Background(), job)

	var missing *batch.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, job.InputDir, missing.Path)
	assert.Contains(t, err.Error(), "does not exist")

	assert.NoDirExists(t, job.OutputDir)
	assert.Empty(t, runner.calls)
	assert.Zero(t, obs.started)
}

func TestRun_InputPathIsAFile(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "enfo_cf")
	writeFile(t, in, "not a dir")

	_, err := batch.New(&mockRunner{}).Run(context.Background(), batch.Job{
		InputDir: in, OutputDir: filepath.Join(root, "out"), SourceExt: ".nc", TargetExt: ".nc4",
	})

	var missing *batch.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.True(t, missing.NotDir)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestRun_MissingBinaryStopsBeforeOutputDir(t *testing.T) {
	job := newJob(t)
	writeFile(t, filepath.Join(job.InputDir, "a.nc"), "GRIB")

	runner := &mockRunner{ensureErr: cdo.ErrBinaryNotFound}
	_, err := batch.New(runner).Run(context.Background(), job)

	require.ErrorIs(t, err, cdo.ErrBinaryNotFound)
	assert.NoDirExists(t, job.OutputDir)
	assert.Empty(t, runner.calls)
}

func TestRun_FailureDoesNotStopBatch(t *testing.T) {
	job := newJob(t)
	writeFile(t, filepath.Join(job.InputDir, "a_bad.nc"), "junk")
	writeFile(t, filepath.Join(job.InputDir, "b.nc"), "GRIB")

	obs := &recordingObserver{}
	summary, err := batch.New(&mockRunner{}, batch.WithObserver(obs)).Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Converted)
	assert.False(t, summary.OK())

	failed := summary.Outcomes[0]
	assert.Equal(t, batch.StatusFailed, failed.Status)
	assert.Equal(t, 1, failed.ExitCode)
	assert.Contains(t, failed.Error, "status 1")
	assert.Contains(t, failed.Stderr, "Unsupported file type")
	assert.Equal(t, batch.StatusConverted, summary.Outcomes[1].Status)
}

func TestRun_FailedCheckMarksOutcomeFailed(t *testing.T) {
	job := newJob(t)
	// An empty source produces an empty destination, which the exists check rejects.
	writeFile(t, filepath.Join(job.InputDir, "empty.nc"), "")

	summary, err := batch.New(&mockRunner{}, batch.WithChecks(existsChecks(t))).Run(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 1)
	out := summary.Outcomes[0]
	assert.Equal(t, batch.StatusFailed, out.Status)
	assert.Contains(t, out.Error, "exists check failed")
	require.Len(t, out.Checks, 1)
	assert.False(t, out.Checks[0].Passed)
}

func TestRun_EmptyMatchSet(t *testing.T) {
	job := newJob(t)
	writeFile(t, filepath.Join(job.InputDir, "readme.txt"), "no forecasts yet")

	obs := &recordingObserver{}
	summary, err := batch.New(&mockRunner{}, batch.WithObserver(obs)).Run(context.Background(), job)
	require.NoError(t, err)

	assert.True(t, summary.NoMatches)
	assert.True(t, summary.OK())
	assert.Equal(t, 1, obs.noMatches)
	assert.Empty(t, obs.done)
	assert.DirExists(t, job.OutputDir)
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	job := newJob(t)
	job.DryRun = true
	writeFile(t, filepath.Join(job.InputDir, "a.nc"), "GRIB")

	runner := &mockRunner{ensureErr: cdo.ErrBinaryNotFound}
	summary, err := batch.New(runner).Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Planned)
	assert.Equal(t, batch.StatusPlanned, summary.Outcomes[0].Status)
	assert.Empty(t, runner.calls)
	assert.NoDirExists(t, job.OutputDir)
}

func TestRun_IsIdempotent(t *testing.T) {
	job := newJob(t)
	writeFile(t, filepath.Join(job.InputDir, "a.nc"), "GRIB-a")
	writeFile(t, filepath.Join(job.InputDir, "b.nc"), "GRIB-b")

	conv := batch.New(&mockRunner{})
	_, err := conv.Run(context.Background(), job)
	require.NoError(t, err)
	first, err := os.ReadDir(job.OutputDir)
	require.NoError(t, err)

	_, err = conv.Run(context.Background(), job)
	require.NoError(t, err)
	second, err := os.ReadDir(job.OutputDir)
	require.NoError(t, err)

	names := func(entries []os.DirEntry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.Name())
		}
		return out
	}
	assert.Equal(t, []string{"a.nc4", "b.nc4"}, names(first))
	assert.Equal(t, names(first), names(second))
}

func TestRun_CancelStopsBetweenFiles(t *testing.T) {
	job := newJob(t)
	writeFile(t, filepath.Join(job.InputDir, "a.nc"), "GRIB-a")
	writeFile(t, filepath.Join(job.InputDir, "b.nc"), "GRIB-b")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &mockRunner{}
	runner.onConvert = func(context.Context) { cancel() }

	obs := &recordingObserver{}
	summary, err := batch.New(runner, batch.WithObserver(obs)).Run(ctx, job)

	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, runner.calls, 1)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, obs.finished, 1)
}

func TestRun_TimeoutBoundsEachInvocation(t *testing.T) {
	job := newJob(t)
	job.Timeout = time.Millisecond
	writeFile(t, filepath.Join(job.InputDir, "a.nc"), "GRIB-a")

	runner := &mockRunner{}
	runner.onConvert = func(ctx context.Context) { <-ctx.Done() }

	summary, err := batch.New(runner).Run(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, batch.StatusFailed, summary.Outcomes[0].Status)
	assert.Contains(t, summary.Outcomes[0].Error, context.DeadlineExceeded.Error())
}

func TestRun_RecordsClockAndMetrics(t *testing.T) {
	job := newJob(t)
	writeFile(t, filepath.Join(job.InputDir, "a.nc"), "GRIB-a")
	require.NoError(t, os.Mkdir(filepath.Join(job.InputDir, "c.nc"), 0o755))

	start := time.Date(2024, time.May, 18, 6, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	metrics := observability.NewMetrics()

	conv := batch.New(
		&mockRunner{clock: clock, step: 3 * time.Second},
		batch.WithClock(clock),
		batch.WithMetrics(metrics),
		batch.WithRunID(func() string { return "run-1" }),
	)

	summary, err := conv.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, start, summary.StartedAt)
	assert.Equal(t, 3*time.Second, summary.Duration())
	assert.Equal(t, 3*time.Second, summary.Outcomes[0].Duration)

	families, err := metrics.Gatherer().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetValue() + "}"
			}
			switch {
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			}
		}
	}
	assert.InDelta(t, 2, values["cdo_batch_files_discovered"], 0)
	assert.InDelta(t, 1, values["cdo_batch_conversions_total{converted}"], 0)
	assert.InDelta(t, 1, values["cdo_batch_conversions_total{skipped}"], 0)
	assert.InDelta(t, 1, values["cdo_batch_last_run_success"], 0)
	assert.InDelta(t, 3, values["cdo_batch_run_duration_seconds"], 0)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "enfo_pf_2024_05_13.nc"), "CDF")
	writeFile(t, filepath.Join(dir, "enfo_cf_2024_05_13.nc"), "GRIB")
	writeFile(t, filepath.Join(dir, ".hidden.nc"), "GRIB")
	writeFile(t, filepath.Join(dir, "already.nc4"), "HDF")
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone.nc"), filepath.Join(dir, "dangling.nc")))

	entries, err := batch.Discover(dir, "out", ".nc", ".nc4")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"dangling.nc", "enfo_cf_2024_05_13.nc", "enfo_pf_2024_05_13.nc"}, names)

	assert.False(t, entries[0].Regular)
	assert.True(t, entries[1].Regular)
	assert.Equal(t, "enfo_cf_2024_05_13", entries[1].Base)
	assert.Equal(t, filepath.Join(dir, "enfo_cf_2024_05_13.nc"), entries[1].Source)
	assert.Equal(t, filepath.Join("out", "enfo_cf_2024_05_13.nc4"), entries[1].Dest)
}

func TestDiscover_EmptyExtension(t *testing.T) {
	_, err := batch.Discover(t.TempDir(), "out", "", ".nc4")
	assert.Error(t, err)
}
