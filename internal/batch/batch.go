// Package batch converts every matching file of an input directory with cdo.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/example/cdo-batch/internal/cdo"
	"github.com/example/cdo-batch/internal/observability"
	"github.com/example/cdo-batch/internal/verify"
)

// Job describes one batch run.
type Job struct {
	InputDir  string
	OutputDir string
	SourceExt string
	TargetExt string
	DryRun    bool
	// Timeout bounds a single cdo invocation; zero means no limit.
	Timeout time.Duration
}

// Converter runs jobs sequentially, one cdo process at a time.
type Converter struct {
	runner   cdo.Runner
	checks   []verify.Check
	observer Observer
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	newID    func() string
	toolOut  io.Writer
	toolErr  io.Writer
}

// Option customises a Converter.
type Option func(*Converter)

// WithChecks sets the checks run against each converted file.
func WithChecks(checks []verify.Check) Option {
	return func(c *Converter) { c.checks = checks }
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(c *Converter) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records run and per-file metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Converter) { c.metrics = m }
}

// WithClock replaces the wall clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Converter) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithRunID replaces the run id generator.
func WithRunID(fn func() string) Option {
	return func(c *Converter) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithToolOutput forwards cdo's own stdout and stderr.
func WithToolOutput(stdout, stderr io.Writer) Option {
	return func(c *Converter) {
		c.toolOut = stdout
		c.toolErr = stderr
	}
}

// New returns a Converter driving runner.
func New(runner cdo.Runner, opts ...Option) *Converter {
	c := &Converter{
		runner:   runner,
		observer: NopObserver{},
		logger:   observability.Discard(),
		clock:    clockwork.NewRealClock(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes every entry of job.InputDir matching job.SourceExt.
//
// A missing input directory is reported as *MissingInputError before anything
// is touched. Conversion failures do not stop the batch; they are counted in
// the returned Summary. A non-nil error with a partial Summary means the run
// was interrupted.
func (c *Converter) Run(ctx context.Context, job Job) (Summary, error) {
	summary := Summary{
		RunID:     c.newID(),
		InputDir:  job.InputDir,
		OutputDir: job.OutputDir,
		SourceExt: job.SourceExt,
		TargetExt: job.TargetExt,
		DryRun:    job.DryRun,
		StartedAt: c.clock.Now(),
	}
	logger := c.logger.With("runId", summary.RunID)

	if err := CheckInputDir(job.InputDir); err != nil {
		return summary, err
	}

	if !job.DryRun {
		if err := c.runner.EnsureBinary(); err != nil {
			return summary, err
		}
		if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
			return summary, fmt.Errorf("create output directory %s: %w", job.OutputDir, err)
		}
	}

	entries, err := Discover(job.InputDir, job.OutputDir, job.SourceExt, job.TargetExt)
	if err != nil {
		return summary, err
	}
	summary.Matched = len(entries)

	logger.Info("batch started",
		"inputDir", job.InputDir,
		"outputDir", job.OutputDir,
		"matched", len(entries),
		"dryRun", job.DryRun,
	)
	c.observer.RunStarted(summary)
	if c.metrics != nil {
		c.metrics.FilesDiscovered.Set(float64(len(entries)))
	}

	if len(entries) == 0 {
		summary.NoMatches = true
		logger.Warn("no matching files", "inputDir", job.InputDir, "sourceExt", job.SourceExt)
		c.observer.NoMatches(summary)
	}

	var runErr error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("batch interrupted: %w", err)
			break
		}

		outcome := c.process(ctx, job, entry)
		summary.add(outcome)
		c.record(logger, outcome)
		c.observer.FileDone(summary, outcome)
	}

	summary.FinishedAt = c.clock.Now()
	c.finish(logger, summary)
	return summary, runErr
}

func (c *Converter) process(ctx context.Context, job Job, entry Entry) Outcome {
	out := Outcome{Entry: entry}

	if !entry.Regular {
		out.Status = StatusSkipped
		out.Error = entry.Name + " is not a regular file"
		return out
	}

	if job.DryRun {
		out.Status = StatusPlanned
		return out
	}

	convCtx := ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		convCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	started := c.clock.Now()
	res, err := c.runner.Convert(convCtx, cdo.ConvertInput{
		Source: entry.Source,
		Dest:   entry.Dest,
		Stdout: c.toolOut,
		Stderr: c.toolErr,
	})
	out.Duration = c.clock.Since(started)
	out.ExitCode = res.ExitCode
	out.Stderr = res.Stderr
	out.Args = res.Args

	if err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
		return out
	}

	results, err := verify.Run(ctx, c.checks, entry.Dest)
	out.Checks = results
	if err != nil {
		out.Status = StatusFailed
		out.Error = fmt.Sprintf("verify interrupted: %v", err)
		return out
	}
	if failed, ok := verify.FirstFailure(results); ok {
		out.Status = StatusFailed
		out.Error = fmt.Sprintf("%s check failed: %s", failed.Check, failed.Detail)
		return out
	}

	out.Status = StatusConverted
	return out
}

func (c *Converter) record(logger *slog.Logger, o Outcome) {
	attrs := []any{"source", o.Source, "dest", o.Dest, "status", string(o.Status)}
	switch o.Status {
	case StatusFailed:
		logger.Error("conversion failed", append(attrs, "exitCode", o.ExitCode, "args", o.Args, "error", o.Error)...)
	case StatusSkipped:
		logger.Warn("entry skipped", append(attrs, "reason", o.Error)...)
	default:
		logger.Debug("entry processed", append(attrs, "duration", o.Duration)...)
	}

	if c.metrics == nil {
		return
	}
	c.metrics.Conversions.WithLabelValues(string(o.Status)).Inc()
	if o.Status == StatusConverted || o.Status == StatusFailed {
		c.metrics.ConversionDuration.Observe(o.Duration.Seconds())
	}
}

func (c *Converter) finish(logger *slog.Logger, s Summary) {
	logger.Info("batch finished",
		"converted", s.Converted,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"planned", s.Planned,
		"duration", s.Duration(),
	)
	c.observer.RunFinished(s)

	if c.metrics == nil {
		return
	}
	c.metrics.RunDuration.Set(s.Duration().Seconds())
	c.metrics.LastRunTimestamp.Set(float64(s.FinishedAt.Unix()))
	if s.OK() {
		c.metrics.LastRunSuccess.Set(1)
	} else {
		c.metrics.LastRunSuccess.Set(0)
	}
}
