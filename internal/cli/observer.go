package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/example/cdo-batch/internal/batch"
	"github.com/example/cdo-batch/internal/config"
	"github.com/example/cdo-batch/internal/events"
)

// progressObserver reports batch progress on stdout and remembers the first
// write error so the command can fail after the run.
type progressObserver interface {
	batch.Observer
	Err() error
}

func newProgressObserver(mode string, w io.Writer, clock clockwork.Clock) progressObserver {
	if mode == config.OutputNDJSON {
		return &eventObserver{emitter: events.NewEmitter(w).WithClock(clock.Now)}
	}
	return &textObserver{w: w}
}

func convertedLine(o batch.Outcome) string {
	return fmt.Sprintf("Converted %s to %s", o.Source, o.Dest)
}

func failedLine(o batch.Outcome) string {
	return fmt.Sprintf("Failed to convert %s to %s: %s", o.Source, o.Dest, o.Error)
}

func skippedLine(dir string, o batch.Outcome) string {
	return fmt.Sprintf("No GRIB files in directory %s (%s)", dir, o.Error)
}

func plannedLine(o batch.Outcome) string {
	return fmt.Sprintf("Would convert %s to %s", o.Source, o.Dest)
}

func noMatchesLine(s batch.Summary) string {
	return fmt.Sprintf("No files matching *%s in %s", s.SourceExt, s.InputDir)
}

func summaryLine(s batch.Summary) string {
	if s.DryRun {
		return fmt.Sprintf("Done: %d planned, %d skipped", s.Planned, s.Skipped)
	}
	return fmt.Sprintf("Done: %d converted, %d failed, %d skipped in %s",
		s.Converted, s.Failed, s.Skipped, s.Duration().Round(time.Millisecond))
}

type textObserver struct {
	w   io.Writer
	err error
}

func (o *textObserver) println(line string) {
	if o.err != nil {
		return
	}
	_, o.err = fmt.Fprintln(o.w, line)
}

func (o *textObserver) RunStarted(batch.Summary) {}

func (o *textObserver) NoMatches(s batch.Summary) { o.println(noMatchesLine(s)) }

func (o *textObserver) FileDone(s batch.Summary, out batch.Outcome) {
	switch out.Status {
	case batch.StatusConverted:
		o.println(convertedLine(out))
	case batch.StatusFailed:
		o.println(failedLine(out))
	case batch.StatusSkipped:
		o.println(skippedLine(s.InputDir, out))
	case batch.StatusPlanned:
		o.println(plannedLine(out))
	}
}

func (o *textObserver) RunFinished(s batch.Summary) { o.println(summaryLine(s)) }

func (o *textObserver) Err() error { return o.err }

type eventObserver struct {
	emitter *events.Emitter
	err     error
}

func (o *eventObserver) emit(evt events.Event) {
	if o.err != nil {
		return
	}
	o.err = o.emitter.Emit(evt)
}

func (o *eventObserver) RunStarted(s batch.Summary) {
	o.emit(events.Event{
		Type:      events.TypeRunStart,
		Timestamp: s.StartedAt,
		RunID:     s.RunID,
		Message:   "Starting batch conversion",
		Fields: map[string]any{
			"inputDir":  s.InputDir,
			"outputDir": s.OutputDir,
			"sourceExt": s.SourceExt,
			"targetExt": s.TargetExt,
			"matched":   s.Matched,
			"dryRun":    s.DryRun,
		},
	})
}

func (o *eventObserver) NoMatches(s batch.Summary) {
	o.emit(events.Event{
		Type:    events.TypeNoMatches,
		RunID:   s.RunID,
		Message: noMatchesLine(s),
		Fields:  map[string]any{"inputDir": s.InputDir, "sourceExt": s.SourceExt},
	})
}

func (o *eventObserver) FileDone(s batch.Summary, out batch.Outcome) {
	fields := map[string]any{"source": out.Source, "dest": out.Dest}
	evt := events.Event{RunID: s.RunID, Fields: fields}

	switch out.Status {
	case batch.StatusConverted:
		evt.Type = events.TypeFileConverted
		evt.Message = convertedLine(out)
		fields["durationMs"] = out.Duration.Milliseconds()
		if len(out.Checks) > 0 {
			fields["checks"] = out.Checks
		}
	case batch.StatusFailed:
		evt.Type = events.TypeFileFailed
		evt.Message = failedLine(out)
		fields["exitCode"] = out.ExitCode
		fields["error"] = out.Error
		fields["durationMs"] = out.Duration.Milliseconds()
		if len(out.Args) > 0 {
			fields["args"] = out.Args
		}
		if out.Stderr != "" {
			fields["stderr"] = out.Stderr
		}
	case batch.StatusSkipped:
		evt.Type = events.TypeFileSkipped
		evt.Message = skippedLine(s.InputDir, out)
		fields["reason"] = out.Error
	case batch.StatusPlanned:
		evt.Type = events.TypeFilePlanned
		evt.Message = plannedLine(out)
	default:
		return
	}

	o.emit(evt)
}

func (o *eventObserver) RunFinished(s batch.Summary) {
	o.emit(events.Event{
		Type:      events.TypeRunFinished,
		Timestamp: s.FinishedAt,
		RunID:     s.RunID,
		Message:   summaryLine(s),
		Fields: map[string]any{
			"converted":  s.Converted,
			"failed":     s.Failed,
			"skipped":    s.Skipped,
			"planned":    s.Planned,
			"noMatches":  s.NoMatches,
			"durationMs": s.Duration().Milliseconds(),
		},
	})
}

func (o *eventObserver) Err() error { return o.err }
