package batch

import (
	"time"

	"github.com/example/cdo-batch/internal/verify"
)

// Status is the per-file result of a run.
type Status string

const (
	StatusConverted Status = "converted"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusPlanned   Status = "planned"
)

// Outcome records what happened to one discovered entry.
type Outcome struct {
	Entry
	Status   Status          `json:"status"`
	ExitCode int             `json:"exitCode"`
	Error    string          `json:"error,omitempty"`
	Stderr   string          `json:"stderr,omitempty"`
	Args     []string        `json:"args,omitempty"`
	Duration time.Duration   `json:"durationNs"`
	Checks   []verify.Result `json:"checks,omitempty"`
}

// Summary aggregates one run.
type Summary struct {
	RunID      string    `json:"runId"`
	InputDir   string    `json:"inputDir"`
	OutputDir  string    `json:"outputDir"`
	SourceExt  string    `json:"sourceExt"`
	TargetExt  string    `json:"targetExt"`
	DryRun     bool      `json:"dryRun"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Matched    int       `json:"matched"`
	Converted  int       `json:"converted"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Planned    int       `json:"planned"`
	NoMatches  bool      `json:"noMatches"`
	Outcomes   []Outcome `json:"outcomes"`
}

// OK reports whether no conversion failed.
func (s Summary) OK() bool {
	return s.Failed == 0
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) add(o Outcome) {
	switch o.Status {
	case StatusConverted:
		s.Converted++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	case StatusPlanned:
		s.Planned++
	}
	s.Outcomes = append(s.Outcomes, o)
}

// Observer receives progress as a run advances.
type Observer interface {
	RunStarted(s Summary)
	NoMatches(s Summary)
	FileDone(s Summary, o Outcome)
	RunFinished(s Summary)
}

// NopObserver ignores all progress.
type NopObserver struct{}

func (NopObserver) RunStarted(Summary)        {}
func (NopObserver) NoMatches(Summary)         {}
func (NopObserver) FileDone(Summary, Outcome) {}
func (NopObserver) RunFinished(Summary)       {}
