package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event types emitted by the converter and its helper commands.
const (
	TypeRunStart      = "run-start"
	TypeFileConverted = "file-converted"
	TypeFileFailed    = "file-failed"
	TypeFileSkipped   = "file-skipped"
	TypeFilePlanned   = "file-planned"
	TypeNoMatches     = "no-matches"
	TypeRunFinished   = "run-finished"
	TypePlanEntry     = "plan-entry"
	TypeRequest       = "request"
	TypeInspect       = "inspect"
	TypeReport        = "report"
)

// Event represents a single NDJSON record for machine-readable progress.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"runId,omitempty"`
	Message   string         `json:"message,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Emitter writes NDJSON events to an io.Writer safely across goroutines.
type Emitter struct {
	writer io.Writer
	now    func() time.Time
	mu     sync.Mutex
}

// NewEmitter returns a new NDJSON emitter.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{writer: w, now: time.Now}
}

// WithClock replaces the timestamp source used for events without one.
func (e *Emitter) WithClock(now func() time.Time) *Emitter {
	e.now = now
	return e
}

// Emit serializes the event to JSON and appends a newline.
func (e *Emitter) Emit(evt Event) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.writer.Write(append(payload, '\n')); err != nil {
		return err
	}

	return nil
}
