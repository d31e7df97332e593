// Package cdo drives the Climate Data Operators command-line tool.
package cdo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// DefaultBinary is looked up on PATH when no explicit binary is configured.
const DefaultBinary = "cdo"

// maxStderr bounds how much converter diagnostics are kept per invocation.
const maxStderr = 4 << 10

// ErrBinaryNotFound is returned by EnsureBinary when the converter cannot be resolved.
var ErrBinaryNotFound = errors.New("cdo binary not found")

// Runner defines the operations needed to drive cdo.
type Runner interface {
	EnsureBinary() error
	Version(ctx context.Context) (string, error)
	Convert(ctx context.Context, input ConvertInput) (Result, error)
}

// Options configures a CommandRunner.
type Options struct {
	Binary    string
	Format    string
	Operator  string
	ExtraArgs []string
}

// CommandRunner executes the real cdo binary present on the host.
type CommandRunner struct {
	Binary    string
	Format    string
	Operator  string
	ExtraArgs []string
}

// ConvertInput describes a single file conversion.
type ConvertInput struct {
	Source string
	Dest   string
	Stdout io.Writer
	Stderr io.Writer
}

// Result carries the outcome of one cdo invocation.
type Result struct {
	Args     []string
	ExitCode int
	Stderr   string
}

// NewRunner returns a command runner, filling in cdo's nc4/copy defaults.
func NewRunner(opts Options) *CommandRunner {
	r := &CommandRunner{
		Binary:    opts.Binary,
		Format:    opts.Format,
		Operator:  opts.Operator,
		ExtraArgs: opts.ExtraArgs,
	}
	if r.Binary == "" {
		r.Binary = DefaultBinary
	}
	if r.Format == "" {
		r.Format = "nc4"
	}
	if r.Operator == "" {
		r.Operator = "copy"
	}
	return r
}

// EnsureBinary verifies that the configured binary is discoverable, either on
// PATH or as an explicit executable path.
func (r *CommandRunner) EnsureBinary() error {
	if _, err := exec.LookPath(r.Binary); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBinaryNotFound, r.Binary, err)
	}
	return nil
}

// Args returns the argument vector used to convert source into dest.
func (r *CommandRunner) Args(source, dest string) []string {
	args := make([]string, 0, len(r.ExtraArgs)+5)
	args = append(args, r.ExtraArgs...)
	return append(args, "-f", r.Format, r.Operator, source, dest)
}

// Convert runs cdo for one file and reports its exit status. A non-nil error
// is returned when the process could not start or exited unsuccessfully.
func (r *CommandRunner) Convert(ctx context.Context, input ConvertInput) (Result, error) {
	args := r.Args(input.Source, input.Dest)
	res := Result{Args: args, ExitCode: -1}

	stderr := &tailBuffer{limit: maxStderr}

	// Binary path comes from validated configuration and every argument is
	// passed as a separate argv entry, no shell is involved.
	cmd := exec.CommandContext(ctx, r.Binary, args...) // #nosec G204
	if input.Stdout != nil {
		cmd.Stdout = input.Stdout
	}
	if input.Stderr != nil {
		cmd.Stderr = io.MultiWriter(stderr, input.Stderr)
	} else {
		cmd.Stderr = stderr
	}

	err := cmd.Run()
	res.Stderr = strings.TrimSpace(stderr.String())

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("cdo %s interrupted: %w", r.Operator, ctxErr)
		}
		return res, &ExitError{Code: res.ExitCode, Stderr: res.Stderr, Err: err}
	}

	return res, nil
}

// Version runs `cdo -V` and returns the first non-empty line of its output.
func (r *CommandRunner) Version(ctx context.Context) (string, error) {
	// cdo prints its version banner to stderr and may exit non-zero for -V.
	cmd := exec.CommandContext(ctx, r.Binary, "-V") // #nosec G204
	output, err := cmd.CombinedOutput()
	if line := firstLine(output); line != "" {
		return line, nil
	}
	if err != nil {
		return "", err
	}
	return "unknown", nil
}

func firstLine(output []byte) string {
	for _, line := range strings.Split(string(output), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// ExitError reports a cdo invocation that did not succeed.
type ExitError struct {
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("cdo exited with status %d", e.Code)
	if e.Code < 0 {
		msg = fmt.Sprintf("cdo did not run: %v", e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + lastLine(e.Stderr)
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.limit {
		t.buf.Reset()
		t.buf.Write(p[len(p)-t.limit:])
		return n, nil
	}
	if over := t.buf.Len() + len(p) - t.limit; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
