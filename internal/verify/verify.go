// Package verify holds post-conversion checks run against destination files.
package verify

import "context"

// Result represents a single check outcome for a converted file.
type Result struct {
	Path   string `json:"path"`
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Check is implemented by modules that can validate a converted file.
type Check interface {
	Name() string
	Verify(ctx context.Context, path string) (string, error)
}
