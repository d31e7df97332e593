package batch

import "fmt"

// MissingInputError reports an input directory that cannot be processed.
// It is the only precondition that aborts a run before any work starts.
type MissingInputError struct {
	Path   string
	NotDir bool
}

func (e *MissingInputError) Error() string {
	if e.NotDir {
		return fmt.Sprintf("input directory %s is not a directory", e.Path)
	}
	return fmt.Sprintf("input directory %s does not exist", e.Path)
}
