package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one input-directory entry whose name carries the source extension.
type Entry struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Base    string `json:"base"`
	Dest    string `json:"dest"`
	Regular bool   `json:"regular"`
}

// Discover lists entries of inputDir named *<sourceExt>, in directory order.
// Hidden entries are ignored like an unquoted shell glob would. Entries that
// are not regular files (directories, sockets, dangling links) are returned
// with Regular=false so the caller can report them.
func Discover(inputDir, outputDir, sourceExt, targetExt string) ([]Entry, error) {
	if sourceExt == "" {
		return nil, errors.New("source extension cannot be empty")
	}

	dirents, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", inputDir, err)
	}

	var entries []Entry
	for _, d := range dirents {
		name := d.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, sourceExt) {
			continue
		}

		source := filepath.Join(inputDir, name)
		base := strings.TrimSuffix(name, sourceExt)
		entries = append(entries, Entry{
			Name:    name,
			Source:  source,
			Base:    base,
			Dest:    filepath.Join(outputDir, base+targetExt),
			Regular: isRegular(source),
		})
	}
	return entries, nil
}

// isRegular follows symlinks, matching `test -f`.
func isRegular(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// CheckInputDir returns *MissingInputError unless path is an existing directory.
func CheckInputDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &MissingInputError{Path: path}
		}
		return fmt.Errorf("stat input directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return &MissingInputError{Path: path, NotDir: true}
	}
	return nil
}
