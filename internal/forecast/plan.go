package forecast

import (
	"os"
	"path/filepath"
	"strings"
)

// Layout describes where downloads land and where conversions are written.
type Layout struct {
	InputDir  string
	OutputDir string
	SourceExt string
	TargetExt string
}

// Expected is one forecast file the case study needs.
type Expected struct {
	Date    string `json:"date"`
	Kind    Kind   `json:"kind"`
	File    string `json:"file"`
	Path    string `json:"path"`
	Present bool   `json:"present"`
	Dest    string `json:"dest,omitempty"`
}

// Plan lists the expected files for every kind and date and whether each is
// already present in the input directory. Dest is set only for names the
// batch converter would pick up.
func Plan(layout Layout, kinds []Kind, dates []string) ([]Expected, error) {
	out := make([]Expected, 0, len(kinds)*len(dates))
	for _, date := range dates {
		for _, kind := range kinds {
			name, err := Filename(kind, date)
			if err != nil {
				return nil, err
			}
			path := filepath.Join(layout.InputDir, name)
			exp := Expected{
				Date:    date,
				Kind:    kind,
				File:    name,
				Path:    path,
				Present: isRegular(path),
			}
			if layout.SourceExt != "" && strings.HasSuffix(name, layout.SourceExt) {
				base := strings.TrimSuffix(name, layout.SourceExt)
				exp.Dest = filepath.Join(layout.OutputDir, base+layout.TargetExt)
			}
			out = append(out, exp)
		}
	}
	return out, nil
}

// Missing filters the expected files that are not present yet.
func Missing(plan []Expected) []Expected {
	var out []Expected
	for _, e := range plan {
		if !e.Present {
			out = append(out, e)
		}
	}
	return out
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
