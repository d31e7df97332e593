package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/cdo-batch/internal/cdo"
	"github.com/example/cdo-batch/internal/config"
)

func ensureOutputDir(path string) error {
	if path == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	return os.MkdirAll(path, 0o755)
}

func newRunner(cfg config.RuntimeConfig) *cdo.CommandRunner {
	return cdo.NewRunner(cdo.Options{
		Binary:    cfg.CDOBinary,
		Format:    cfg.CDOFormat,
		Operator:  cfg.CDOOperator,
		ExtraArgs: cfg.CDOArgs,
	})
}

// writeJSON writes v as indented JSON, creating the parent directory.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	if err := ensureOutputDir(filepath.Dir(path)); err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0o644)
}
