package verify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/example/cdo-batch/internal/ncfile"
)

// ExistsCheck requires the destination to be a non-empty regular file.
type ExistsCheck struct{}

// Name implements Check.
func (ExistsCheck) Name() string { return "exists" }

// Verify implements Check.
func (ExistsCheck) Verify(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("output missing: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("output %s is not a regular file", path)
	}
	if info.Size() == 0 {
		return "", errors.New("output is empty")
	}
	return fmt.Sprintf("%d bytes", info.Size()), nil
}

// NetCDFCheck opens the destination as NetCDF and requires at least one variable.
type NetCDFCheck struct{}

// Name implements Check.
func (NetCDFCheck) Name() string { return "netcdf" }

// Verify implements Check.
func (NetCDFCheck) Verify(ctx context.Context, path string) (string, error) {
	info, err := ncfile.Inspect(path)
	if err != nil {
		return "", err
	}
	if len(info.Variables) == 0 {
		return "", fmt.Errorf("%s declares no variables", path)
	}
	return fmt.Sprintf("%s with %d variables (%s)", info.Kind, len(info.Variables), strings.Join(info.Variables, ",")), nil
}
