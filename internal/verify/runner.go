package verify

import (
	"context"
	"fmt"
)

// Registry maps check names to constructors.
type Registry map[string]Factory

// Factory builds a check instance.
type Factory func() Check

// DefaultRegistry contains built-in checks.
var DefaultRegistry = Registry{
	"exists": func() Check { return ExistsCheck{} },
	"netcdf": func() Check { return NetCDFCheck{} },
}

// Build instantiates checks from the provided names.
func (r Registry) Build(names []string) ([]Check, error) {
	if len(names) == 0 {
		return nil, nil
	}

	var checks []Check
	seen := map[string]struct{}{}
	for _, name := range names {
		factory, ok := r[name]
		if !ok {
			return nil, fmt.Errorf("unknown verify check: %s", name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		checks = append(checks, factory())
	}
	return checks, nil
}

// Run executes checks sequentially against path.
func Run(ctx context.Context, checks []Check, path string) ([]Result, error) {
	var results []Result
	for _, check := range checks {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		detail, err := check.Verify(ctx, path)
		if err != nil {
			results = append(results, Result{Path: path, Check: check.Name(), Detail: err.Error()})
			continue
		}
		results = append(results, Result{Path: path, Check: check.Name(), Passed: true, Detail: detail})
	}
	return results, nil
}

// FirstFailure returns the first failed result, if any.
func FirstFailure(results []Result) (Result, bool) {
	for _, r := range results {
		if !r.Passed {
			return r, true
		}
	}
	return Result{}, false
}
