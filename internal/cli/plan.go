package cli

import (
	"fmt"
	"io"

	"github.com/example/cdo-batch/internal/config"
	"github.com/example/cdo-batch/internal/events"
	"github.com/example/cdo-batch/internal/forecast"
	"github.com/spf13/cobra"
)

type planOptions struct {
	start        string
	end          string
	kinds        string
	requests     bool
	missingOnly  bool
	planFile     string
	requestsFile string
}

func newPlanCmd(loader *config.Loader) *cobra.Command {
	flags := &runtimeFlagSet{}
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List the forecast files expected for a date range",
		Long: `Lists enfo_<kind>_YYYY_MM_DD.nc for every date between --start and --end
(inclusive), whether each is present in the input directory and where convert
would write it. With --requests the retrieval parameters of each file are
printed as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := flags.toOverrides(cmd)
			cfg, err := loader.Load(overrides)
			if err != nil {
				return err
			}

			dates, err := forecast.DateList(opts.start, opts.end)
			if err != nil {
				return err
			}

			kinds, err := parseKinds(opts.kinds)
			if err != nil {
				return err
			}

			plan, err := forecast.Plan(forecast.Layout{
				InputDir:  cfg.InputDir,
				OutputDir: cfg.OutputDir,
				SourceExt: cfg.SourceExt,
				TargetExt: cfg.TargetExt,
			}, kinds, dates)
			if err != nil {
				return err
			}
			if opts.missingOnly {
				plan = forecast.Missing(plan)
			}

			var requests []forecast.Request
			if opts.requests || opts.requestsFile != "" {
				for _, exp := range plan {
					req, err := forecast.NewRequest(exp.Kind, exp.Date)
					if err != nil {
						return err
					}
					requests = append(requests, req)
				}
			}

			if cfg.Output == config.OutputNDJSON {
				if err := emitPlan(cmd.OutOrStdout(), plan, requests, opts.requests); err != nil {
					return err
				}
			} else {
				printPlan(cmd.OutOrStdout(), plan, requests, opts.requests)
			}

			if opts.planFile != "" {
				if err := writeJSON(opts.planFile, plan); err != nil {
					return err
				}
			}

			if opts.requestsFile != "" {
				if err := writeJSON(opts.requestsFile, requests); err != nil {
					return err
				}
			}

			return nil
		},
	}

	bindRuntimeFlags(cmd, flags)
	cmd.Flags().StringVar(&opts.start, "start", "", "First forecast date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Last forecast date (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&opts.kinds, "kinds", "pf,cf", "Comma-separated forecast kinds (pf, cf)")
	cmd.Flags().BoolVar(&opts.requests, "requests", false, "Print retrieval parameters for each file")
	cmd.Flags().BoolVar(&opts.missingOnly, "missing", false, "Only list files not present yet")
	cmd.Flags().StringVar(&opts.planFile, "plan-file", "", "Optional path to store the plan as JSON")
	cmd.Flags().StringVar(&opts.requestsFile, "requests-file", "", "Optional path to store retrieval requests as JSON")
	for _, name := range []string{"start", "end"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	return cmd
}

func parseKinds(input string) ([]forecast.Kind, error) {
	var kinds []forecast.Kind
	seen := map[forecast.Kind]struct{}{}
	for _, raw := range config.ParseList(input) {
		kind, err := forecast.ParseKind(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("at least one forecast kind is required")
	}
	return kinds, nil
}

func printPlan(w io.Writer, plan []forecast.Expected, requests []forecast.Request, withRequests bool) {
	present := 0
	for i, exp := range plan {
		mark := "✗"
		if exp.Present {
			mark = "✓"
			present++
		}
		line := fmt.Sprintf("%s %s", mark, exp.Path)
		if exp.Dest != "" {
			line += " -> " + exp.Dest
		}
		fmt.Fprintln(w, line)

		if withRequests && i < len(requests) {
			req := requests[i]
			for _, key := range req.Keys() {
				fmt.Fprintf(w, "    %-8s %s\n", key, req[key])
			}
		}
	}
	fmt.Fprintf(w, "%d of %d files present\n", present, len(plan))
}

func emitPlan(w io.Writer, plan []forecast.Expected, requests []forecast.Request, withRequests bool) error {
	emitter := events.NewEmitter(w)
	for i, exp := range plan {
		fields := map[string]any{
			"date":    exp.Date,
			"kind":    string(exp.Kind),
			"path":    exp.Path,
			"present": exp.Present,
		}
		if exp.Dest != "" {
			fields["dest"] = exp.Dest
		}
		if err := emitter.Emit(events.Event{Type: events.TypePlanEntry, Fields: fields}); err != nil {
			return err
		}

		if withRequests && i < len(requests) {
			req := requests[i]
			params := make(map[string]any, len(req))
			for k, v := range req {
				params[k] = v
			}
			if err := emitter.Emit(events.Event{Type: events.TypeRequest, Message: req.Target(), Fields: params}); err != nil {
				return err
			}
		}
	}
	return nil
}
