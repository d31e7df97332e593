package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"github.com/example/cdo-batch/internal/batch"
	"github.com/example/cdo-batch/internal/config"
	"github.com/example/cdo-batch/internal/observability"
	"github.com/example/cdo-batch/internal/verify"
	"github.com/spf13/cobra"
)

func newConvertCmd(loader *config.Loader, clock clockwork.Clock) *cobra.Command {
	flags := &runtimeFlagSet{}

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert every matching file of the input directory with cdo",
		Long: `Scans the input directory for files ending in the source extension and runs
"cdo -f <format> <operator> <src> <dst>" for each of them, one at a time.
Outputs are written to <output-dir>/<base><target-ext>.

Exit status is 0 when every file converted (or there was nothing to do),
1 for configuration or precondition errors and 2 when any conversion failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := flags.toOverrides(cmd)
			cfg, err := loader.Load(overrides)
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			checks, err := verify.DefaultRegistry.Build(cfg.Verify)
			if err != nil {
				return err
			}

			logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			metrics := observability.NewMetrics()
			observer := newProgressObserver(cfg.Output, cmd.OutOrStdout(), clock)

			converter := batch.New(newRunner(cfg),
				batch.WithChecks(checks),
				batch.WithObserver(observer),
				batch.WithLogger(logger),
				batch.WithMetrics(metrics),
				batch.WithClock(clock),
				batch.WithToolOutput(cmd.ErrOrStderr(), cmd.ErrOrStderr()),
			)

			summary, runErr := converter.Run(cmd.Context(), batch.Job{
				InputDir:  cfg.InputDir,
				OutputDir: cfg.OutputDir,
				SourceExt: cfg.SourceExt,
				TargetExt: cfg.TargetExt,
				DryRun:    cfg.DryRun,
				Timeout:   cfg.Timeout,
			})
			if runErr != nil && summary.FinishedAt.IsZero() {
				// Precondition failure: nothing ran, nothing to record.
				return runErr
			}

			if err := writeRunArtifacts(cfg, summary, metrics); err != nil {
				logger.Error("write run artifacts", "error", err)
				return errors.Join(runErr, err)
			}

			if err := observer.Err(); err != nil {
				return errors.Join(runErr, fmt.Errorf("write progress: %w", err))
			}

			if runErr != nil {
				return runErr
			}

			if !summary.OK() {
				return fmt.Errorf("%w: %d of %d", ErrConversionsFailed, summary.Failed, summary.Matched)
			}

			return nil
		},
	}

	bindRuntimeFlags(cmd, flags)

	return cmd
}

func writeRunArtifacts(cfg config.RuntimeConfig, summary batch.Summary, metrics *observability.Metrics) error {
	if cfg.SummaryFile != "" {
		if err := writeJSON(cfg.SummaryFile, summary); err != nil {
			return fmt.Errorf("write summary %s: %w", cfg.SummaryFile, err)
		}
	}

	if cfg.MetricsFile != "" {
		if err := ensureOutputDir(filepath.Dir(cfg.MetricsFile)); err != nil {
			return err
		}
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("write metrics %s: %w", cfg.MetricsFile, err)
		}
	}

	return nil
}
