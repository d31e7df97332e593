package cli

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/example/cdo-batch/internal/batch"
	"github.com/example/cdo-batch/internal/cdo"
	"github.com/example/cdo-batch/internal/config"
	"github.com/example/cdo-batch/internal/verify"
	"github.com/spf13/cobra"
)

type doctorCheck struct {
	Name   string
	Status string // "✓", "✗" or "⊘"
	Detail string
	Error  error
}

func newDoctorCmd(loader *config.Loader) *cobra.Command {
	flags := &runtimeFlagSet{}
	var probeTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the cdo binary, configuration and data directories",
		Long: `The doctor subcommand performs comprehensive validation of the cdo-batch environment:
- Go runtime version
- cdo binary presence and version
- Configuration validity and verify checks
- Input directory presence and matching files
- Output directory writability`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := flags.toOverrides(cmd)
			cfg, err := loader.Load(overrides)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
			defer cancel()

			checks := runDoctorChecks(ctx, &cfg, newRunner(cfg))
			printDoctorReport(cmd, checks)

			for _, check := range checks {
				if check.Error != nil {
					return fmt.Errorf("doctor checks failed")
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "\n✓ All checks passed. System is ready.")
			return nil
		},
	}

	bindRuntimeFlags(cmd, flags)
	cmd.Flags().DurationVar(&probeTimeout, "probe-timeout", 10*time.Second, "Timeout for running cdo -V")

	return cmd
}

func runDoctorChecks(ctx context.Context, cfg *config.RuntimeConfig, runner cdo.Runner) []doctorCheck {
	checks := []doctorCheck{checkGoVersion()}
	checks = append(checks, checkCDOBinary(ctx, runner, cfg.DryRun))
	checks = append(checks, checkConfiguration(cfg))
	checks = append(checks, checkInputDirectory(cfg))

	if cfg.DryRun {
		checks = append(checks, doctorCheck{
			Name:   "Output Directory",
			Status: "⊘",
			Detail: "Skipped (dry-run mode)",
		})
	} else {
		checks = append(checks, checkOutputDirectory(cfg.OutputDir))
	}

	return checks
}

func checkGoVersion() doctorCheck {
	return doctorCheck{
		Name:   "Go Runtime",
		Status: "✓",
		Detail: fmt.Sprintf("Version %s", runtime.Version()),
	}
}

func checkCDOBinary(ctx context.Context, runner cdo.Runner, dryRun bool) doctorCheck {
	if dryRun {
		return doctorCheck{
			Name:   "cdo Binary",
			Status: "⊘",
			Detail: "Skipped (dry-run mode)",
		}
	}

	if err := runner.EnsureBinary(); err != nil {
		return doctorCheck{
			Name:   "cdo Binary",
			Status: "✗",
			Detail: "Not found in PATH",
			Error:  err,
		}
	}

	detail := "Available"
	if version, err := runner.Version(ctx); err == nil {
		detail = version
	}

	return doctorCheck{
		Name:   "cdo Binary",
		Status: "✓",
		Detail: detail,
	}
}

func checkConfiguration(cfg *config.RuntimeConfig) doctorCheck {
	if err := cfg.Validate(); err != nil {
		return doctorCheck{
			Name:   "Configuration",
			Status: "✗",
			Detail: "Invalid configuration",
			Error:  err,
		}
	}

	if _, err := verify.DefaultRegistry.Build(cfg.Verify); err != nil {
		return doctorCheck{
			Name:   "Configuration",
			Status: "✗",
			Detail: "Invalid verify checks",
			Error:  err,
		}
	}

	return doctorCheck{
		Name:   "Configuration",
		Status: "✓",
		Detail: fmt.Sprintf("%s -> %s, cdo -f %s %s", cfg.SourceExt, cfg.TargetExt, cfg.CDOFormat, cfg.CDOOperator),
	}
}

func checkInputDirectory(cfg *config.RuntimeConfig) doctorCheck {
	if err := batch.CheckInputDir(cfg.InputDir); err != nil {
		return doctorCheck{
			Name:   "Input Directory",
			Status: "✗",
			Detail: cfg.InputDir,
			Error:  err,
		}
	}

	entries, err := batch.Discover(cfg.InputDir, cfg.OutputDir, cfg.SourceExt, cfg.TargetExt)
	if err != nil {
		return doctorCheck{
			Name:   "Input Directory",
			Status: "✗",
			Detail: cfg.InputDir,
			Error:  err,
		}
	}

	return doctorCheck{
		Name:   "Input Directory",
		Status: "✓",
		Detail: fmt.Sprintf("%s (%d matching *%s)", cfg.InputDir, len(entries), cfg.SourceExt),
	}
}

func checkOutputDirectory(outputDir string) doctorCheck {
	if err := ensureOutputDir(outputDir); err != nil {
		return doctorCheck{
			Name:   "Output Directory",
			Status: "✗",
			Detail: outputDir,
			Error:  err,
		}
	}

	return doctorCheck{
		Name:   "Output Directory",
		Status: "✓",
		Detail: outputDir,
	}
}

func printDoctorReport(cmd *cobra.Command, checks []doctorCheck) {
	fmt.Fprintln(cmd.OutOrStdout(), "Running environment diagnostics...")

	for _, check := range checks {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-30s %s\n", check.Status, check.Name+":", check.Detail)
		if check.Error != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "   Error: %v\n", check.Error)
		}
	}
}
