package cli

import (
	"context"
	"errors"

	"github.com/example/cdo-batch/internal/config"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=...".
var version = "dev"

// Exit codes returned by the cdo-batch binary.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitConversionFailed = 2
)

// ErrConversionsFailed is returned by convert when at least one file failed.
var ErrConversionsFailed = errors.New("one or more conversions failed")

// Execute builds the root command tree and runs the CLI.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// ExitCode maps an Execute error onto the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrConversionsFailed) {
		return ExitConversionFailed
	}
	return ExitFailure
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithClock(clockwork.NewRealClock())
}

// newRootCmdWithClock builds the command tree with clock driving run
// timestamps, durations and report ages.
func newRootCmdWithClock(clock clockwork.Clock) *cobra.Command {
	loader := &config.Loader{ConfigPath: config.DefaultConfigPath, EnvFile: config.DefaultEnvFile}
	rootOpts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "cdo-batch",
		Short:         "Batch-convert forecast files to NetCDF-4 with cdo",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	rootCmd.SetVersionTemplate("cdo-batch version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&rootOpts.ConfigPath, "config", config.DefaultConfigPath, "Path to cdo-batch.config.yml (optional)")
	rootCmd.PersistentFlags().StringVar(&rootOpts.EnvFile, "env-file", config.DefaultEnvFile, "Path to a dotenv file with CDO_BATCH_* variables (optional)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if rootOpts.ConfigPath != "" {
			loader.ConfigPath = rootOpts.ConfigPath
		}
		loader.EnvFile = rootOpts.EnvFile
	}

	rootCmd.AddCommand(
		newConvertCmd(loader, clock),
		newInitCmd(loader),
		newDoctorCmd(loader),
		newReportCmd(clock),
		newPlanCmd(loader),
		newInspectCmd(),
	)

	return rootCmd
}

type rootOptions struct {
	ConfigPath string
	EnvFile    string
}
