package cli

import (
	"fmt"

	"github.com/example/cdo-batch/internal/batch"
	"github.com/example/cdo-batch/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd(loader *config.Loader) *cobra.Command {
	flags := &runtimeFlagSet{}
	var skipBinaryCheck bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Validate the execution environment and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := flags.toOverrides(cmd)
			cfg, err := loader.Load(overrides)
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := batch.CheckInputDir(cfg.InputDir); err != nil {
				return err
			}

			if !skipBinaryCheck && !cfg.DryRun {
				if err := newRunner(cfg).EnsureBinary(); err != nil {
					return err
				}
			}

			if err := ensureOutputDir(cfg.OutputDir); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Environment looks good. %s files in %s will be converted into %s\n", cfg.SourceExt, cfg.InputDir, cfg.OutputDir)
			return nil
		},
	}

	bindRuntimeFlags(cmd, flags)
	cmd.Flags().BoolVar(&skipBinaryCheck, "skip-cdo-check", false, "Allow init to pass even if cdo is missing (useful for dry-run mode)")

	return cmd
}
