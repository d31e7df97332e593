package cli

import (
	"strings"
	"time"

	"github.com/example/cdo-batch/internal/config"
	"github.com/spf13/cobra"
)

// runtimeFlagSet tracks shared convert/init/doctor flags before they are converted into config overrides.
type runtimeFlagSet struct {
	inputDir    string
	outputDir   string
	sourceExt   string
	targetExt   string
	cdoBinary   string
	cdoFormat   string
	cdoOperator string
	cdoArgs     string
	timeout     time.Duration
	verify      string
	dryRun      bool
	summaryFile string
	metricsFile string
	logLevel    string
	logFormat   string
	output      string
}

func bindRuntimeFlags(cmd *cobra.Command, flags *runtimeFlagSet) {
	cmd.Flags().StringVar(&flags.inputDir, "input-dir", "", "Directory scanned for source files (overrides config)")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "Directory receiving converted files; created if missing")
	cmd.Flags().StringVar(&flags.sourceExt, "source-ext", "", "Extension of files to convert (default .nc)")
	cmd.Flags().StringVar(&flags.targetExt, "target-ext", "", "Extension given to converted files (default .nc4)")
	cmd.Flags().StringVar(&flags.cdoBinary, "cdo-binary", "", "Name or path of the cdo executable")
	cmd.Flags().StringVar(&flags.cdoFormat, "cdo-format", "", "Output format passed to cdo -f (nc, nc2, nc4, nc4c, ...)")
	cmd.Flags().StringVar(&flags.cdoOperator, "cdo-operator", "", "cdo operator applied to each file (default copy)")
	cmd.Flags().StringVar(&flags.cdoArgs, "cdo-args", "", "Extra cdo options placed before -f, space separated (e.g. \"-O -z zip_4\")")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Per-file conversion timeout (0 disables)")
	cmd.Flags().StringVar(&flags.verify, "verify", "", "Comma-separated checks run on each output (exists,netcdf or none)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "List planned conversions without running cdo")
	cmd.Flags().StringVar(&flags.summaryFile, "summary-file", "", "Optional summary JSON output path")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "Optional Prometheus textfile output path")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "", "Log format on stderr: text or json")
	cmd.Flags().StringVar(&flags.output, "output", "", "Progress output on stdout: text or ndjson")
}

func (f runtimeFlagSet) toOverrides(cmd *cobra.Command) config.Overrides {
	ov := config.Overrides{}
	if cmd.Flags().Changed("input-dir") {
		ov.InputDir = f.inputDir
	}

	if cmd.Flags().Changed("output-dir") {
		ov.OutputDir = f.outputDir
	}

	if cmd.Flags().Changed("source-ext") {
		ov.SourceExt = f.sourceExt
	}

	if cmd.Flags().Changed("target-ext") {
		ov.TargetExt = f.targetExt
	}

	if cmd.Flags().Changed("cdo-binary") {
		ov.CDOBinary = f.cdoBinary
	}

	if cmd.Flags().Changed("cdo-format") {
		ov.CDOFormat = f.cdoFormat
	}

	if cmd.Flags().Changed("cdo-operator") {
		ov.CDOOperator = f.cdoOperator
	}

	if cmd.Flags().Changed("cdo-args") {
		ov.CDOArgs = strings.Fields(f.cdoArgs)
	}

	if cmd.Flags().Changed("timeout") {
		ov.Timeout = &f.timeout
	}

	if cmd.Flags().Changed("verify") {
		ov.Verify = config.ParseVerify(f.verify)
		ov.VerifySet = true
	}

	if cmd.Flags().Changed("dry-run") {
		ov.DryRun = &f.dryRun
	}

	if cmd.Flags().Changed("summary-file") {
		ov.SummaryFile = f.summaryFile
	}

	if cmd.Flags().Changed("metrics-file") {
		ov.MetricsFile = f.metricsFile
	}

	if cmd.Flags().Changed("log-level") {
		ov.LogLevel = f.logLevel
	}

	if cmd.Flags().Changed("log-format") {
		ov.LogFormat = f.logFormat
	}

	if cmd.Flags().Changed("output") {
		ov.Output = f.output
	}

	return ov
}
