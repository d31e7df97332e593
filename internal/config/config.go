package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "cdo-batch.config.yml"
	DefaultEnvFile    = ".env"

	envInputDir    = "CDO_BATCH_INPUT_DIR"
	envOutputDir   = "CDO_BATCH_OUTPUT_DIR"
	envSourceExt   = "CDO_BATCH_SOURCE_EXT"
	envTargetExt   = "CDO_BATCH_TARGET_EXT"
	envBinary      = "CDO_BATCH_BINARY"
	envFormat      = "CDO_BATCH_FORMAT"
	envOperator    = "CDO_BATCH_OPERATOR"
	envExtraArgs   = "CDO_BATCH_ARGS"
	envTimeout     = "CDO_BATCH_TIMEOUT"
	envVerify      = "CDO_BATCH_VERIFY"
	envDryRun      = "CDO_BATCH_DRY_RUN"
	envSummaryFile = "CDO_BATCH_SUMMARY_FILE"
	envMetricsFile = "CDO_BATCH_METRICS_FILE"
	envLogLevel    = "CDO_BATCH_LOG_LEVEL"
	envLogFormat   = "CDO_BATCH_LOG_FORMAT"
	envOutput      = "CDO_BATCH_OUTPUT"
)

// Output modes for progress reporting on stdout.
const (
	OutputText   = "text"
	OutputNDJSON = "ndjson"
)

// Loader merges configuration coming from files, environment variables, and CLI flags.
type Loader struct {
	ConfigPath string
	EnvFile    string
}

// RuntimeConfig contains the fully merged settings required by the sub-commands.
type RuntimeConfig struct {
	InputDir    string
	OutputDir   string
	SourceExt   string
	TargetExt   string
	CDOBinary   string
	CDOFormat   string
	CDOOperator string
	CDOArgs     []string
	Timeout     time.Duration
	Verify      []string
	DryRun      bool
	SummaryFile string
	MetricsFile string
	LogLevel    string
	LogFormat   string
	Output      string
}

// Overrides captures values coming from env vars or CLI flags.
type Overrides struct {
	InputDir    string
	OutputDir   string
	SourceExt   string
	TargetExt   string
	CDOBinary   string
	CDOFormat   string
	CDOOperator string
	CDOArgs     []string
	Timeout     *time.Duration
	Verify      []string
	VerifySet   bool
	DryRun      *bool
	SummaryFile string
	MetricsFile string
	LogLevel    string
	LogFormat   string
	Output      string
}

// DefaultRuntimeConfig returns the baseline configuration when no overrides are provided.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		InputDir:    "data/enfo_cf",
		OutputDir:   "data/enfo_cf_nc4",
		SourceExt:   ".nc",
		TargetExt:   ".nc4",
		CDOBinary:   "cdo",
		CDOFormat:   "nc4",
		CDOOperator: "copy",
		Verify:      []string{"exists"},
		LogLevel:    "info",
		LogFormat:   "text",
		Output:      OutputText,
	}
}

// Load resolves the final runtime configuration.
func (l Loader) Load(override Overrides) (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	path := l.ConfigPath
	if path == "" {
		path = DefaultConfigPath
	}

	if fileExists(path) {
		fileOv, err := loadFromFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		cfg.apply(fileOv)
	}

	dotenv, err := readEnvFile(l.EnvFile)
	if err != nil {
		return cfg, err
	}

	envOv, err := overridesFromEnv(lookupWith(dotenv))
	if err != nil {
		return cfg, err
	}
	cfg.apply(envOv)
	cfg.apply(override)

	return cfg, nil
}

// Validate ensures the config contains the minimum required data for the converter.
func (c RuntimeConfig) Validate() error {
	if strings.TrimSpace(c.InputDir) == "" {
		return errors.New("input directory cannot be empty; provide --input-dir or set " + envInputDir)
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output directory cannot be empty")
	}

	if err := validateExt("source", c.SourceExt); err != nil {
		return err
	}

	if err := validateExt("target", c.TargetExt); err != nil {
		return err
	}

	// Outputs written next to the inputs must not match the source pattern.
	if strings.HasSuffix(c.TargetExt, c.SourceExt) && filepath.Clean(c.InputDir) == filepath.Clean(c.OutputDir) {
		return fmt.Errorf("target extension %s ends in source extension %s in %s; outputs would be converted again on the next run", c.TargetExt, c.SourceExt, c.InputDir)
	}

	if c.CDOBinary == "" {
		return errors.New("cdo binary cannot be empty")
	}

	if c.CDOFormat == "" || c.CDOOperator == "" {
		return errors.New("cdo format and operator must be specified")
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative (got %s)", c.Timeout)
	}

	switch c.Output {
	case OutputText, OutputNDJSON:
	default:
		return fmt.Errorf("unsupported output mode %q (want %s or %s)", c.Output, OutputText, OutputNDJSON)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q (want text or json)", c.LogFormat)
	}

	return nil
}

func validateExt(kind, ext string) error {
	if ext == "" {
		return fmt.Errorf("%s extension cannot be empty", kind)
	}
	if !strings.HasPrefix(ext, ".") || ext == "." {
		return fmt.Errorf("%s extension must start with a dot (got %q)", kind, ext)
	}
	if strings.ContainsAny(ext, `/\*?[`) {
		return fmt.Errorf("%s extension contains invalid characters: %q", kind, ext)
	}
	return nil
}

func (c *RuntimeConfig) apply(src Overrides) {
	if src.InputDir != "" {
		c.InputDir = src.InputDir
	}

	if src.OutputDir != "" {
		c.OutputDir = src.OutputDir
	}

	if src.SourceExt != "" {
		c.SourceExt = NormalizeExt(src.SourceExt)
	}

	if src.TargetExt != "" {
		c.TargetExt = NormalizeExt(src.TargetExt)
	}

	if src.CDOBinary != "" {
		c.CDOBinary = src.CDOBinary
	}

	if src.CDOFormat != "" {
		c.CDOFormat = src.CDOFormat
	}

	if src.CDOOperator != "" {
		c.CDOOperator = src.CDOOperator
	}

	if len(src.CDOArgs) > 0 {
		c.CDOArgs = cleanList(src.CDOArgs)
	}

	if src.Timeout != nil {
		c.Timeout = *src.Timeout
	}

	// An explicitly empty verify list disables all checks.
	if src.VerifySet {
		c.Verify = cleanList(src.Verify)
	}

	if src.DryRun != nil {
		c.DryRun = *src.DryRun
	}

	if src.SummaryFile != "" {
		c.SummaryFile = src.SummaryFile
	}

	if src.MetricsFile != "" {
		c.MetricsFile = src.MetricsFile
	}

	if src.LogLevel != "" {
		c.LogLevel = strings.ToLower(src.LogLevel)
	}

	if src.LogFormat != "" {
		c.LogFormat = strings.ToLower(src.LogFormat)
	}

	if src.Output != "" {
		c.Output = strings.ToLower(src.Output)
	}
}

func loadFromFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, err
	}

	type rawConfig struct {
		InputDir    string    `yaml:"inputDir"`
		OutputDir   string    `yaml:"outputDir"`
		SourceExt   string    `yaml:"sourceExt"`
		TargetExt   string    `yaml:"targetExt"`
		CDOBinary   string    `yaml:"cdoBinary"`
		CDOFormat   string    `yaml:"cdoFormat"`
		CDOOperator string    `yaml:"cdoOperator"`
		CDOArgs     wordList  `yaml:"cdoArgs"`
		Timeout     string    `yaml:"timeout"`
		Verify      *wordList `yaml:"verify"`
		DryRun      *bool     `yaml:"dryRun"`
		SummaryFile string    `yaml:"summaryFile"`
		MetricsFile string    `yaml:"metricsFile"`
		LogLevel    string    `yaml:"logLevel"`
		LogFormat   string    `yaml:"logFormat"`
		Output      string    `yaml:"output"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Overrides{}, err
	}

	over := Overrides{
		InputDir:    raw.InputDir,
		OutputDir:   raw.OutputDir,
		SourceExt:   raw.SourceExt,
		TargetExt:   raw.TargetExt,
		CDOBinary:   raw.CDOBinary,
		CDOFormat:   raw.CDOFormat,
		CDOOperator: raw.CDOOperator,
		CDOArgs:     raw.CDOArgs,
		DryRun:      raw.DryRun,
		SummaryFile: raw.SummaryFile,
		MetricsFile: raw.MetricsFile,
		LogLevel:    raw.LogLevel,
		LogFormat:   raw.LogFormat,
		Output:      raw.Output,
	}

	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return Overrides{}, fmt.Errorf("invalid timeout %q: %w", raw.Timeout, err)
		}
		over.Timeout = &d
	}

	if raw.Verify != nil {
		over.Verify = *raw.Verify
		over.VerifySet = true
	}

	return over, nil
}

// readEnvFile parses a dotenv file without touching the process environment.
// A missing file is not an error.
func readEnvFile(path string) (map[string]string, error) {
	if path == "" || !fileExists(path) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return values, nil
}

// lookupWith prefers the process environment and falls back to dotenv values.
func lookupWith(dotenv map[string]string) func(string) string {
	return func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return dotenv[key]
	}
}

func overridesFromEnv(getenv func(string) string) (Overrides, error) {
	ov := Overrides{
		InputDir:    getenv(envInputDir),
		OutputDir:   getenv(envOutputDir),
		SourceExt:   getenv(envSourceExt),
		TargetExt:   getenv(envTargetExt),
		CDOBinary:   getenv(envBinary),
		CDOFormat:   getenv(envFormat),
		CDOOperator: getenv(envOperator),
		SummaryFile: getenv(envSummaryFile),
		MetricsFile: getenv(envMetricsFile),
		LogLevel:    getenv(envLogLevel),
		LogFormat:   getenv(envLogFormat),
		Output:      getenv(envOutput),
	}

	if value := getenv(envExtraArgs); value != "" {
		ov.CDOArgs = strings.Fields(value)
	}

	if value := getenv(envTimeout); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return Overrides{}, fmt.Errorf("invalid %s %q: %w", envTimeout, value, err)
		}
		ov.Timeout = &d
	}

	if value, ok := lookupSet(getenv, envVerify); ok {
		ov.Verify = ParseList(value)
		ov.VerifySet = true
	}

	if value := getenv(envDryRun); value != "" {
		parsed := strings.EqualFold(value, "true") || value == "1"
		ov.DryRun = &parsed
	}

	return ov, nil
}

// lookupSet treats the literal "none" as an explicitly empty list.
func lookupSet(getenv func(string) string, key string) (string, bool) {
	value := getenv(key)
	if value == "" {
		return "", false
	}
	if strings.EqualFold(value, "none") {
		return "", true
	}
	return value, true
}

// ParseVerify parses a check list given on the command line; "none" disables
// all checks.
func ParseVerify(input string) []string {
	if strings.EqualFold(strings.TrimSpace(input), "none") {
		return nil
	}
	return ParseList(input)
}

// NormalizeExt adds the leading dot to a bare extension such as "nc".
func NormalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// ParseList splits comma, whitespace or newline separated values.
func ParseList(input string) []string {
	return splitOnDelimiters(input, []rune{',', '\n', '\r', ' ', '\t'})
}

func splitOnDelimiters(input string, delims []rune) []string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	separator := func(r rune) bool {
		for _, d := range delims {
			if r == d {
				return true
			}
		}
		return false
	}

	return cleanList(strings.FieldsFunc(trimmed, separator))
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		candidate := strings.TrimSpace(v)
		if candidate != "" {
			out = append(out, candidate)
		}
	}
	return out
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// wordList enables YAML fields that can be specified as a scalar or sequence.
type wordList []string

func (w *wordList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var out []string
		for _, node := range value.Content {
			out = append(out, strings.TrimSpace(node.Value))
		}
		*w = cleanList(out)
	case yaml.ScalarNode:
		*w = ParseList(value.Value)
	default:
		return fmt.Errorf("unsupported YAML type for list value")
	}
	return nil
}
