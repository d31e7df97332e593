package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoadWithFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "cdo-batch.config.yml")
	configBody := []byte("inputDir: grib\noutputDir: out\ncdoArgs: -O -s\ntimeout: 90s\nverify:\n  - exists\n  - netcdf\n")
	require.NoError(t, os.WriteFile(configPath, configBody, 0o600))

	t.Setenv(envOutputDir, "env-out")
	t.Setenv(envTargetExt, "nc4c")

	loader := Loader{ConfigPath: configPath}
	cfg, err := loader.Load(Overrides{})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "grib", cfg.InputDir)
	assert.Equal(t, "env-out", cfg.OutputDir, "env override should set output dir")
	assert.Equal(t, ".nc4c", cfg.TargetExt, "target extension should be normalized")
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"-O", "-s"}, cfg.CDOArgs)
	assert.Equal(t, []string{"exists", "netcdf"}, cfg.Verify)
}

func TestLoaderDefaultsWithoutFile(t *testing.T) {
	loader := Loader{ConfigPath: filepath.Join(t.TempDir(), "missing.yml")}
	cfg, err := loader.Load(Overrides{})
	require.NoError(t, err)

	want := DefaultRuntimeConfig()
	assert.Equal(t, want.InputDir, cfg.InputDir)
	assert.Equal(t, want.OutputDir, cfg.OutputDir)
	assert.Equal(t, ".nc", cfg.SourceExt)
	assert.Equal(t, ".nc4", cfg.TargetExt)
	assert.Equal(t, "cdo", cfg.CDOBinary)
	assert.Equal(t, "nc4", cfg.CDOFormat)
	assert.Equal(t, "copy", cfg.CDOOperator)
}

func TestOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "cdo-batch.config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("inputDir: from-file\ndryRun: false\n"), 0o600))

	dryRun := true
	loader := Loader{ConfigPath: configPath}
	cfg, err := loader.Load(Overrides{InputDir: "from-flag", DryRun: &dryRun})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.InputDir)
	assert.True(t, cfg.DryRun, "expected dry-run from override")
}

func TestLoaderReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	body := "CDO_BATCH_INPUT_DIR=dotenv-in\nCDO_BATCH_BINARY=/opt/cdo/bin/cdo\nCDO_BATCH_VERIFY=none\n"
	require.NoError(t, os.WriteFile(envFile, []byte(body), 0o600))

	// Process environment takes precedence over the dotenv file.
	t.Setenv(envBinary, "cdo-from-env")

	loader := Loader{ConfigPath: filepath.Join(dir, "missing.yml"), EnvFile: envFile}
	cfg, err := loader.Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "dotenv-in", cfg.InputDir)
	assert.Equal(t, "cdo-from-env", cfg.CDOBinary, "process env should win")
	assert.Empty(t, cfg.Verify, "verify=none should disable checks")
}

func TestLoaderRejectsBadTimeout(t *testing.T) {
	t.Setenv(envTimeout, "soon")

	loader := Loader{ConfigPath: filepath.Join(t.TempDir(), "missing.yml")}
	_, err := loader.Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), envTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RuntimeConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*RuntimeConfig) {}},
		{name: "empty input", mutate: func(c *RuntimeConfig) { c.InputDir = " " }, wantErr: "input directory"},
		{name: "empty output", mutate: func(c *RuntimeConfig) { c.OutputDir = "" }, wantErr: "output directory"},
		{name: "bare extension", mutate: func(c *RuntimeConfig) { c.SourceExt = "nc" }, wantErr: "start with a dot"},
		{name: "glob in extension", mutate: func(c *RuntimeConfig) { c.TargetExt = ".nc*" }, wantErr: "invalid characters"},
		{
			name: "self overwrite",
			mutate: func(c *RuntimeConfig) {
				c.OutputDir = c.InputDir + "/"
				c.TargetExt = c.SourceExt
			},
			wantErr: "converted again",
		},
		{
			name: "target ends in source extension",
			mutate: func(c *RuntimeConfig) {
				c.OutputDir = c.InputDir
				c.TargetExt = ".x.nc"
			},
			wantErr: "converted again",
		},
		{
			name: "distinct extension in same directory",
			mutate: func(c *RuntimeConfig) {
				c.OutputDir = c.InputDir
				c.TargetExt = ".nc4"
			},
		},
		{
			name: "source suffix allowed in another directory",
			mutate: func(c *RuntimeConfig) {
				c.TargetExt = ".x.nc"
			},
		},
		{name: "missing binary", mutate: func(c *RuntimeConfig) { c.CDOBinary = "" }, wantErr: "binary"},
		{name: "negative timeout", mutate: func(c *RuntimeConfig) { c.Timeout = -time.Second }, wantErr: "timeout"},
		{name: "bad output", mutate: func(c *RuntimeConfig) { c.Output = "xml" }, wantErr: "output mode"},
		{name: "bad log format", mutate: func(c *RuntimeConfig) { c.LogFormat = "logfmt" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRuntimeConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseListAndNormalizeExt(t *testing.T) {
	assert.Equal(t, []string{"exists", "netcdf", "exists"}, ParseList(" exists, netcdf\nexists "))
	assert.Nil(t, ParseList("   "), "blank input should produce nil")

	assert.Equal(t, ".grb", NormalizeExt("grb"))
	assert.Equal(t, ".nc", NormalizeExt(".nc"))
	assert.Equal(t, "", NormalizeExt(""))
}

func TestParseVerify(t *testing.T) {
	assert.Nil(t, ParseVerify(" None "), "none should disable checks")
	assert.Equal(t, []string{"exists", "netcdf"}, ParseVerify("exists,netcdf"))
}
