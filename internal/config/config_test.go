package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.Root))
	assert.True(t, cfg.Scan.RespectGitignore)
	assert.True(t, cfg.ConstantPropagation)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, DefaultRuleTimeoutMs, cfg.Limits.RuleTimeoutMs)
	assert.Contains(t, cfg.Scan.Exclude, "**/node_modules/**")
}

func TestLoadKDLOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, `
rules "rules/" "extra.yaml"
scan {
    include "src/**"
    exclude "testdata/**"
    respect_gitignore false
    max_file_size "2MB"
}
limits {
    rule_timeout_ms 250
    jobs 2
}
output {
    format "json"
    explanations true
}
constant_propagation false
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"rules/", "extra.yaml"}, cfg.RuleFiles)
	assert.Equal(t, []string{"src/**"}, cfg.Scan.Include)
	assert.Contains(t, cfg.Scan.Exclude, "testdata/**")
	assert.Contains(t, cfg.Scan.Exclude, "**/node_modules/**")
	assert.False(t, cfg.Scan.RespectGitignore)
	assert.Equal(t, int64(2*1024*1024), cfg.Scan.MaxFileSize)
	assert.Equal(t, 250, cfg.Limits.RuleTimeoutMs)
	assert.Equal(t, 2, cfg.Limits.Jobs)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.True(t, cfg.Output.Explanations)
	assert.False(t, cfg.ConstantPropagation)
}

func TestLoadMalformedKDL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, `scan {`)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ConfigFileName)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.RuleFiles = []string{"rules.yaml"}
	require.NoError(t, cfg.Validate())

	noRules := Default()
	assert.Error(t, noRules.Validate())

	badFormat := Default()
	badFormat.RuleFiles = []string{"rules.yaml"}
	badFormat.Output.Format = "xml"
	assert.Error(t, badFormat.Validate())

	badJobs := Default()
	badJobs.RuleFiles = []string{"rules.yaml"}
	badJobs.Limits.Jobs = 0
	assert.Error(t, badJobs.Validate())
}

func TestParseSize(t *testing.T) {
	for in, want := range map[string]int64{
		"100":   100,
		"10B":   10,
		"2KB":   2048,
		"2MB":   2 * 1024 * 1024,
		"1GB":   1024 * 1024 * 1024,
		" 5mb ": 5 * 1024 * 1024,
	} {
		got, err := parseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseSize("lots")
	assert.Error(t, err)
}
