package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and PREFLIGHT_HOME at empty directories.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PREFLIGHT_HOME", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, int64(1<<20), cfg.Scan.MaxFileSize)
	assert.Positive(t, cfg.Scan.Workers)
	assert.Equal(t, []string{"js", "ts", "jsx", "tsx", "json"}, cfg.Scan.Extensions)
	assert.Equal(t, 10, cfg.Audit.Concurrency)
	assert.Equal(t, 500, cfg.Audit.BatchSize)
	assert.Equal(t, 200, cfg.Audit.ReputationCeiling)
	assert.Equal(t, 5*time.Second, cfg.Audit.Timeouts.Metadata)
	assert.Equal(t, 3*time.Second, cfg.Audit.Timeouts.Downloads)
	assert.Equal(t, 10*time.Second, cfg.Audit.Timeouts.Batch)
	assert.Equal(t, "https://api.osv.dev", cfg.Audit.Endpoints.OSV)
	assert.True(t, cfg.Reputation.Enabled)
	assert.Equal(t, 14, cfg.Reputation.MinAgeDays)
	assert.Equal(t, 50, cfg.Reputation.MinWeeklyDownloads)
	assert.True(t, cfg.Typosquat.Live)
	assert.Empty(t, cfg.FailOn)
	assert.Empty(t, cfg.Source)
}

func TestDefault_MatchesLoad(t *testing.T) {
	isolate(t)
	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, loaded, Default())
}

func TestLoad_ProjectFileOverrides(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".preflight.yaml"), []byte(`
audit:
  reputation_ceiling: 50
  timeouts:
    batch: 20s
reputation:
  exceptions:
    - pattern: "@myorg/*"
      reason: internal
      until: "2030-01-01"
fail_on: high
`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Audit.ReputationCeiling)
	assert.Equal(t, 20*time.Second, cfg.Audit.Timeouts.Batch)
	assert.Equal(t, 500, cfg.Audit.BatchSize)
	require.Len(t, cfg.Reputation.Exceptions, 1)
	assert.Equal(t, "@myorg/*", cfg.Reputation.Exceptions[0].Pattern)
	assert.Equal(t, "2030-01-01", cfg.Reputation.Exceptions[0].Until)
	assert.Equal(t, "high", cfg.FailOn)
	assert.Equal(t, filepath.Join(dir, ".preflight.yaml"), cfg.Source)
}

func TestLoad_TOMLProjectFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".preflight.toml"), []byte(`
fail_on = "critical"

[typosquat]
live = false
`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "critical", cfg.FailOn)
	assert.False(t, cfg.Typosquat.Live)
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("PREFLIGHT_AUDIT_CONCURRENCY", "4")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Audit.Concurrency)
}

func TestLoad_InvalidProjectFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown key", ".preflight.yaml", "scna:\n  workers: 2\n"},
		{"bad severity", ".preflight.yaml", "fail_on: severe\n"},
		{"batch too large", ".preflight.yaml", "audit:\n  batch_size: 5000\n"},
		{"exception without pattern", "preflight.yml", "reputation:\n  exceptions:\n    - reason: x\n"},
		{"bad duration", ".preflight.json", `{"typosquat": {"timeout": "soon"}}`},
		{"malformed yaml", ".preflight.yaml", "audit: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.content), 0o644))

			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Audit.Concurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.FailOn = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestFindProjectFile(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindProjectFile(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "preflight.yaml"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".preflight.yml"), []byte("{}"), 0o644))
	assert.Equal(t, filepath.Join(dir, ".preflight.yml"), FindProjectFile(dir))
}

func TestGetPreflightHome(t *testing.T) {
	t.Setenv("PREFLIGHT_HOME", "/custom/home")
	home, err := GetPreflightHome()
	require.NoError(t, err)
	assert.Equal(t, "/custom/home", home)

	t.Setenv("PREFLIGHT_HOME", "")
	t.Setenv("HOME", "/users/dev")
	home, err = GetPreflightHome()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/users/dev", ".preflight"), home)
}
