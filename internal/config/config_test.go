package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, int64(5000), cfg.Correlation.WindowMS)
	assert.Empty(t, cfg.Projects)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loglens.yaml")
	data := `
projects:
  - name: alpha
    path_markers: ["AlphaAssistant", "alpha_resource"]
    dialect: trace
  - name: beta
    path_markers: ["BetaApp"]
    dialect: explicit
correlation:
  window_ms: 2500
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Projects, 2)
	assert.Equal(t, int64(2500), cfg.Correlation.WindowMS)

	p, ok := cfg.MatchProject(`C:\games\alpha_resource\base`)
	require.True(t, ok)
	assert.Equal(t, "alpha", p.Name)

	_, ok = cfg.MatchProject("/somewhere/else")
	assert.False(t, ok)
}

func TestLoadRejectsBadDialect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loglens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
projects:
  - name: broken
    path_markers: ["x"]
    dialect: mystery
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dialect")
}

func TestEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loglens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("correlation:\n  window_ms: 1000\n"), 0o644))

	t.Setenv("LOGLENS_CORRELATION_WINDOW_MS", "7000")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), cfg.Correlation.WindowMS)
}
