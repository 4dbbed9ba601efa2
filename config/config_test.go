package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plabayo/rama-go/config"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load("", "RAMA_TEST_UNUSED_")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMergesYAMLFileOverDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \"0.0.0.0:9999\"\nlog_level: debug\n"), 0o600))

	cfg, err := config.Load(path, "RAMA_TEST_UNUSED_")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("RAMA_TEST_LISTEN", "0.0.0.0:7777")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \"0.0.0.0:9999\"\n"), 0o600))

	cfg, err := config.Load(path, "RAMA_TEST_")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7777", cfg.Listen)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: noisy\n"), 0o600))

	_, err := config.Load(path, "RAMA_TEST_UNUSED2_")
	require.Error(t, err)
}
