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
	assert.Equal(t, 10000, cfg.MaxPersistComplexity)
	assert.Equal(t, 2.0, cfg.TimerLagClampSeconds)
	assert.False(t, cfg.PersistPathTracking)
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	content := "timerLagClampSeconds: 5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o644))

	base := DefaultConfig()
	cfg, err := loadConfig(dir, &base)
	require.NoError(t, err)

	assert.Equal(t, 5.0, cfg.TimerLagClampSeconds)
	assert.Equal(t, 10000, cfg.MaxPersistComplexity)
}

func TestLoadConfigCreatesMissingFile(t *testing.T) {
	dir := t.TempDir()
	base := DefaultConfig()
	cfg, err := loadConfig(dir, &base)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().MaxPersistComplexity, cfg.MaxPersistComplexity)
	assert.FileExists(t, filepath.Join(dir, "config.yml"))
}

func TestWriteConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.TimerLagClampSeconds = 7.5
	require.NoError(t, WriteConfig(dir, &cfg))

	base := DefaultConfig()
	reloaded, err := loadConfig(dir, &base)
	require.NoError(t, err)
	assert.Equal(t, 7.5, reloaded.TimerLagClampSeconds)
}
