package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-optimizer/internal/format"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 0.1, cfg.Optimizer.RetryQualityStep)
	assert.Equal(t, format.WebP, cfg.Optimizer.RetryFormat)
	assert.True(t, cfg.Worker.Enabled)
	assert.Equal(t, 64, cfg.Worker.QueueSize)
	assert.False(t, cfg.Storage.Enabled)
	assert.Equal(t, 1920, cfg.Remote.MaxWidth)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  write_timeout: 2m
optimizer:
  min_retry_quality: 0.5
  retry_format: "avif"
worker:
  enabled: false
retry:
  delay: 1s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 0.5, cfg.Optimizer.MinRetryQuality)
	assert.Equal(t, format.AVIF, cfg.Optimizer.RetryFormat)
	assert.False(t, cfg.Worker.Enabled)
	assert.Equal(t, time.Second, cfg.Retry.Delay)
	assert.Equal(t, 3, cfg.Retry.Attempts)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY", "access")
	t.Setenv("EXPORT_TO_STORAGE", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "access", cfg.Storage.AccessKey)
	assert.True(t, cfg.Storage.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
