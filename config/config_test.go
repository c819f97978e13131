package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	assert := assert.New(t)

	f, err := Load("")
	assert.NoError(err)
	assert.Equal(5*time.Minute, f.Cache.DefaultStaleTime.Std())
	assert.Equal(30*time.Minute, f.Cache.RetentionTime.Std())
	assert.False(f.Persistence.Enabled)
}

func TestLoadFile(t *testing.T) {
	assert := assert.New(t)

	raw := `
backend:
  url: http://localhost:9000
  token_file: /tmp/token
  dev_mode: false
cache:
  default_stale_time: 10m
  retention_time: 1h
  sweep_interval: 2m
  memory_limit_bytes: 1048576
warming:
  - slice: systemOverview
    priority: high
    interval: 5m
  - slice: dashboard
    user_id: user-123
    priority: normal
    interval: 10m
persistence:
  enabled: true
  dir: /tmp/dashcache
  slices: [dashboard, systemOverview]
  max_age: 24h
  compress: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0600))

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal("http://localhost:9000", f.Backend.URL)
	assert.Equal(10*time.Minute, f.Cache.DefaultStaleTime.Std())
	assert.Equal(time.Hour, f.Cache.RetentionTime.Std())
	assert.Equal(1048576, f.Cache.MemoryLimitBytes)

	require.Len(t, f.Warming, 2)
	assert.Equal("systemOverview", f.Warming[0].Slice)
	assert.Equal("high", f.Warming[0].Priority)
	assert.Equal(5*time.Minute, f.Warming[0].Interval.Std())
	assert.Equal("user-123", f.Warming[1].UserID)

	assert.True(f.Persistence.Enabled)
	assert.Equal([]string{"dashboard", "systemOverview"}, f.Persistence.Slices)
	assert.Equal(24*time.Hour, f.Persistence.MaxAge.Std())
	assert.True(f.Persistence.Compress)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  retention_time: nonsense\n"), 0600))

	_, err := Load(path)
	assert.Error(err)
}
