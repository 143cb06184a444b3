package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "slippidex.db", cfg.DBPath)
	assert.Equal(t, 500*time.Millisecond, cfg.Pacing.Interval)
	assert.Equal(t, 1, cfg.Pacing.Burst)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, StoreMemory, cfg.Session.Store)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "@every 6h", cfg.Reconcile.Schedule)

	assert.NoError(t, cfg.Validate(false))
	assert.Error(t, cfg.Validate(true))
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slippidex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
token: from-file
pacing:
  interval: 1s
  burst: 3
session:
  ttl: 10m
log:
  max_size_mb: 7
`), 0o600))
	t.Setenv("SLIPPIDEX_TOKEN", "from-env")
	t.Setenv("SLIPPIDEX_SESSION_STORE", "redis")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, time.Second, cfg.Pacing.Interval)
	assert.Equal(t, 3, cfg.Pacing.Burst)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, StoreRedis, cfg.Session.Store)
	assert.Equal(t, 7, cfg.Log.MaxSizeMB)
	assert.NoError(t, cfg.Validate(true))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load(viper.New(), "")
	require.NoError(t, err)
	base.Token = "t"

	for name, mutate := range map[string]func(*Config){
		"negative interval": func(c *Config) { c.Pacing.Interval = -time.Second },
		"zero burst":        func(c *Config) { c.Pacing.Burst = 0 },
		"zero ttl":          func(c *Config) { c.Session.TTL = 0 },
		"unknown store":     func(c *Config) { c.Session.Store = "etcd" },
		"redis without url": func(c *Config) { c.Session.Store = StoreRedis; c.Redis.URL = "" },
		"no db":             func(c *Config) { c.DBPath = "" },
	} {
		cfg := base
		mutate(&cfg)
		assert.Error(t, cfg.Validate(true), name)
	}
}
