// Package config loads the bot's settings from a config file, the
// environment and command line flags.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"slippidex/logging"
	"slippidex/pacing"
)

// EnvPrefix prefixes every environment variable, e.g. SLIPPIDEX_PACING_INTERVAL.
const EnvPrefix = "SLIPPIDEX"

// Session store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds all settings.
type Config struct {
	Token     string          `mapstructure:"token"`
	Guild     string          `mapstructure:"guild"`
	DBPath    string          `mapstructure:"db_path"`
	AssetsDir string          `mapstructure:"assets_dir"`
	Pacing    PacingConfig    `mapstructure:"pacing"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       logging.Conf    `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

// PacingConfig sets the spacing of mutating Discord calls.
type PacingConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Burst    int           `mapstructure:"burst"`
}

// SessionConfig controls selection menus.
type SessionConfig struct {
	TTL   time.Duration `mapstructure:"ttl"`
	Store string        `mapstructure:"store"`
}

// RedisConfig locates the redis server for shared session storage.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// MetricsConfig sets where /metrics is served. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ReconcileConfig schedules periodic reconciliation, as a cron spec.
// Empty disables it.
type ReconcileConfig struct {
	Schedule string `mapstructure:"schedule"`
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for environment variables to reach them.
func SetDefaults(v *viper.Viper) {
	log := logging.Defaults()

	v.SetDefault("token", "")
	v.SetDefault("guild", "")
	v.SetDefault("db_path", "slippidex.db")
	v.SetDefault("assets_dir", "assets/characters")
	v.SetDefault("pacing.interval", pacing.DefaultInterval)
	v.SetDefault("pacing.burst", 1)
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.store", StoreMemory)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("log.level", log.Level)
	v.SetDefault("log.output", log.Output)
	v.SetDefault("log.path", log.Path)
	v.SetDefault("log.max_size_mb", log.MaxSizeMB)
	v.SetDefault("log.max_backups", log.MaxBackups)
	v.SetDefault("log.max_age_days", log.MaxAgeDays)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("reconcile.schedule", "@every 6h")
}

// Load reads the configuration. With an empty file, config.yaml is looked
// up in the working directory and /etc/slippidex, and a missing file is not
// an error.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/slippidex")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// Validate checks the settings. requireToken is set by commands that talk
// to Discord.
func (c Config) Validate(requireToken bool) error {
	if requireToken && c.Token == "" {
		return errors.New("token must be provided")
	}
	if c.DBPath == "" {
		return errors.New("db_path must be provided")
	}
	if c.Pacing.Interval < 0 {
		return errors.Errorf("pacing.interval must not be negative, got %v", c.Pacing.Interval)
	}
	if c.Pacing.Burst < 1 {
		return errors.Errorf("pacing.burst must be at least 1, got %d", c.Pacing.Burst)
	}
	if c.Session.TTL <= 0 {
		return errors.Errorf("session.ttl must be positive, got %v", c.Session.TTL)
	}
	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url must be provided for the redis session store")
		}
	default:
		return errors.Errorf("unknown session.store %q", c.Session.Store)
	}
	return nil
}
