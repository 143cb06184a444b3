package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Conf holds logger configuration.
type Conf struct {
	Level      string `mapstructure:"level"`
	Output     string `mapstructure:"output"` // "stdout" or "file"
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Defaults returns the default logger configuration.
func Defaults() Conf {
	return Conf{
		Level:      "info",
		Output:     "stdout",
		Path:       "./logs/slippidex.log",
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
	}
}

// New builds a zap logger from the given configuration.
func New(conf Conf) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(conf.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", conf.Level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var (
		encoder zapcore.Encoder
		sink    zapcore.WriteSyncer
	)

	switch conf.Output {
	case "", "stdout":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		sink = zapcore.AddSync(os.Stdout)
	case "file":
		if conf.Path == "" {
			return nil, fmt.Errorf("log path is required when output is 'file'")
		}
		if err := os.MkdirAll(filepath.Dir(conf.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   conf.Path,
			MaxSize:    conf.MaxSizeMB,
			MaxBackups: conf.MaxBackups,
			MaxAge:     conf.MaxAgeDays,
			Compress:   true,
		})
	default:
		return nil, fmt.Errorf("unknown log output %q", conf.Output)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.AddCaller()), nil
}
