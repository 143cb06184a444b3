package logging

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// GormLogger forwards gorm's logging to zap.
type GormLogger struct {
	Config logger.Config
	log    *zap.SugaredLogger
}

// NewGormLogger wraps the given zap logger for use with gorm.
func NewGormLogger(config logger.Config, zapLogger *zap.Logger) *GormLogger {
	return &GormLogger{
		Config: config,
		log:    zapLogger.WithOptions(zap.AddCallerSkip(3)).Sugar(),
	}
}

// LogMode implements logger.Interface.
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.Config.LogLevel = level
	return &clone
}

// Info implements logger.Interface.
func (l *GormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Info {
		l.log.Infof(msg, data...)
	}
}

// Warn implements logger.Interface.
func (l *GormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Warn {
		l.log.Warnf(msg, data...)
	}
}

// Error implements logger.Interface.
func (l *GormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Error {
		l.log.Errorf(msg, data...)
	}
}

// Trace implements logger.Interface.
func (l *GormLogger) Trace(
	_ context.Context,
	begin time.Time,
	fc func() (string, int64),
	err error,
) {
	if l.Config.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.Config.LogLevel >= logger.Error &&
		(!errors.Is(err, logger.ErrRecordNotFound) || !l.Config.IgnoreRecordNotFoundError):
		sql, rows := fc()
		l.log.Errorw("query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case l.Config.SlowThreshold != 0 && elapsed > l.Config.SlowThreshold && l.Config.LogLevel >= logger.Warn:
		sql, rows := fc()
		l.log.Warnw("slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.Config.LogLevel >= logger.Info:
		sql, rows := fc()
		l.log.Debugw("query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
