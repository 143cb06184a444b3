package logging

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"
)

func TestNewRejectsBadConfig(t *testing.T) {
	conf := Defaults()
	conf.Level = "loud"
	_, err := New(conf)
	assert.Error(t, err)

	conf = Defaults()
	conf.Output = "kafka"
	_, err = New(conf)
	assert.Error(t, err)
}

func TestNewFileOutput(t *testing.T) {
	conf := Defaults()
	conf.Output = "file"
	conf.Path = filepath.Join(t.TempDir(), "nested", "bot.log")

	log, err := New(conf)
	require.NoError(t, err)
	log.Info("hello")
	assert.NoError(t, log.Sync())
	assert.FileExists(t, conf.Path)
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(logger.Config{
		LogLevel:                  logger.Warn,
		SlowThreshold:             time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}, zap.New(core))

	sql := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(context.Background(), time.Now(), sql, logger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len(), "record not found is ignored")

	gl.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "query failed", logs.All()[0].Message)

	gl.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "slow query", logs.All()[1].Message)

	silent := gl.LogMode(logger.Silent)
	silent.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	assert.Equal(t, 2, logs.Len())
}
