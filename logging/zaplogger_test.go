package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, obs := observer.New(level)
	return NewZapLogger(zap.New(core)), obs
}

func TestConstructors(t *testing.T) {
	assert.IsType(t, &ZapLogger{}, NewDevLogger())
	assert.IsType(t, &ZapLogger{}, NewProdLogger())

	nop := NewNopLogger()
	require.NotNil(t, nop)
	assert.NotPanics(t, func() {
		nop.Named("resolver").With("driver", "pg").Errorw("discarded", "files", 0)
	})
}

func TestZapLoggerLevels(t *testing.T) {
	tests := []struct {
		level zapcore.Level
		plain func(Logger, ...interface{})
		kv    func(Logger, string, ...interface{})
		fmt   func(Logger, string, ...interface{})
	}{
		{zap.DebugLevel, Logger.Debug, Logger.Debugw, Logger.Debugf},
		{zap.InfoLevel, Logger.Info, Logger.Infow, Logger.Infof},
		{zap.WarnLevel, Logger.Warn, Logger.Warnw, Logger.Warnf},
		{zap.ErrorLevel, Logger.Error, Logger.Errorw, Logger.Errorf},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			logger, obs := observed(tt.level)

			tt.plain(logger, "library resolved")
			tt.kv(logger, "library downloaded", "path", "/drivers/pg.jar")
			tt.fmt(logger, "%d files on class path", 3)

			entries := obs.All()
			require.Len(t, entries, 3)
			for _, e := range entries {
				assert.Equal(t, tt.level, e.Level)
			}
			assert.Equal(t, "library resolved", entries[0].Message)
			assert.Contains(t, entries[1].Context, zap.String("path", "/drivers/pg.jar"))
			assert.Equal(t, "3 files on class path", entries[2].Message)
		})
	}
}

func TestZapLoggerFiltersBelowLevel(t *testing.T) {
	logger, obs := observed(zap.WarnLevel)
	logger.Debug("skipped")
	logger.Infow("skipped", "k", "v")
	logger.Warn("kept")
	require.Equal(t, 1, obs.Len())
	assert.Equal(t, "kept", obs.All()[0].Message)
}

func TestZapLoggerNamedAndWith(t *testing.T) {
	logger, obs := observed(zap.InfoLevel)

	scoped := logger.Named("loader").With("driver", "postgresql:pg")
	require.IsType(t, &ZapLogger{}, scoped)
	scoped.Info("isolated loader built")

	require.Equal(t, 1, obs.Len())
	e := obs.All()[0]
	assert.Equal(t, "loader", e.LoggerName)
	assert.Contains(t, e.Context, zap.String("driver", "postgresql:pg"))

	logger.Info("unscoped")
	assert.Empty(t, obs.All()[1].Context, "children never leak fields to the parent")
}
