package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

const traceSQL = "SELECT * FROM movement_requests WHERE tenant_id = ?"

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func TestNewGormLogger(t *testing.T) {
	gormLog, _ := newObservedGormLogger(gormlogger.Info)

	assert.NotNil(t, gormLog)
	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	assert.True(t, gormLog.ignoreRecordNotFoundError)
}

func TestGormLoggerOptions(t *testing.T) {
	gormLog, _ := newObservedGormLogger(gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)

	assert.Equal(t, 500*time.Millisecond, gormLog.slowThreshold)
	assert.False(t, gormLog.ignoreRecordNotFoundError)
}

func TestGormLoggerLogMode(t *testing.T) {
	gormLog, _ := newObservedGormLogger(gormlogger.Info)
	clone := gormLog.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel, "original stays unchanged")
	cloneLog, ok := clone.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, cloneLog.logLevel)
}

func TestGormLoggerLevelMethods(t *testing.T) {
	t.Run("info is logged at info level", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Info)
		gormLog.Info(context.Background(), "migrating %s", "movement_items")

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "migrating movement_items")
	})

	t.Run("info is suppressed at silent level", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Silent)
		gormLog.Info(context.Background(), "suppressed")
		assert.Empty(t, recorded.All())
	})

	t.Run("warn", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Warn)
		gormLog.Warn(context.Background(), "connection pool at %d", 42)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	})

	t.Run("error", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Error)
		gormLog.Error(context.Background(), "constraint violated")

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
	})
}

func TestGormLoggerTrace(t *testing.T) {
	fc := func() (string, int64) { return traceSQL, 5 }

	t.Run("query error", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Error)
		gormLog.Trace(context.Background(), time.Now(), fc, errors.New("deadlock detected"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "SQL Error")
	})

	t.Run("record not found is ignored", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Error)
		gormLog.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)
		assert.Empty(t, recorded.All())
	})

	t.Run("record not found is reported when configured", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Error, WithIgnoreRecordNotFoundError(false))
		gormLog.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)
		assert.Len(t, recorded.All(), 1)
	})

	t.Run("slow query", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Nanosecond))
		gormLog.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "SLOW SQL")
	})

	t.Run("normal query logs at debug", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Info)
		gormLog.Trace(context.Background(), time.Now(), fc, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "SQL Query")
		assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Silent)
		gormLog.Trace(context.Background(), time.Now(), fc, nil)
		assert.Empty(t, recorded.All())
	})

	t.Run("request id from context", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Info)
		ctx := context.WithValue(context.Background(), RequestIDKey, "req-movement-7")
		gormLog.Trace(ctx, time.Now(), fc, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		found := false
		for _, field := range logs[0].Context {
			if field.Key == "request_id" {
				found = true
				assert.Equal(t, "req-movement-7", field.String)
			}
		}
		assert.True(t, found, "request_id should be in log fields")
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
