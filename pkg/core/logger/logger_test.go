package logger

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults without logger section", func(t *testing.T) {
		cfg, err := newConfig(viper.New())
		require.NoError(t, err)
		assert.Equal(t, zapcore.InfoLevel, cfg.Level)
		assert.Equal(t, zapcore.ErrorLevel, cfg.StacktraceLevel)
		assert.False(t, cfg.Development)
	})

	t.Run("parses level strings", func(t *testing.T) {
		v := viper.New()
		v.Set("logger.level", "debug")
		v.Set("logger.development", true)
		v.Set("logger.stacktraceLevel", "warn")

		cfg, err := newConfig(v)
		require.NoError(t, err)
		assert.Equal(t, zapcore.DebugLevel, cfg.Level)
		assert.Equal(t, zapcore.WarnLevel, cfg.StacktraceLevel)
		assert.True(t, cfg.Development)
	})

	t.Run("rejects bad level", func(t *testing.T) {
		v := viper.New()
		v.Set("logger.level", "loud")

		_, err := newConfig(v)
		assert.Error(t, err)
	})
}

func TestContextLogger(t *testing.T) {
	base := zap.NewNop().With(zap.String("component", "test"))

	ctx := WithLogger(context.Background(), base)
	assert.Same(t, base, FromContext(ctx))

	t.Run("falls back to global", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
		assert.NotNil(t, FromContext(nil)) //nolint:staticcheck // nil ctx fallback is part of the contract
	})
}

func TestNewLogger(t *testing.T) {
	logger, level, err := newLogger(Config{
		Level:           zapcore.DebugLevel,
		Development:     true,
		StacktraceLevel: zapcore.ErrorLevel,
	})
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.Equal(t, zapcore.DebugLevel, level.Level())
}
