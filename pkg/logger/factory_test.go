package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Run("creates JSON logger", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		require.NotNil(t, log)
		log.Info("hello")
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText))
		log.Info("hello")
		assert.Contains(t, buf.String(), "level=INFO")
	})

	t.Run("level by name", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithLevelName("warn"))
		log.Info("dropped")
		assert.Empty(t, buf.String())
		log.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("includes default attributes", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithAttr(slog.String("svc", "test")))
		log.Info("msg")
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "test", entry["svc"])
	})

	t.Run("extracts from context", func(t *testing.T) {
		buf := &bytes.Buffer{}
		type key struct{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextExtractors(nil, func(ctx context.Context) (slog.Attr, bool) {
				if v, ok := ctx.Value(key{}).(string); ok {
					return logger.TenantID(v), true
				}
				return slog.Attr{}, false
			}),
		)
		ctx := context.WithValue(context.Background(), key{}, "t-42")
		log.InfoContext(ctx, "context msg")
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "t-42", entry["tenant_id"])
	})

	t.Run("first extractor wins on duplicate keys", func(t *testing.T) {
		buf := &bytes.Buffer{}
		fixed := func(v string) logger.ContextExtractor {
			return func(context.Context) (slog.Attr, bool) { return logger.RequestID(v), true }
		}
		log := logger.New(logger.WithOutput(buf), logger.WithContextExtractors(fixed("a"), fixed("b")))
		log.InfoContext(context.Background(), "msg")
		assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"request_id"`)))
		assert.Contains(t, buf.String(), `"request_id":"a"`)
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Run("production emits JSON", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithEnvironment("prod", "quotad"), logger.WithOutput(buf))
		log.Info("msg")
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "quotad", entry["service"])
		assert.Equal(t, "production", entry["env"])
	})

	t.Run("development emits text at debug", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithEnvironment("", "quotad"), logger.WithOutput(buf))
		log.Debug("msg")
		out := buf.String()
		assert.Contains(t, out, "DEBUG")
		assert.Contains(t, out, "env=development")
	})
}

func TestSetAsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	logger.SetAsDefault(logger.New(logger.WithOutput(buf)))
	slog.Info("default")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "default", entry["msg"])
}

func TestInvalidOptionsPanic(t *testing.T) {
	assert.Panics(t, func() { logger.New(logger.WithFormat(logger.Format("xml"))) })
	assert.Panics(t, func() { logger.New(logger.WithLevelName("loud")) })
}
