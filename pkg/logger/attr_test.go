package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

type tier string

func (t tier) String() string { return string(t) }

func TestGroup(t *testing.T) {
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	t.Parallel()

	type resource string

	assert.Equal(t, "tenant_id", logger.TenantID("t1").Key)
	assert.True(t, logger.TenantID(nil).Equal(slog.Attr{}))
	assert.Equal(t, "tracking", logger.Resource(resource("tracking")).Value.String())
	assert.Equal(t, "daily", logger.Period("daily").Value.String())
	assert.Equal(t, "nearly_full", logger.Tier(tier("nearly_full")).Value.String())
	assert.Equal(t, "free", logger.PlanID("free").Value.String())
	assert.Equal(t, int64(3), logger.RetryCount(3).Value.Int64())

	usage := logger.Usage(9, 10)
	require.Equal(t, slog.KindGroup, usage.Value.Kind())
	assert.Equal(t, int64(9), usage.Value.Group()[0].Value.Int64())
	assert.Equal(t, int64(10), usage.Value.Group()[1].Value.Int64())

	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())
}
