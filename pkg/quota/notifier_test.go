package quota_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

func TestNotifierObserve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := quota.Daily.Start(testNow)

	setup := func() (*quota.Notifier, *eventRecorder, quota.CounterKey) {
		rec := &eventRecorder{}
		n := quota.NewNotifier(quota.NewMemoryStore(), rec, quota.WithNotifierClock(newTestClock(testNow)))
		key := quota.CounterKey{TenantID: uuid.New(), Resource: quota.AIGeneration, Period: quota.Daily}
		return n, rec, key
	}
	at := func(key quota.CounterKey, count int64) quota.Counter {
		return quota.Counter{Key: key, Count: count, PeriodStart: start}
	}

	t.Run("normal usage emits nothing", func(t *testing.T) {
		t.Parallel()
		n, rec, key := setup()
		ev, err := n.Observe(ctx, at(key, 7), 10)
		require.NoError(t, err)
		assert.Nil(t, ev)
		assert.Empty(t, rec.Events())
	})

	t.Run("unlimited emits nothing", func(t *testing.T) {
		t.Parallel()
		n, rec, key := setup()
		ev, err := n.Observe(ctx, at(key, 1_000), 0)
		require.NoError(t, err)
		assert.Nil(t, ev)
		assert.Empty(t, rec.Events())
	})

	t.Run("each tier fires once while climbing", func(t *testing.T) {
		t.Parallel()
		n, rec, key := setup()
		for count := int64(1); count <= 12; count++ {
			_, err := n.Observe(ctx, at(key, count), 10)
			require.NoError(t, err)
		}
		assert.Equal(t,
			[]quota.Status{quota.HighUsage, quota.NearlyFull, quota.LimitReached},
			rec.Tiers(quota.AIGeneration, quota.Daily))
	})

	t.Run("jump emits only the highest tier", func(t *testing.T) {
		t.Parallel()
		n, rec, key := setup()
		ev, err := n.Observe(ctx, at(key, 6), 10)
		require.NoError(t, err)
		assert.Nil(t, ev)

		ev, err = n.Observe(ctx, at(key, 10), 10)
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, quota.LimitReached, ev.Tier)
		assert.Equal(t, 100, ev.Percentage)
		assert.Equal(t, int64(10), ev.Count)
		assert.Equal(t, int64(10), ev.Limit)
		assert.Equal(t, key.TenantID, ev.TenantID)
		assert.Equal(t, testNow, ev.OccurredAt)

		assert.Equal(t, []quota.Status{quota.LimitReached}, rec.Tiers(quota.AIGeneration, quota.Daily))
	})

	t.Run("skipped tiers never fire later", func(t *testing.T) {
		t.Parallel()
		n, rec, key := setup()
		_, err := n.Observe(ctx, at(key, 95), 100)
		require.NoError(t, err)

		// limit raised by a plan change, usage now looks lower
		_, err = n.Observe(ctx, at(key, 96), 200)
		require.NoError(t, err)
		_, err = n.Observe(ctx, at(key, 160), 200)
		require.NoError(t, err)

		assert.Equal(t, []quota.Status{quota.NearlyFull}, rec.Tiers(quota.AIGeneration, quota.Daily))
	})

	t.Run("new cycle notifies again", func(t *testing.T) {
		t.Parallel()
		n, rec, key := setup()
		_, err := n.Observe(ctx, at(key, 8), 10)
		require.NoError(t, err)

		next := quota.Counter{Key: key, Count: 8, PeriodStart: start.Add(24 * time.Hour)}
		_, err = n.Observe(ctx, next, 10)
		require.NoError(t, err)

		assert.Equal(t, []quota.Status{quota.HighUsage, quota.HighUsage}, rec.Tiers(quota.AIGeneration, quota.Daily))
	})

	t.Run("concurrent crossings emit once", func(t *testing.T) {
		t.Parallel()
		n, rec, key := setup()

		var wg sync.WaitGroup
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := n.Observe(ctx, at(key, 10), 10)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, []quota.Status{quota.LimitReached}, rec.Tiers(quota.AIGeneration, quota.Daily))
	})

	t.Run("dispatch failure is not an error", func(t *testing.T) {
		t.Parallel()
		failing := quota.DispatcherFunc(func(context.Context, quota.Event) error { return quota.ErrDispatchBufferFull })
		n := quota.NewNotifier(quota.NewMemoryStore(), failing)
		key := quota.CounterKey{TenantID: uuid.New(), Resource: quota.Tracking, Period: quota.Monthly}

		ev, err := n.Observe(ctx, quota.Counter{Key: key, Count: 80, PeriodStart: start}, 100)
		require.NoError(t, err)
		require.NotNil(t, ev)

		// the tier is recorded even though delivery failed
		ev, err = n.Observe(ctx, quota.Counter{Key: key, Count: 81, PeriodStart: start}, 100)
		require.NoError(t, err)
		assert.Nil(t, ev)
	})
}
