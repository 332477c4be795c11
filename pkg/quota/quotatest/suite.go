// Package quotatest provides a conformance suite that every quota.Store
// implementation must pass.
package quotatest

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

// Factory returns a ready store. It may be called once per subtest.
type Factory func(t *testing.T) quota.Store

var (
	day1 = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
)

func newKey(period quota.Period) quota.CounterKey {
	return quota.CounterKey{TenantID: uuid.New(), Resource: quota.Tracking, Period: period}
}

// RunStoreSuite exercises the CounterStore and NotificationStore contracts.
// Every subtest uses fresh tenant ids, so shared databases need no cleanup.
func RunStoreSuite(t *testing.T, factory Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("get absent counter", func(t *testing.T) {
		store := factory(t)
		key := newKey(quota.Daily)

		c, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Zero(t, c.Count)
		assert.True(t, c.PeriodStart.IsZero())
	})

	t.Run("increment creates and accumulates", func(t *testing.T) {
		store := factory(t)
		key := newKey(quota.Daily)

		c, err := store.Increment(ctx, key, 1, day1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Count)
		assert.True(t, c.PeriodStart.Equal(day1))
		assert.Equal(t, key, c.Key)

		c, err = store.Increment(ctx, key, 4, day1)
		require.NoError(t, err)
		assert.Equal(t, int64(5), c.Count)

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got.Count)
		assert.True(t, got.PeriodStart.Equal(day1))
	})

	t.Run("increment rejects non-positive quantity", func(t *testing.T) {
		store := factory(t)
		_, err := store.Increment(ctx, newKey(quota.Daily), 0, day1)
		assert.ErrorIs(t, err, quota.ErrInvalidQuantity)
	})

	t.Run("increment rolls over a finished cycle", func(t *testing.T) {
		store := factory(t)
		key := newKey(quota.Daily)

		_, err := store.Increment(ctx, key, 7, day1)
		require.NoError(t, err)

		c, err := store.Increment(ctx, key, 2, day2)
		require.NoError(t, err)
		assert.Equal(t, int64(2), c.Count)
		assert.True(t, c.PeriodStart.Equal(day2))

		// a late writer still holding the old boundary lands in the current cycle
		c, err = store.Increment(ctx, key, 1, day1)
		require.NoError(t, err)
		assert.Equal(t, int64(3), c.Count)
		assert.True(t, c.PeriodStart.Equal(day2))
	})

	t.Run("reset is idempotent", func(t *testing.T) {
		store := factory(t)
		key := newKey(quota.Daily)

		_, err := store.Increment(ctx, key, 9, day1)
		require.NoError(t, err)

		changed, err := store.Reset(ctx, key, day2)
		require.NoError(t, err)
		assert.True(t, changed)

		_, err = store.Increment(ctx, key, 1, day2)
		require.NoError(t, err)

		changed, err = store.Reset(ctx, key, day2)
		require.NoError(t, err)
		assert.False(t, changed)

		c, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Count)
		assert.True(t, c.PeriodStart.Equal(day2))
	})

	t.Run("reset of absent counter is a no-op", func(t *testing.T) {
		store := factory(t)
		key := newKey(quota.Monthly)

		changed, err := store.Reset(ctx, key, day2)
		require.NoError(t, err)
		assert.False(t, changed)

		c, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, c.PeriodStart.IsZero())
	})

	t.Run("list stale filters by period and boundary", func(t *testing.T) {
		store := factory(t)
		staleDaily := newKey(quota.Daily)
		freshDaily := newKey(quota.Daily)
		staleMonthly := newKey(quota.Monthly)

		_, err := store.Increment(ctx, staleDaily, 1, day1)
		require.NoError(t, err)
		_, err = store.Increment(ctx, freshDaily, 1, day2)
		require.NoError(t, err)
		_, err = store.Increment(ctx, staleMonthly, 1, day1)
		require.NoError(t, err)

		keys, err := store.ListStale(ctx, quota.Daily, day2)
		require.NoError(t, err)
		assert.Contains(t, keys, staleDaily)
		assert.NotContains(t, keys, freshDaily)
		assert.NotContains(t, keys, staleMonthly)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		store := factory(t)
		key := newKey(quota.Monthly)
		const n = 50

		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Increment(ctx, key, 1, day1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		c, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(n), c.Count)
	})

	t.Run("claim records each tier once per cycle", func(t *testing.T) {
		store := factory(t)
		key := newKey(quota.Daily)

		claimed, err := store.Claim(ctx, key, day1, []quota.Status{quota.HighUsage}, day1)
		require.NoError(t, err)
		assert.Equal(t, []quota.Status{quota.HighUsage}, claimed)

		claimed, err = store.Claim(ctx, key, day1,
			[]quota.Status{quota.HighUsage, quota.NearlyFull, quota.LimitReached}, day1)
		require.NoError(t, err)
		assert.Equal(t, []quota.Status{quota.NearlyFull, quota.LimitReached}, claimed)

		claimed, err = store.Claim(ctx, key, day1, []quota.Status{quota.LimitReached}, day1)
		require.NoError(t, err)
		assert.Empty(t, claimed)

		// next cycle starts clean
		claimed, err = store.Claim(ctx, key, day2, []quota.Status{quota.HighUsage}, day2)
		require.NoError(t, err)
		assert.Equal(t, []quota.Status{quota.HighUsage}, claimed)

		sent, err := store.Sent(ctx, key, day1)
		require.NoError(t, err)
		require.Len(t, sent, 3)
		assert.Equal(t, quota.HighUsage, sent[0].Tier)
		assert.Equal(t, quota.LimitReached, sent[2].Tier)
	})

	t.Run("concurrent claims succeed exactly once", func(t *testing.T) {
		store := factory(t)
		key := newKey(quota.Daily)
		const n = 20

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := store.Claim(ctx, key, day1, []quota.Status{quota.NearlyFull}, day1)
				assert.NoError(t, err)
				mu.Lock()
				wins += len(claimed)
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("clear removes finished cycles of one period", func(t *testing.T) {
		store := factory(t)
		daily := newKey(quota.Daily)
		monthly := newKey(quota.Monthly)

		_, err := store.Claim(ctx, daily, day1, []quota.Status{quota.HighUsage, quota.NearlyFull}, day1)
		require.NoError(t, err)
		_, err = store.Claim(ctx, daily, day2, []quota.Status{quota.HighUsage}, day2)
		require.NoError(t, err)
		_, err = store.Claim(ctx, monthly, day1, []quota.Status{quota.HighUsage}, day1)
		require.NoError(t, err)

		removed, err := store.Clear(ctx, quota.Daily, day2)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, removed, 2)

		sent, err := store.Sent(ctx, daily, day1)
		require.NoError(t, err)
		assert.Empty(t, sent)

		sent, err = store.Sent(ctx, daily, day2)
		require.NoError(t, err)
		assert.Len(t, sent, 1)

		sent, err = store.Sent(ctx, monthly, day1)
		require.NoError(t, err)
		assert.Len(t, sent, 1)
	})
}
