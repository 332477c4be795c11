package quota_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

func TestResetterDailyBoundary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, freePlan)
	f.seed(t, quota.Tracking, quota.Daily, 7)
	f.seed(t, quota.Tracking, quota.Monthly, 80)
	require.NoError(t, f.service.RecordConsumption(ctx, f.tenantID, quota.Tracking))
	require.Len(t, f.events.Events(), 2)

	dailyKey := quota.CounterKey{TenantID: f.tenantID, Resource: quota.Tracking, Period: quota.Daily}
	monthlyKey := quota.CounterKey{TenantID: f.tenantID, Resource: quota.Tracking, Period: quota.Monthly}
	oldDay := quota.Daily.Start(testNow)
	month := quota.Monthly.Start(testNow)

	f.clock.Set(time.Date(2025, 3, 15, 0, 0, 5, 0, time.UTC))
	r := quota.NewResetter(f.store, f.store, quota.WithResetterClock(f.clock))
	require.NoError(t, r.RunOnce(ctx))

	assert.Zero(t, f.count(t, quota.Tracking, quota.Daily))
	assert.Equal(t, int64(81), f.count(t, quota.Tracking, quota.Monthly))

	sent, err := f.store.Sent(ctx, dailyKey, oldDay)
	require.NoError(t, err)
	assert.Empty(t, sent)

	sent, err = f.store.Sent(ctx, monthlyKey, month)
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	// resets are silent
	assert.Len(t, f.events.Events(), 2)
}

func TestResetterIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, freePlan)
	f.seed(t, quota.AIGeneration, quota.Daily, 3)
	f.clock.Set(testNow.Add(24 * time.Hour))

	r := quota.NewResetter(f.store, f.store, quota.WithResetterClock(f.clock))
	boundary := quota.Daily.Start(f.clock.Now())

	n, err := r.ResetPeriod(ctx, quota.Daily, boundary)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, f.service.RecordConsumption(ctx, f.tenantID, quota.AIGeneration))

	// a restarted scheduler runs the same boundary again
	n, err = r.ResetPeriod(ctx, quota.Daily, boundary)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(1), f.count(t, quota.AIGeneration, quota.Daily))
}

func TestResetterMonthlyBoundary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := quota.NewMemoryStore()
	clock := newTestClock(time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC))
	key := quota.CounterKey{TenantID: uuid.New(), Resource: quota.Tracking, Period: quota.Monthly}
	_, err := store.Increment(ctx, key, 40, quota.Monthly.Start(clock.Now()))
	require.NoError(t, err)

	r := quota.NewResetter(store, store, quota.WithResetterClock(clock))
	require.NoError(t, r.RunOnce(ctx))
	c, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(40), c.Count, "no reset before the boundary")

	clock.Set(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, r.RunOnce(ctx))
	c, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, c.Count)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), c.PeriodStart)
}

func TestResetterStart(t *testing.T) {
	t.Parallel()

	store := quota.NewMemoryStore()
	key := quota.CounterKey{TenantID: uuid.New(), Resource: quota.Tracking, Period: quota.Daily}
	_, err := store.Increment(context.Background(), key, 5, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := quota.NewResetter(store, store, quota.WithCheckInterval(10*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx)() }()

	assert.Eventually(t, func() bool {
		c, err := store.Get(context.Background(), key)
		return err == nil && c.Count == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("resetter did not stop")
	}
}
