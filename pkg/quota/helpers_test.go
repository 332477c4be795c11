package quota_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock { return &testClock{now: now} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// eventRecorder is a synchronous Dispatcher that keeps every event.
type eventRecorder struct {
	mu     sync.Mutex
	events []quota.Event
}

func (r *eventRecorder) Dispatch(_ context.Context, e quota.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) Events() []quota.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]quota.Event(nil), r.events...)
}

func (r *eventRecorder) Tiers(res quota.Resource, period quota.Period) []quota.Status {
	var out []quota.Status
	for _, e := range r.Events() {
		if e.Resource == res && e.Period == period {
			out = append(out, e.Tier)
		}
	}
	return out
}

var errBackend = errors.New("backend down")

// flakyStore wraps a MemoryStore and fails selected operations.
type flakyStore struct {
	*quota.MemoryStore
	failGet       atomic.Bool
	failIncrement atomic.Int32 // number of upcoming increments to fail, -1 for all
	failMonthly   atomic.Bool  // fail every monthly increment
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: quota.NewMemoryStore()}
}

func (s *flakyStore) Get(ctx context.Context, key quota.CounterKey) (quota.Counter, error) {
	if s.failGet.Load() {
		return quota.Counter{}, errBackend
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Increment(ctx context.Context, key quota.CounterKey, by int64, start time.Time) (quota.Counter, error) {
	if key.Period == quota.Monthly && s.failMonthly.Load() {
		return quota.Counter{}, errBackend
	}
	for {
		n := s.failIncrement.Load()
		if n == 0 {
			break
		}
		if n < 0 {
			return quota.Counter{}, errBackend
		}
		if s.failIncrement.CompareAndSwap(n, n-1) {
			return quota.Counter{}, errBackend
		}
	}
	return s.MemoryStore.Increment(ctx, key, by, start)
}

var (
	// Friday 14 March 2025, mid-day
	testNow = time.Date(2025, time.March, 14, 13, 30, 0, 0, time.UTC)

	freePlan = quota.Plan{
		ID:   "free",
		Name: "Free",
		Limits: quota.PlanLimits{
			TrackingDaily:   10,
			TrackingMonthly: 100,
			AIDaily:         5,
			AIMonthly:       50,
		},
	}
	unlimitedPlan = quota.Plan{ID: "unlimited", Name: "Unlimited"}
)

type fixture struct {
	service  *quota.Service
	store    *flakyStore
	clock    *testClock
	events   *eventRecorder
	tenants  *quota.StaticTenants
	tenantID uuid.UUID
}

func newFixture(t *testing.T, plan quota.Plan, opts ...quota.Option) *fixture {
	t.Helper()

	plans := []quota.Plan{plan}
	for _, p := range []quota.Plan{freePlan, unlimitedPlan} {
		if p.ID != plan.ID {
			plans = append(plans, p)
		}
	}
	catalog, err := quota.NewCatalog("test", plans...)
	require.NoError(t, err)

	f := &fixture{
		store:    newFlakyStore(),
		clock:    newTestClock(testNow),
		events:   &eventRecorder{},
		tenantID: uuid.New(),
	}
	f.tenants = quota.NewStaticTenants(quota.Tenant{
		ID:            f.tenantID,
		PlanID:        plan.ID,
		BillingStatus: quota.BillingActive,
	})

	notifier := quota.NewNotifier(f.store, f.events, quota.WithNotifierClock(f.clock))
	base := []quota.Option{
		quota.WithClock(f.clock),
		quota.WithNotifier(notifier),
		quota.WithIncrementRetry(2, quota.ConstantBackoff(time.Millisecond)),
	}
	f.service = quota.NewService(catalog, f.tenants, f.store, append(base, opts...)...)
	return f
}

// seed sets a counter to count within the current cycle.
func (f *fixture) seed(t *testing.T, res quota.Resource, period quota.Period, count int64) {
	t.Helper()
	key := quota.CounterKey{TenantID: f.tenantID, Resource: res, Period: period}
	_, err := f.store.MemoryStore.Increment(context.Background(), key, count, period.Start(f.clock.Now()))
	require.NoError(t, err)
}

func (f *fixture) count(t *testing.T, res quota.Resource, period quota.Period) int64 {
	t.Helper()
	c, err := f.store.MemoryStore.Get(context.Background(), quota.CounterKey{TenantID: f.tenantID, Resource: res, Period: period})
	require.NoError(t, err)
	return c.Count
}
