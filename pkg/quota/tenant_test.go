package quota_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

func TestStaticTenants(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	dir := quota.NewStaticTenants(quota.Tenant{ID: id, PlanID: "free", BillingStatus: quota.BillingTrial})

	got, err := dir.ResolveTenant(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "free", got.PlanID)

	dir.Set(quota.Tenant{ID: id, PlanID: "pro", BillingStatus: quota.BillingActive})
	got, err = dir.ResolveTenant(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "pro", got.PlanID)

	_, err = dir.ResolveTenant(context.Background(), uuid.New())
	assert.ErrorIs(t, err, quota.ErrTenantNotFound)
}

func TestContextTenantResolver(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	ctx := quota.WithTenant(context.Background(), quota.Tenant{ID: id, PlanID: "free"})

	got, err := quota.ContextTenantResolver.ResolveTenant(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "free", got.PlanID)

	_, err = quota.ContextTenantResolver.ResolveTenant(ctx, uuid.New())
	assert.ErrorIs(t, err, quota.ErrTenantNotFound)

	_, err = quota.ContextTenantResolver.ResolveTenant(context.Background(), id)
	assert.ErrorIs(t, err, quota.ErrTenantNotInCtx)
}

func TestParseBillingStatus(t *testing.T) {
	t.Parallel()

	s, err := quota.ParseBillingStatus("")
	require.NoError(t, err)
	assert.Equal(t, quota.BillingActive, s)

	s, err = quota.ParseBillingStatus("inactive")
	require.NoError(t, err)
	assert.Equal(t, quota.BillingInactive, s)

	_, err = quota.ParseBillingStatus("suspended")
	assert.Error(t, err)
}

func TestCachedTenants(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	dir := quota.NewStaticTenants(quota.Tenant{ID: id, PlanID: "free", BillingStatus: quota.BillingActive})
	calls := 0
	counting := quota.TenantResolverFunc(func(ctx context.Context, tenantID uuid.UUID) (quota.Tenant, error) {
		calls++
		return dir.ResolveTenant(ctx, tenantID)
	})
	clock := newTestClock(time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))
	cached := quota.NewCachedTenants(counting, 16, time.Minute, clock)
	ctx := context.Background()

	t.Run("serves repeated lookups from cache", func(t *testing.T) {
		got, err := cached.ResolveTenant(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "free", got.PlanID)

		_, err = cached.ResolveTenant(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("sees plan change after expiry", func(t *testing.T) {
		dir.Set(quota.Tenant{ID: id, PlanID: "pro", BillingStatus: quota.BillingActive})
		got, err := cached.ResolveTenant(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "free", got.PlanID)

		clock.Set(clock.Now().Add(time.Minute))
		got, err = cached.ResolveTenant(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "pro", got.PlanID)
		assert.Equal(t, 2, calls)
	})

	t.Run("invalidate forces reload", func(t *testing.T) {
		cached.Invalidate(id)
		_, err := cached.ResolveTenant(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not cache misses", func(t *testing.T) {
		missing := uuid.New()
		_, err := cached.ResolveTenant(ctx, missing)
		assert.True(t, errors.Is(err, quota.ErrTenantNotFound))
		_, err = cached.ResolveTenant(ctx, missing)
		assert.ErrorIs(t, err, quota.ErrTenantNotFound)
		assert.Equal(t, 5, calls)
	})
}
