package quota

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/cache"
)

// CachedTenants memoizes a TenantResolver so the authorization hot path
// does not hit the tenant directory on every call. Lookup failures are not
// cached.
type CachedTenants struct {
	next  TenantResolver
	cache *cache.LRU[uuid.UUID, Tenant]
}

// NewCachedTenants wraps next with an LRU of the given size whose entries
// live for ttl. Plan changes become visible once the entry expires or is
// invalidated.
func NewCachedTenants(next TenantResolver, size int, ttl time.Duration, clock Clock) *CachedTenants {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CachedTenants{
		next:  next,
		cache: cache.New[uuid.UUID, Tenant](size, ttl, cache.WithNow(clock.Now)),
	}
}

// ResolveTenant serves from the cache and falls through to the wrapped
// resolver on a miss or an expired entry.
func (c *CachedTenants) ResolveTenant(ctx context.Context, tenantID uuid.UUID) (Tenant, error) {
	if t, ok := c.cache.Get(tenantID); ok {
		return t, nil
	}
	t, err := c.next.ResolveTenant(ctx, tenantID)
	if err != nil {
		return Tenant{}, err
	}
	c.cache.Put(tenantID, t)
	return t, nil
}

// Invalidate forgets the cached entry for tenantID.
func (c *CachedTenants) Invalidate(tenantID uuid.UUID) {
	c.cache.Remove(tenantID)
}
