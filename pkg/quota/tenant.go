package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// BillingStatus is the subscription state reported by the billing subsystem.
type BillingStatus string

const (
	BillingTrial    BillingStatus = "trial"
	BillingActive   BillingStatus = "active"
	BillingInactive BillingStatus = "inactive"
)

// Valid reports whether s is a known billing status.
func (s BillingStatus) Valid() bool {
	return s == BillingTrial || s == BillingActive || s == BillingInactive
}

// ParseBillingStatus converts a string into a BillingStatus.
// An empty string is treated as active.
func ParseBillingStatus(s string) (BillingStatus, error) {
	if s == "" {
		return BillingActive, nil
	}
	b := BillingStatus(s)
	if !b.Valid() {
		return "", fmt.Errorf("quota: unknown billing status %q", s)
	}
	return b, nil
}

// Tenant is the billing subject as seen by the engine.
type Tenant struct {
	ID            uuid.UUID     `json:"id"`
	PlanID        string        `json:"plan_id"`
	BillingStatus BillingStatus `json:"billing_status"`
}

// TenantResolver looks up which plan a tenant is on. Unknown tenants yield an
// error wrapping ErrTenantNotFound.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, tenantID uuid.UUID) (Tenant, error)
}

// TenantResolverFunc adapts a function to the TenantResolver interface.
type TenantResolverFunc func(ctx context.Context, tenantID uuid.UUID) (Tenant, error)

// ResolveTenant calls f.
func (f TenantResolverFunc) ResolveTenant(ctx context.Context, tenantID uuid.UUID) (Tenant, error) {
	return f(ctx, tenantID)
}

// StaticTenants is an in-memory tenant directory.
type StaticTenants struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]Tenant
}

// NewStaticTenants creates a directory holding the given tenants.
func NewStaticTenants(tenants ...Tenant) *StaticTenants {
	s := &StaticTenants{tenants: make(map[uuid.UUID]Tenant, len(tenants))}
	for _, t := range tenants {
		s.tenants[t.ID] = t
	}
	return s
}

// Set adds or replaces a tenant. Plan changes take effect on the next check.
func (s *StaticTenants) Set(t Tenant) {
	s.mu.Lock()
	s.tenants[t.ID] = t
	s.mu.Unlock()
}

// ResolveTenant returns the tenant registered with Set, or
// ErrTenantNotFound.
func (s *StaticTenants) ResolveTenant(_ context.Context, tenantID uuid.UUID) (Tenant, error) {
	s.mu.RLock()
	t, ok := s.tenants[tenantID]
	s.mu.RUnlock()
	if !ok {
		return Tenant{}, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	return t, nil
}

type tenantCtxKey struct{}

// WithTenant stores the tenant in the context for downstream access.
func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, t)
}

// TenantFromContext retrieves the tenant from the context, if present.
func TenantFromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantCtxKey{}).(Tenant)
	return t, ok
}

// ContextTenantResolver resolves the tenant placed in the context by an
// upstream middleware. The tenant id in the context must match the requested one.
var ContextTenantResolver = TenantResolverFunc(func(ctx context.Context, tenantID uuid.UUID) (Tenant, error) {
	t, ok := TenantFromContext(ctx)
	if !ok {
		return Tenant{}, errors.Join(ErrTenantNotFound, ErrTenantNotInCtx)
	}
	if t.ID != tenantID {
		return Tenant{}, fmt.Errorf("%w: context holds %s, requested %s", ErrTenantNotFound, t.ID, tenantID)
	}
	return t, nil
})
