package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/pg"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// TenantDirectory reads which plan a tenant is on from the tenant_plans
// table, which the billing subsystem keeps up to date.
type TenantDirectory struct {
	db DB
}

var _ quota.TenantResolver = (*TenantDirectory)(nil)

// NewTenantDirectory creates a resolver over the tenant_plans table.
func NewTenantDirectory(db DB) *TenantDirectory {
	return &TenantDirectory{db: db}
}

// ResolveTenant returns ErrTenantNotFound for tenants without a row.
func (d *TenantDirectory) ResolveTenant(ctx context.Context, tenantID uuid.UUID) (quota.Tenant, error) {
	var planID, status string
	err := d.db.QueryRow(ctx,
		`SELECT plan_id, billing_status FROM tenant_plans WHERE tenant_id = $1`, tenantID,
	).Scan(&planID, &status)
	if pg.IsNotFoundError(err) {
		return quota.Tenant{}, fmt.Errorf("%w: %s", quota.ErrTenantNotFound, tenantID)
	}
	if err != nil {
		return quota.Tenant{}, unavailable(err)
	}
	billing, err := quota.ParseBillingStatus(status)
	if err != nil {
		return quota.Tenant{}, err
	}
	return quota.Tenant{ID: tenantID, PlanID: planID, BillingStatus: billing}, nil
}

// Upsert stores the tenant's plan and billing status.
func (d *TenantDirectory) Upsert(ctx context.Context, t quota.Tenant) error {
	if t.BillingStatus == "" {
		t.BillingStatus = quota.BillingActive
	}
	_, err := d.db.Exec(ctx,
		`INSERT INTO tenant_plans (tenant_id, plan_id, billing_status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id) DO UPDATE SET
		     plan_id = EXCLUDED.plan_id,
		     billing_status = EXCLUDED.billing_status,
		     updated_at = now()`,
		t.ID, t.PlanID, string(t.BillingStatus),
	)
	if err != nil {
		return unavailable(err)
	}
	return nil
}
