package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// tenantScope is embedded by requests addressed to /tenants/{tenantID}.
type tenantScope struct {
	TenantID uuid.UUID `path:"tenantID" json:"-"`
}

func (t tenantScope) tenant() uuid.UUID { return t.TenantID }

type tenantTarget interface {
	tenant() uuid.UUID
}

// requireTenant rejects the nil UUID, which the path binder accepts.
func requireTenant(_ *http.Request, v any) error {
	t, ok := v.(tenantTarget)
	if !ok {
		return nil
	}
	if t.tenant() == uuid.Nil {
		return fmt.Errorf("%w: %q", quota.ErrInvalidTenantID, uuid.Nil)
	}
	return nil
}

func parseTenantID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q", quota.ErrInvalidTenantID, s)
	}
	return id, nil
}
