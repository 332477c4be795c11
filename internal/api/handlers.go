package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/handler"
	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// Quota is the engine surface the API serves. *quota.Service implements it.
type Quota interface {
	Authorize(ctx context.Context, tenantID uuid.UUID, res quota.Resource) (quota.Decision, error)
	RecordConsumptionIn(ctx context.Context, tenantID uuid.UUID, res quota.Resource, n int64, periods ...quota.Period) error
	GetUsageSnapshot(ctx context.Context, tenantID uuid.UUID) (quota.Snapshot, error)
}

// Catalog lists the plans on offer. *quota.Catalog implements it.
type Catalog interface {
	Version() string
	Plans() []quota.Plan
}

type authorizeRequest struct {
	tenantScope
	Resource string `json:"resource"`
}

type consumptionRequest struct {
	tenantScope
	Resource string `json:"resource"`
	Quantity *int64 `json:"quantity,omitempty"`
	// Periods limits the write to the listed periods, used to retry the
	// pending half of a partial write. Empty means every period.
	Periods []string `json:"periods,omitempty"`
}

type usageRequest struct {
	tenantScope
}

type handlers struct {
	quota   Quota
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

func (h *handlers) authorize(ctx handler.Context, req authorizeRequest) handler.Response {
	res, err := quota.ParseResource(req.Resource)
	if err != nil {
		return errorResponse(err)
	}

	d, err := h.quota.Authorize(ctx, req.TenantID, res)
	if err != nil && d.Reason == quota.ReasonNone {
		return errorResponse(err)
	}

	body := handler.JSONResponse{Data: d}
	if !d.Allowed {
		body.Error = &handler.ErrorDetail{Code: string(d.Reason)}
	}
	opts := []handler.JSONOption{handler.WithJSONStatus(decisionStatus(d))}
	if d.Reason == quota.ReasonLimitReached && !d.ResetAt.IsZero() {
		wait := max(int(d.ResetAt.Sub(h.now()).Seconds()), 0)
		opts = append(opts, handler.WithJSONHeader("Retry-After", strconv.Itoa(wait)))
	}
	return handler.JSON(body, opts...)
}

func (h *handlers) consumption(ctx handler.Context, req consumptionRequest) handler.Response {
	res, err := quota.ParseResource(req.Resource)
	if err != nil {
		return errorResponse(err)
	}
	n := int64(1)
	if req.Quantity != nil {
		n = *req.Quantity
	}
	periods := make([]quota.Period, 0, len(req.Periods))
	for _, s := range req.Periods {
		p, err := quota.ParsePeriod(s)
		if err != nil {
			return errorResponse(err)
		}
		periods = append(periods, p)
	}

	if err := h.quota.RecordConsumptionIn(ctx, req.TenantID, res, n, periods...); err != nil {
		h.logger.LogAttrs(ctx, slog.LevelError, "failed to record consumption",
			logger.TenantID(req.TenantID), logger.Resource(res), logger.Error(err))
		return errorResponse(err)
	}
	return handler.JSON(map[string]any{
		"tenant_id": req.TenantID,
		"resource":  res,
		"quantity":  n,
	}, handler.WithJSONStatus(http.StatusAccepted))
}

func (h *handlers) usage(ctx handler.Context, req usageRequest) handler.Response {
	snap, err := h.quota.GetUsageSnapshot(ctx, req.TenantID)
	if err != nil {
		return errorResponse(err)
	}
	return handler.JSON(snap)
}

func (h *handlers) plans(_ handler.Context, _ struct{}) handler.Response {
	return handler.JSON(h.catalog.Plans(), handler.WithJSONMeta(map[string]any{"version": h.catalog.Version()}))
}
