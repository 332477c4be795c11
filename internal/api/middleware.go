package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

const (
	HeaderPlanID        = "X-Plan-ID"
	HeaderBillingStatus = "X-Billing-Status"
)

// headerTenant places the tenant described by the gateway headers into the
// request context, for use with quota.ContextTenantResolver. Requests without
// a plan header pass through untouched and resolve as unknown tenants.
func headerTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		planID := r.Header.Get(HeaderPlanID)
		if planID == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := parseTenantID(chi.URLParam(r, "tenantID"))
		if err != nil {
			_ = errorResponse(err).Render(w, r)
			return
		}
		status, err := quota.ParseBillingStatus(r.Header.Get(HeaderBillingStatus))
		if err != nil {
			_ = apiError(http.StatusBadRequest, "invalid_billing_status", err.Error()).Render(w, r)
			return
		}

		ctx := quota.WithTenant(r.Context(), quota.Tenant{ID: id, PlanID: planID, BillingStatus: status})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs one line per request.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			log.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				logger.Duration(time.Since(start)),
			)
		})
	}
}

// RequestIDExtractor adds the chi request id to log records.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return logger.RequestID(id), true
}
