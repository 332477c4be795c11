package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/quotakit/pkg/binder"
	"github.com/dmitrymomot/quotakit/pkg/handler"
	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// route wraps a typed endpoint with the API's binders and error rendering.
func route[R any](log *slog.Logger, h handler.HandlerFunc[handler.Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](renderError(log)),
	)
}

func renderError(log *slog.Logger) handler.ErrorHandler[handler.Context] {
	return func(ctx handler.Context, err error) {
		if !handler.IsRenderError(err) {
			err = errorResponse(err).Render(ctx.ResponseWriter(), ctx.Request())
			if err == nil {
				return
			}
		}
		log.LogAttrs(ctx, slog.LevelWarn, "failed to write response",
			logger.Component("api"), logger.Error(err))
	}
}

func apiError(status int, code, message string, opts ...handler.JSONOption) handler.Response {
	return handler.JSONError(handler.NewHTTPError(status, code, message), opts...)
}

// errorResponse maps engine and binding errors to HTTP responses.
func errorResponse(err error) handler.Response {
	var partial *quota.PartialWriteError
	switch {
	case errors.Is(err, binder.ErrFailedToParsePath):
		return apiError(http.StatusBadRequest, code(quota.ErrInvalidTenantID), err.Error())
	case errors.Is(err, binder.ErrMissingContentType),
		errors.Is(err, binder.ErrUnsupportedMediaType),
		errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrBodyTooLarge):
		return apiError(http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, quota.ErrInvalidTenantID):
		return apiError(http.StatusBadRequest, code(quota.ErrInvalidTenantID), err.Error())
	case errors.Is(err, quota.ErrInvalidResource):
		return apiError(http.StatusUnprocessableEntity, code(quota.ErrInvalidResource), err.Error())
	case errors.Is(err, quota.ErrInvalidQuantity):
		return apiError(http.StatusUnprocessableEntity, code(quota.ErrInvalidQuantity), err.Error())
	case errors.Is(err, quota.ErrInvalidPeriod):
		return apiError(http.StatusUnprocessableEntity, code(quota.ErrInvalidPeriod), err.Error())
	case errors.Is(err, quota.ErrTenantNotFound):
		return apiError(http.StatusNotFound, code(quota.ErrTenantNotFound), "tenant not found")
	case errors.Is(err, quota.ErrPlanNotFound):
		return apiError(http.StatusUnprocessableEntity, code(quota.ErrPlanNotFound), "tenant plan is not in the catalog")
	case errors.As(err, &partial):
		// Clients retry with periods set to pending; written periods must not be resent.
		return apiError(http.StatusServiceUnavailable, code(quota.ErrStoreUnavailable), "usage store unavailable",
			handler.WithJSONMeta(map[string]any{"written": partial.Written, "pending": partial.Failed}))
	case errors.Is(err, quota.ErrStoreUnavailable):
		return apiError(http.StatusServiceUnavailable, code(quota.ErrStoreUnavailable), "usage store unavailable")
	}
	return apiError(http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
}

// decisionStatus is the HTTP status for a gate decision.
func decisionStatus(d quota.Decision) int {
	switch d.Reason {
	case quota.ReasonNone:
		return http.StatusOK
	case quota.ReasonLimitReached:
		return http.StatusTooManyRequests
	case quota.ReasonBillingInactive:
		return http.StatusForbidden
	case quota.ReasonPlanNotFound:
		return http.StatusUnprocessableEntity
	}
	return http.StatusServiceUnavailable
}

func code(sentinel error) string {
	return strings.TrimPrefix(sentinel.Error(), "quota.errors.")
}
