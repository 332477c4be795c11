// Package handler turns typed request handlers into net/http handlers.
//
// A handler is a HandlerFunc[C, R]: it receives a request context C and a
// request struct R already filled by binders, and returns a Response. Wrap
// adapts it to http.HandlerFunc, runs the binders in order, applies
// decorators and routes binding or rendering failures to an ErrorHandler.
//
//	type usageRequest struct {
//		TenantID uuid.UUID `path:"tenantID"`
//	}
//
//	usage := func(ctx handler.Context, req usageRequest) handler.Response {
//		snap, err := svc.GetUsageSnapshot(ctx, req.TenantID)
//		if err != nil {
//			return handler.JSONError(handler.NewHTTPError(http.StatusServiceUnavailable, "store_unavailable", ""))
//		}
//		return handler.JSON(snap)
//	}
//
//	r.Get("/v1/tenants/{tenantID}/usage", handler.Wrap(usage,
//		handler.WithBinders[handler.Context, usageRequest](binder.Path(chi.URLParam)),
//	))
//
// # Responses
//
// JSON and JSONError render the envelope {"data", "meta", "error"} shared by
// every endpoint. Options set the status (WithJSONStatus), metadata
// (WithJSONMeta) and extra headers (WithJSONHeader):
//
//	return handler.JSON(decision,
//		handler.WithJSONStatus(http.StatusTooManyRequests),
//		handler.WithJSONHeader("Retry-After", "3600"),
//	)
//
// # Errors
//
// The default error handler renders HTTPError values with their status and
// key and everything else as 500 internal_error, so internal messages never
// leak. Services with their own error vocabulary install WithErrorHandler.
package handler
