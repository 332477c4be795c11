// Package binder fills typed request structs from HTTP requests.
//
// Each binder has the signature func(r *http.Request, v any) error and
// handles one source, so several can be chained by handler.Wrap:
//
//	type consumeRequest struct {
//		TenantID uuid.UUID `path:"tenantID" json:"-"`
//		Resource string    `json:"resource"`
//		Quantity *int64    `json:"quantity,omitempty"`
//	}
//
//	r.Post("/tenants/{tenantID}/consumption", handler.Wrap(consume,
//		handler.WithBinders[handler.Context, consumeRequest](
//			binder.Path(chi.URLParam),
//			binder.BindJSON(),
//		),
//	))
//
// BindJSON is strict: the media type must be application/json, unknown
// fields and trailing data are rejected and the body size is capped
// (DefaultMaxBodySize unless WithMaxBodySize says otherwise).
//
// Path binds only fields carrying a `path:"name"` tag. Besides the basic
// kinds it accepts any encoding.TextUnmarshaler, so uuid.UUID fields work
// without glue code.
//
// Every error wraps one of the package sentinels (ErrMissingContentType,
// ErrUnsupportedMediaType, ErrFailedToParseJSON, ErrBodyTooLarge,
// ErrFailedToParsePath) and, where one exists, the underlying cause, so
// callers can map failures with errors.Is.
package binder
