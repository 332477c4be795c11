package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls one attribute out of a record's context, such as
// the request id or the tenant a request acts for.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// contextHandler appends extracted attributes to every record. An
// attribute is added at most once per key; the first extractor wins.
type contextHandler struct {
	slog.Handler
	extractors []ContextExtractor
}

func withContext(next slog.Handler, extractors []ContextExtractor) slog.Handler {
	if len(extractors) == 0 {
		return next
	}
	return &contextHandler{Handler: next, extractors: extractors}
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	seen := make(map[string]struct{}, len(h.extractors))
	for _, ex := range h.extractors {
		attr, ok := ex(ctx)
		if !ok || attr.Equal(slog.Attr{}) {
			continue
		}
		if _, dup := seen[attr.Key]; dup {
			continue
		}
		seen[attr.Key] = struct{}{}
		rec.AddAttrs(attr)
	}
	return h.Handler.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), extractors: h.extractors}
}
