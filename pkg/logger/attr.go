package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// TenantID records the tenant identifier under the key "tenant_id".
// If id is nil, it returns an empty Attr.
func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

// PlanID records the plan identifier under the key "plan_id".
func PlanID(id string) slog.Attr {
	return slog.String("plan_id", id)
}

// Resource records the metered resource under the key "resource".
func Resource[T ~string](res T) slog.Attr {
	return slog.String("resource", string(res))
}

// Period records the counter period under the key "period".
func Period[T ~string](p T) slog.Attr {
	return slog.String("period", string(p))
}

// Tier records the usage tier under the key "tier".
func Tier(tier fmtStringer) slog.Attr {
	return slog.String("tier", tier.String())
}

type fmtStringer interface{ String() string }

// Usage records a count against its limit.
func Usage(count, limit int64) slog.Attr {
	return Group("usage", slog.Int64("count", count), slog.Int64("limit", limit))
}

// EventID records the event identifier under the key "event_id".
// If id is nil, it returns an empty Attr.
func EventID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("event_id", id)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}
