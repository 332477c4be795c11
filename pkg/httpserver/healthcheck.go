package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// Check probes one dependency.
type Check func(context.Context) error

// HealthCheckHandler reports readiness as JSON. Every named check runs with
// a five second deadline; any failure turns the response into 503 with the
// failing check names listed. Without checks the handler is a liveness probe.
func HealthCheckHandler(log *slog.Logger, checks map[string]Check) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		resp := struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks,omitempty"`
		}{Status: "ok"}

		for name, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Component(name), logger.Error(err))
				resp.Checks[name] = "failed"
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
