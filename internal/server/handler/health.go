package handler

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"
)

// CheckFunc checks one backend.
type CheckFunc func(ctx context.Context) error

// healthCheckTimeout bounds each backend check.
const healthCheckTimeout = 2 * time.Second

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks map[string]CheckFunc
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks maps backend names (for
// example "redis") to checks and may be nil.
func NewHealthHandler(logger *slog.Logger, checks map[string]CheckFunc) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		logger: logHandler(logger, "health"),
	}
}

// HealthCheck reports liveness. A failing backend marks the desk degraded but
// the endpoint still answers 200: the ticker routes keep working without
// optional backends.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if len(h.checks) > 0 {
		results := make(map[string]string, len(h.checks))
		for _, name := range slices.Sorted(maps.Keys(h.checks)) {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := h.checks[name](ctx)
			cancel()
			if err != nil {
				h.logger.WarnContext(r.Context(), "health check failed",
					slog.String("backend", name),
					slog.String("error", err.Error()),
				)
				results[name] = err.Error()
				resp["status"] = "degraded"
				continue
			}
			results[name] = "ok"
		}
		resp["checks"] = results
	}

	writeJSON(w, http.StatusOK, resp)
}
