package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// HealthCheck probes a single dependency.
type HealthCheck func(ctx context.Context) error

const healthTimeout = 2 * time.Second

func healthHandler(checks map[string]HealthCheck, logger *logging.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		response := map[string]string{"status": "ok"}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.Warn("health check failed", "check", name, "error", err)
				response[name] = "unavailable"
				response["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			response[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}
}
