package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jacksonlee411/harbor-erp/internal/routing"
)

// HealthCheck pings one dependency for the readiness check.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

func handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// readinessHandler answers "ok" only when every check passes.
func readinessHandler(logger *zap.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		for _, c := range checks {
			if err := c.Ping(ctx); err != nil {
				fields := []zap.Field{zap.String("dependency", c.Name), zap.Error(err)}
				if code := pgErrorCode(err); code != "" {
					fields = append(fields, zap.String("pg_code", code))
				}
				logger.Warn("readiness check failed", fields...)
				routing.WriteError(w, r, routing.RouteClassOps, http.StatusServiceUnavailable, "dependency_unavailable", c.Name+" is unavailable.")
				return
			}
		}
		handleLiveness(w, r)
	}
}
