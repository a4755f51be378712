package api

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// health is a simple liveness endpoint for Docker/Kubernetes probes.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports whether the server can actually serve traffic by
// pinging the database. A nil pool reports unavailable.
func readiness(pool *pgxpool.Pool, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			writeError(w, http.StatusServiceUnavailable, "not_ready", "database pool not configured")
			return
		}
		if err := pool.Ping(r.Context()); err != nil {
			logger.Error("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "not_ready", "database not ready")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
}
