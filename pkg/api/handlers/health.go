package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/reelforge/reelforge/pkg/store/session"
)

// HealthCheckTimeout is the maximum time allowed for readiness checks,
// preventing a slow database from blocking health probes indefinitely.
const HealthCheckTimeout = 5 * time.Second

// HealthHandler handles the unauthenticated health endpoints:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Can the server reach the session database?
type HealthHandler struct {
	sessions  *session.Store
	startTime time.Time
}

// NewHealthHandler creates a new health handler. The sessions store may
// be nil, in which case readiness reports unavailable.
func NewHealthHandler(sessions *session.Store) *HealthHandler {
	return &HealthHandler{
		sessions:  sessions,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health. Always succeeds while the HTTP server
// is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSONOK(w, map[string]any{
		"status":     "ok",
		"service":    "reelforge",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
	})
}

// Readiness handles GET /health/ready. Ready means the session database
// answers a ping.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable",
			"session store not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	sqlDB, err := h.sessions.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable",
			"session database unreachable: "+err.Error())
		return
	}

	WriteJSONOK(w, map[string]any{"status": "ready"})
}
