package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/reelforge/reelforge/internal/logger"
	"github.com/reelforge/reelforge/pkg/api/auth"
	"github.com/reelforge/reelforge/pkg/api/handlers"
	apimiddleware "github.com/reelforge/reelforge/pkg/api/middleware"
	"github.com/reelforge/reelforge/pkg/metrics"
	"github.com/reelforge/reelforge/pkg/upload"
)

// NewRouter creates and configures the chi router with all middleware
// and routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus metrics (404 when disabled)
//   - POST /uploads?uploadType=resumable - Create upload session
//   - PUT /uploads/{id} - Chunk PUT or status probe
//   - DELETE /uploads/{id} - Abort
//   - GET /uploads/{id}/status - Progress snapshot
//   - PUT /uploads/{id}/draft - Draft metadata update
func NewRouter(cfg Config, svc *upload.Service, verifier *auth.Verifier) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	healthHandler := handlers.NewHealthHandler(svc.Sessions())
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	uploadHandler := handlers.NewUploadHandler(svc)
	createLimiter := apimiddleware.PerHour(cfg.RateCreatePerHour)
	chunkLimiter := apimiddleware.PerMinute(cfg.RateChunkPerMinute)

	r.Route("/uploads", func(r chi.Router) {
		r.Use(apimiddleware.Authenticate(verifier))

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
			r.With(createLimiter.Middleware).Post("/", uploadHandler.Create)
			r.Delete("/{id}", uploadHandler.Abort)
			r.Get("/{id}/status", uploadHandler.Status)
			r.Put("/{id}/draft", uploadHandler.UpdateDraft)
		})

		// The chunk endpoint streams and must not run under the request
		// timeout; BindChunk sets its own deadline.
		r.With(chunkLimiter.Middleware, apimiddleware.BindChunk(cfg.ChunkDeadline)).
			Put("/{id}", uploadHandler.Append)
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger logs request start at DEBUG and completion at INFO,
// with healthcheck traffic kept at DEBUG to reduce noise.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimiddleware.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDuration, duration.String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
