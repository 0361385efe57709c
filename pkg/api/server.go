package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/reelforge/reelforge/internal/logger"
	"github.com/reelforge/reelforge/pkg/api/auth"
	"github.com/reelforge/reelforge/pkg/upload"
)

// Server provides the HTTP server for the upload API.
//
// The server is created in a stopped state; Start blocks until the
// context is cancelled and then shuts down gracefully.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates the API HTTP server.
//
// The token verifier is created internally from the config; the JWT
// secret must be at least 32 characters.
func NewServer(cfg Config, svc *upload.Service) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	router := NewRouter(cfg, svc, verifier)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return &Server{server: server, config: cfg}, nil
}

// Start starts the HTTP server and blocks until the context is
// cancelled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Don't use the cancelled ctx: it would abort in-flight chunk
		// PUTs immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.KeyError, err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int {
	return s.config.Port
}
