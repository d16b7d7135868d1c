// Package gateway serves the inbound webhook trigger endpoint.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server manages the HTTP server in front of the security gate.
type Server struct {
	server  *http.Server
	port    int
	gate    *Gate
	health  func(ctx context.Context) error
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// NewServer creates the gateway server. The health function is consulted by
// the /health endpoint; nil means always healthy.
func NewServer(port int, gate *Gate, health func(ctx context.Context) error, logger *slog.Logger) *Server {
	return &Server{
		port:   port,
		gate:   gate,
		health: health,
		logger: logger.With("module", "gateway_server", "port", port),
		done:   make(chan struct{}),
	}
}

// Start begins serving and shuts down when the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/{organizationID}/{webhookID}", s.gate.HandleTrigger)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	s.started = true
	s.logger.Info("Starting webhook gateway", "addr", s.server.Addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Gateway server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Error("Error during gateway shutdown", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping webhook gateway")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("gateway shutdown failed: %w", err)
	}

	s.started = false
	close(s.done)

	return nil
}

// Done is closed once the server has shut down.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	healthy := "healthy"

	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn("Health check failed", "error", err)

			status = http.StatusServiceUnavailable
			healthy = "unhealthy"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":    healthy,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.logger.Error("Error encoding health response", "error", err)
	}
}
