// Package http serves training runs, metrics and the live training feed.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"marginperceptron/logging"
)

// Server is the HTTP front of the trainer.
type Server struct {
	server *http.Server
	config ServerConfig
}

// ServerConfig holds the listen port and request header timeout.
type ServerConfig struct {
	Port    int
	Timeout time.Duration
}

// DefaultServerConfig returns port 8090 with a 30s timeout.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:    8090,
		Timeout: 30 * time.Second,
	}
}

// NewServer wires the handlers behind recovery and access logging. Write
// timeouts are left to handlers so that training requests and websocket
// streams are not cut off.
func NewServer(config ServerConfig, h *Handlers) *Server {
	mux := http.NewServeMux()
	RegisterHandlers(mux, h)

	chain := Chain(
		RecoveryMiddleware,
		LoggerMiddleware,
	)

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           chain(mux),
			ReadHeaderTimeout: config.Timeout,
			IdleTimeout:       120 * time.Second,
		},
		config: config,
	}
}

// Start listens until Stop is called.
func (s *Server) Start() error {
	logging.GetLogger(logging.MODULE_HTTP).Infow("starting HTTP server", "addr", s.server.Addr,
		"websocket", fmt.Sprintf("ws://localhost%s/api/ws/training", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting up to five seconds for requests.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}
