// package server contains middleware & handlers for the webhook receiver
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jellytodo/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own their routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

const (
	shutdownTimeout     = 10 * time.Second
	defaultWriteTimeout = 60 * time.Second

	// passCalls bounds the sequential remote calls a typical reconciliation pass makes.
	passCalls = 8
)

// WriteTimeoutFor returns a write timeout long enough for a pass whose remote calls each
// take up to callTimeout, so the reply is not cut off after mutations have landed.
func WriteTimeoutFor(callTimeout time.Duration) time.Duration {
	if callTimeout <= 0 {
		return defaultWriteTimeout
	}
	return max(defaultWriteTimeout, passCalls*callTimeout+shutdownTimeout)
}

// Server runs an [http.Server] until its context is canceled.
type Server struct {
	http   *http.Server
	logger *log.Logger
}

// NewServer creates a [Server] listening on addr with read and write timeouts suited to webhook traffic.
//
// A zero writeTimeout uses the default of 60 seconds.
func NewServer(addr string, handler http.Handler, writeTimeout time.Duration, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Run serves until ctx is canceled, then drains in-flight requests.
//
// Returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
