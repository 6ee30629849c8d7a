package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/pulse/internal/metrics"
	"github.com/desertthunder/pulse/internal/session"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/desertthunder/pulse/internal/web"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own several routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// ShutdownTimeout bounds how long [Server.Run] waits for streams to drain after its context ends.
const ShutdownTimeout = 10 * time.Second

// Options configures a [Server].
type Options struct {
	Addr    string
	Stream  StreamOptions
	Manager *session.Manager
	Metrics *metrics.Metrics // optional
	Limiter *rate.Limiter    // session admission, nil admits everything
	Logger  *log.Logger
}

// Server routes requests to the streaming, status and metrics handlers.
type Server struct {
	router       *BasicRouter
	manager      *session.Manager
	logger       *log.Logger
	started      time.Time
	shuttingDown atomic.Bool
	httpServer   *http.Server
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	s := &Server{
		router:  NewBasicRouter(),
		manager: opts.Manager,
		logger:  opts.Logger,
		started: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.router.Use(Recover(opts.Logger), Logging(opts.Logger, opts.Metrics))

	admit := RateLimit(opts.Limiter, opts.Metrics)
	s.router.Handle(http.MethodGet, "/sse", admit(NewSSEHandler(opts.Manager, opts.Stream, opts.Logger)))
	s.router.Handle(http.MethodGet, "/ws", admit(NewWSHandler(opts.Manager, opts.Stream, opts.Logger)))
	s.router.HandleFunc(http.MethodGet, "/status", s.handleStatus)
	s.router.Handle(http.MethodGet, "/metrics", opts.Metrics.Handler())
	s.router.Handler(NewSessionsHandler(opts.Manager, opts.Logger))

	if page, err := web.Handler(web.DefaultPage()); err != nil {
		opts.Logger.Warn("browser page disabled", "err", err)
	} else {
		s.router.Handle(http.MethodGet, "/{$}", page)
	}
	opts.Logger.Debug("routes registered", "routes", s.router.Routes())

	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx ends, then shuts down within [ShutdownTimeout].
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown ends every live session so streaming handlers return, then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shuttingDown.Store(true)
	s.logger.Info("shutting down", "active_sessions", s.manager.Active())

	sessionsErr := s.manager.Shutdown(ctx)
	httpErr := s.httpServer.Shutdown(ctx)
	return errors.Join(sessionsErr, httpErr)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}
