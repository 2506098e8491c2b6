// Package server exposes the kiosk over HTTP: the GraphQL API, the payment
// webhook, health and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	gqlgen "github.com/99designs/gqlgen/graphql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

// DefaultShutdownTimeout bounds the graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// Executor runs a GraphQL operation.
type Executor interface {
	Execute(ctx context.Context, params *gqlgen.RawParams) *gqlgen.Response
}

// Config holds server configuration.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

// Deps are the handlers and collaborators the server routes to. Gatherer
// defaults to the Prometheus default registry; Drain is optional and runs
// after the listener has stopped.
type Deps struct {
	GraphQL  Executor
	Webhook  http.Handler
	Gatherer prometheus.Gatherer
	Logger   *otelzap.Logger
	Drain    func()
}

// Server is the HTTP server for the kiosk.
type Server struct {
	config Config
	deps   Deps
}

// New creates a new server instance.
func New(cfg Config, deps Deps) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{config: cfg, deps: deps}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/graphql", s.handleGraphQL)
	if s.deps.Webhook != nil {
		mux.Handle("/webhooks/stripe", s.deps.Webhook)
	}

	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled. On shutdown
// it stops accepting requests, lets in-flight ones finish, then waits for
// background work through Drain.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("Starting server", zap.Int("port", s.config.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.deps.Logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if s.deps.Drain != nil {
			s.deps.Drain()
		}
		return err
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeResponse(w, http.StatusMethodNotAllowed, errorResponse("Method not allowed, use POST"))
		return
	}

	var params gqlgen.RawParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeResponse(w, http.StatusBadRequest, errorResponse("Invalid JSON: "+err.Error()))
		return
	}
	if params.Query == "" {
		writeResponse(w, http.StatusBadRequest, errorResponse("Missing query"))
		return
	}

	resp := s.deps.GraphQL.Execute(r.Context(), &params)
	status := http.StatusOK
	if len(resp.Data) == 0 && len(resp.Errors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeResponse(w, status, resp)
}

func errorResponse(message string) *gqlgen.Response {
	return &gqlgen.Response{Errors: gqlerror.List{gqlerror.Errorf("%s", message)}}
}

func writeResponse(w http.ResponseWriter, status int, resp *gqlgen.Response) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
