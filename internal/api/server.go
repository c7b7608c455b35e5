package api

import (
	"log/slog"
	"net/http"

	"tablelock/internal/config"
	"tablelock/internal/lock"
	"tablelock/internal/metrics"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server exposes a lock store over HTTP.
type Server struct {
	store    lock.Store
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	router   *httprouter.Router
	handler  http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request and operation metrics in m and serves gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// New creates a Server backed by store.
func New(store lock.Store, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	s.router = s.newRouter()
	s.handler = s.withRequestID(s.withAccessLog(s.router))
	return s
}

func (s *Server) newRouter() *httprouter.Router {
	router := httprouter.New()

	s.handle(router, http.MethodPost, "/api/tables/lock", s.handleLock)
	s.handle(router, http.MethodPost, "/api/tables/unlock", s.handleUnlock)
	s.handle(router, http.MethodGet, "/api/tables/:tableId/status", s.handleStatus)
	s.handle(router, http.MethodGet, "/healthz", s.handleHealth)

	if s.gatherer != nil {
		router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.countRequest(r.Method, "unmatched", http.StatusNotFound)
		writeJSON(w, http.StatusNotFound, response{Success: false, Message: "Not found"})
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.countRequest(r.Method, "unmatched", http.StatusMethodNotAllowed)
		writeJSON(w, http.StatusMethodNotAllowed, response{Success: false, Message: "Method not allowed"})
	})
	router.PanicHandler = s.handlePanic

	return router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// HTTPServer returns an http.Server serving s with the configured address and timeouts.
func (s *Server) HTTPServer(cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
