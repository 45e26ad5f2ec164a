package http

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/tradelens/pkg/engine"
	"github.com/rhuss/tradelens/pkg/observability"
	"github.com/rhuss/tradelens/pkg/transport"
)

// Options configures the routes served by NewHandler.
type Options struct {
	Logger *slog.Logger

	// Auth protects the JSON API and the MCP endpoint. Nil leaves them open.
	// The HTML page is never behind Auth.
	Auth transport.Middleware

	// MaxBodySize limits request bodies. Zero disables the limit.
	MaxBodySize int64

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string

	// MCPPath serves the MCP tool endpoint when non-empty.
	MCPPath string

	// Version is reported by the MCP server.
	Version string

	// Title overrides the page title.
	Title string
}

// Handler serves the search page, the JSON API, probes, metrics and the
// MCP endpoint on one mux.
type Handler struct {
	engine  *engine.Engine
	opts    Options
	logger  *slog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// NewHandler builds the route table around eng. The middleware order is
// recovery, request ID, access log, body limit, metrics. Metrics sit
// directly on the mux because they label by the matched pattern.
func NewHandler(eng *engine.Engine, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		engine: eng,
		opts:   opts,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	protect := opts.Auth
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}

	h.mux.HandleFunc("GET /{$}", h.handleIndex)
	h.mux.HandleFunc("POST /{$}", h.handleSearch)

	h.mux.Handle("POST /v1/query", protect(http.HandlerFunc(h.handleQuery)))
	h.mux.Handle("GET /v1/namespaces", protect(http.HandlerFunc(h.handleNamespaces)))
	h.mux.Handle("GET /v1/history", protect(http.HandlerFunc(h.handleListHistory)))
	h.mux.Handle("GET /v1/history/{id}", protect(http.HandlerFunc(h.handleGetHistory)))

	h.mux.HandleFunc("GET /healthz", h.handleHealthz)
	h.mux.HandleFunc("GET /readyz", h.handleReadyz)

	quiet := []string{"/healthz", "/readyz"}
	if opts.MetricsPath != "" {
		h.mux.Handle("GET "+opts.MetricsPath, promhttp.Handler())
		quiet = append(quiet, opts.MetricsPath)
	}
	if opts.MCPPath != "" {
		h.mux.Handle(opts.MCPPath, protect(newMCPHandler(eng, opts.Version)))
	}

	h.handler = transport.Chain(
		transport.Recovery(logger),
		transport.RequestID(),
		transport.Logging(logger, quiet...),
		transport.MaxBodySize(opts.MaxBodySize),
	)(observability.MetricsMiddleware(h.mux))

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}
