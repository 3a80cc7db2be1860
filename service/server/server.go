package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/xray/service/classifier"
	"github.com/brojonat/xray/service/config"
	"github.com/brojonat/xray/service/metrics"
	natspkg "github.com/brojonat/xray/service/nats"
	"github.com/brojonat/xray/service/temporal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server for the classification service.
type Server struct {
	addr         string
	cfg          *config.Config
	classifier   *classifier.Classifier
	publisher    natspkg.Publisher
	starter      temporal.Starter
	ssePublisher *SSEPublisher
	renderer     *TemplateRenderer
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The publisher is optional - if nil, classified transactions are not published.
// The starter is optional - if nil, the classify job endpoints are not available.
// The ssePublisher is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, c *classifier.Classifier, publisher natspkg.Publisher, starter temporal.Starter, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if cfg.MaxBatchSize < 1 {
		cfg.MaxBatchSize = defaultMaxBatchSize
	}
	if c == nil {
		c = classifier.New(m, logger, cfg.ClassifyConcurrency)
	}
	return &Server{
		addr:         addr,
		cfg:          cfg,
		classifier:   c,
		publisher:    publisher,
		starter:      starter,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	// Classification routes
	route("POST /api/v1/transactions/parse", "/api/v1/transactions/parse",
		handleParseTransaction(s.classifier, s.publisher, s.logger))
	route("POST /api/v1/transactions/parse-batch", "/api/v1/transactions/parse-batch",
		handleParseBatch(s.classifier, s.publisher, s.cfg.MaxBatchSize, s.logger))
	route("GET /api/v1/types", "/api/v1/types", handleListTypes())

	// Asynchronous classification through Temporal
	if s.starter != nil {
		route("POST /api/v1/classify-jobs", "/api/v1/classify-jobs",
			handleStartClassifyJob(s.starter, s.cfg.MaxBatchSize, s.logger))
		route("GET /api/v1/classify-jobs/{workflow_id}", "/api/v1/classify-jobs/{workflow_id}",
			handleGetClassifyJob(s.starter, s.logger))
		s.logger.Info("classify job endpoints enabled")
	}

	// SSE streaming endpoints (if SSE publisher is configured)
	if s.ssePublisher != nil {
		mux.Handle("GET /api/v1/stream/transactions/{address}", handleStreamTransactions(s.ssePublisher, s.metrics, s.logger))
		mux.Handle("GET /api/v1/stream/transactions", handleStreamTransactions(s.ssePublisher, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// HTML pages (if template renderer is configured)
	if s.renderer != nil {
		mux.HandleFunc("GET /stream", handleStreamPage(s.renderer, s.ssePublisher != nil))
		s.logger.Info("HTML page endpoints enabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	handler := s.Handler()
	if s.ssePublisher == nil {
		// Streams are long-lived, so only bound handlers when none are mounted.
		handler = http.TimeoutHandler(handler, timeout, `{"error":"request timed out"}`)
	}

	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     handler,
		ReadTimeout: timeout,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
