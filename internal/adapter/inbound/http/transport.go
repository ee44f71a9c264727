package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threadgate/threadgate/internal/config"
	"github.com/threadgate/threadgate/internal/domain/auth"
	"github.com/threadgate/threadgate/internal/service"
)

// Transport is the inbound adapter that serves the gateway's HTTP API.
type Transport struct {
	settings *config.Settings
	api      *API
	server   *http.Server
	addr     string
	version  string
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *Metrics
}

// Option is a functional option for configuring the Transport.
type Option func(*Transport)

// WithAddr overrides the listen address from the settings.
func WithAddr(addr string) Option {
	return func(t *Transport) {
		t.addr = addr
	}
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithVersion sets the version string reported by the banner and health
// endpoints.
func WithVersion(version string) Option {
	return func(t *Transport) {
		t.version = version
	}
}

// WithRegistry substitutes the Prometheus registry. Tests use this to
// inspect metrics without scraping /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(t *Transport) {
		t.registry = reg
	}
}

// NewTransport wires the route handlers, middleware chain, and metrics.
func NewTransport(
	settings *config.Settings,
	decoder *auth.Decoder,
	relay *service.RelayService,
	conversations *service.ConversationService,
	admin *service.AdminService,
	beta *service.BetaService,
	opts ...Option,
) *Transport {
	t := &Transport{
		settings: settings,
		addr:     settings.Server.Addr,
		version:  "dev",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.registry == nil {
		t.registry = prometheus.NewRegistry()
		t.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	t.metrics = NewMetrics(t.registry)

	t.api = NewAPI(decoder, relay, conversations, admin, beta, t.metrics,
		settings.Environment, t.version)

	return t
}

// Handler builds the full request pipeline: metrics and request-ID
// wrapping around the defensive chain around the routed handlers.
func (t *Transport) Handler() http.Handler {
	a := t.api

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", handle(a.handleRoot))
	mux.Handle("GET /health", handle(a.handleHealth))
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{
		Registry: t.registry,
	}))

	mux.Handle("POST /api/auth/check-user", handle(a.optionalIdentity(a.handleCheckUser)))
	mux.Handle("POST /api/auth/non-beta-request", handle(a.optionalIdentity(a.handleNonBetaRequest)))
	mux.Handle("GET /api/auth/me", handle(a.requireIdentity(a.handleMe)))

	mux.Handle("POST /api/threads", handle(a.requireIdentity(a.handleCreateThread)))
	mux.Handle("GET /api/threads/{id}", handle(a.requireIdentity(a.handleGetThread)))
	mux.Handle("POST /api/threads/{id}/stream", handle(a.requireIdentity(a.handleStream)))

	mux.Handle("GET /api/admin/threads", handle(a.requireAdmin(a.handleAdminListThreads)))
	mux.Handle("GET /api/admin/threads/{id}", handle(a.requireAdmin(a.handleAdminGetThread)))
	mux.Handle("DELETE /api/admin/threads/{id}", handle(a.requireAdmin(a.handleAdminDeleteThread)))
	mux.Handle("GET /api/admin/stats", handle(a.requireAdmin(a.handleAdminStats)))

	// Defensive chain, innermost to outermost. Order matters: the proxy
	// sanitizer must strip forwarding headers before any stage reads
	// them, and the header injector sits outside every stage that can
	// write a response, so its header set covers all rejections — the
	// payload guard's included. It has no request-side effect, so the
	// stages inside it see the request unchanged.
	var handler http.Handler = mux
	handler = SuspiciousRequestMiddleware()(handler)
	handler = SlowRequestMiddleware(t.settings.SecurityRequestTimeout())(handler)
	handler = PayloadSizeMiddleware(t.settings.Security.MaxBodyBytes)(handler)
	handler = TrustedProxyMiddleware(t.settings.Security.TrustedProxies, t.logger)(handler)
	handler = SecurityHeadersMiddleware(t.settings.Environment)(handler)
	handler = RequestIDMiddleware(t.logger)(handler)
	handler = TracingMiddleware()(handler)
	handler = MetricsMiddleware(t.metrics)(handler)

	return handler
}

// Metrics exposes the transport's metric set.
func (t *Transport) Metrics() *Metrics {
	return t.metrics
}

// Start begins serving HTTP requests. It blocks until the context is
// cancelled or the server fails.
func (t *Transport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr, "environment", t.settings.Environment)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
