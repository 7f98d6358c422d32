// Package httpapi implements the coordinator's HTTP gateway.
//
// The gateway exposes the assessment operation, the fleet status view, and
// the observability endpoints. Request bodies are size-limited and every
// request is logged with a correlation ID. TLS is expected via reverse
// proxy (not handled here).
package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/engine"
	"github.com/jkaninda/mikopo/internal/observability"
	"github.com/jkaninda/mikopo/internal/protocol"
	"github.com/jkaninda/mikopo/internal/ratelimit"
	"github.com/jkaninda/okapi"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Assessor runs a loan assessment. *broker.Broker satisfies this.
type Assessor interface {
	Assess(ctx context.Context, app domain.ApplicantSnapshot) (domain.Assessment, error)
}

// FleetView reports worker states for GET /v1/fleet.
type FleetView interface {
	Status(ctx context.Context) []domain.ProcessRecord
}

// Config configures the HTTP gateway.
type Config struct {
	ListenAddr     string // e.g., ":8080"
	EnableDocs     bool
	Version        string
	MaxRequestSize int64            // Maximum request body in bytes. 0 = 1 MB default.
	RateLimit      ratelimit.Config // Per-client limit on /v1/assess. Zero = unlimited.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz endpoint.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the coordinator HTTP gateway.
type Gateway struct {
	config   Config
	assessor Assessor
	fleet    FleetView // nil = fleet endpoint disabled.
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	server   *http.Server
	okapi    *okapi.Okapi
	group    *okapi.Group
}

// NewGateway creates the coordinator HTTP gateway.
func NewGateway(cfg Config, assessor Assessor, fleet FleetView, logger *slog.Logger) *Gateway {
	maxSize := cfg.MaxRequestSize
	if maxSize == 0 {
		maxSize = defaultMaxRequestSize
	}
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = ratelimit.NewLimiter(cfg.RateLimit)
	}
	return &Gateway{
		config:   cfg,
		assessor: assessor,
		fleet:    fleet,
		limiter:  limiter,
		logger:   logger,
		okapi:    okapi.New(okapi.WithMaxMultipartMemory(maxSize)),
	}
}

// WithOpenAPIDocs mounts the generated API documentation.
func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "mikopo",
			Version: g.config.Version,
		},
	)
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied to the API group).
	var middlewares []okapi.Middleware
	if g.config.Metrics != nil || g.config.Tracer != nil {
		middlewares = append(middlewares, observability.MetricsMiddleware(g.config.Metrics, g.config.Tracer))
	}

	g.group = g.okapi.Group("/v1", middlewares...)

	g.group.Post("/assess", g.handleAssess,
		okapi.DocSummary("Assess a loan application"),
		okapi.DocTags("Assessments"),
		okapi.DocRequestBody(AssessRequest{}),
		okapi.DocResponse(domain.Assessment{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
	)

	if g.fleet != nil {
		g.group.Get("/fleet", g.handleFleet,
			okapi.DocSummary("List agent worker states"),
			okapi.DocTags("Fleet"),
			okapi.DocResponse(FleetResponse{}),
		)
	}

	// Observability and discovery endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)
	g.okapi.Get("/.well-known/agent.json", g.handleAgentCard)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// --- Handlers ---

// AssessRequest is the JSON body for POST /v1/assess.
type AssessRequest struct {
	ApplicantName string  `json:"applicant_name"`
	AnnualIncome  float64 `json:"annual_income,omitempty"`
	LoanAmount    float64 `json:"loan_amount,omitempty"`
	PropertyValue float64 `json:"property_value,omitempty"`
	MonthlyDebt   float64 `json:"monthly_debt,omitempty"`
}

func (g *Gateway) handleAssess(c *okapi.Context) error {
	if g.limiter != nil {
		if err := g.limiter.Allow(clientKey(c.Request())); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	var req AssessRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.ApplicantName == "" {
		return c.AbortBadRequest("applicant_name is required")
	}

	correlationID := newCorrelationID()

	g.logger.Info("http assessment",
		slog.String("applicant", req.ApplicantName),
		slog.String("correlation_id", correlationID),
	)

	assessment, err := g.assessor.Assess(c.Context(), domain.ApplicantSnapshot{
		Name:          req.ApplicantName,
		AnnualIncome:  req.AnnualIncome,
		LoanAmount:    req.LoanAmount,
		PropertyValue: req.PropertyValue,
		MonthlyDebt:   req.MonthlyDebt,
	})
	if err != nil {
		if errors.Is(err, engine.ErrIncompleteData) {
			return c.AbortBadRequest(err.Error())
		}
		g.logger.Error("assessment failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("assessment failed")
	}

	return c.OK(assessment)
}

// FleetResponse is the JSON response for GET /v1/fleet.
type FleetResponse struct {
	Workers []domain.ProcessRecord `json:"workers"`
}

func (g *Gateway) handleFleet(c *okapi.Context) error {
	return c.OK(FleetResponse{Workers: g.fleet.Status(c.Context())})
}

// HealthResponse is the JSON response for the health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// handleAgentCard serves the coordinator's discovery document.
func (g *Gateway) handleAgentCard(c *okapi.Context) error {
	return c.OK(protocol.AgentCard{
		Name:        "mikopo-coordinator",
		Description: "Coordinates loan assessments across the agent worker fleet.",
		Version:     g.config.Version,
		TaskTypes: []protocol.TaskType{
			protocol.TaskValidateDocuments,
			protocol.TaskAssessRisk,
			protocol.TaskComplianceReview,
			protocol.TaskRouteApplication,
		},
	})
}

// --- Helpers ---

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// clientKey buckets rate limiting by remote host, ignoring the port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
