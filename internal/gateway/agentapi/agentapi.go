// Package agentapi serves one agent worker over HTTP. Each fleet role runs
// its own instance: the discovery document at /.well-known/agent.json and
// task submission at /tasks.
package agentapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jkaninda/mikopo/internal/agent"
	"github.com/jkaninda/mikopo/internal/protocol"
	"github.com/jkaninda/okapi"
)

// ErrorBody is the standard error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the agent HTTP server.
type Config struct {
	Port       int
	EnableDocs bool
}

// Server exposes a single agent executor over HTTP.
type Server struct {
	config   Config
	executor agent.Executor
	logger   *slog.Logger
	server   *http.Server
	okapi    *okapi.Okapi
}

// NewServer creates the agent HTTP server for one executor.
func NewServer(cfg Config, executor agent.Executor, logger *slog.Logger) *Server {
	return &Server{
		config:   cfg,
		executor: executor,
		logger:   logger,
		okapi:    okapi.New(),
	}
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	card := s.executor.Card()

	s.okapi.Get("/.well-known/agent.json", s.handleAgentCard)
	s.okapi.Get("/healthz", s.handleLiveness)
	s.okapi.Post("/tasks", s.handleTask,
		okapi.DocSummary("Submit a task to this agent"),
		okapi.DocTags("Tasks"),
		okapi.DocRequestBody(protocol.TaskRequest{}),
		okapi.DocResponse(protocol.TaskResult{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)

	if s.config.EnableDocs {
		s.okapi.WithOpenAPIDocs(okapi.OpenAPI{
			Title:   fmt.Sprintf("mikopo agent: %s", card.Name),
			Version: card.Version,
		})
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.logger.Info("agent server starting",
		slog.String("agent", card.Name),
		slog.Int("port", s.config.Port),
	)

	return s.okapi.StartServer(s.server)
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("agent server stopping", slog.String("agent", s.executor.Card().Name))
	return s.okapi.Shutdown(s.server)
}

func (s *Server) handleAgentCard(c *okapi.Context) error {
	return c.OK(s.executor.Card())
}

func (s *Server) handleLiveness(c *okapi.Context) error {
	return c.OK(okapi.M{"status": "ok"})
}

// handleTask runs one task through the executor. Unsupported task types and
// bad payloads come back as failed results with HTTP 200; only transport
// level problems produce an HTTP error status.
func (s *Server) handleTask(c *okapi.Context) error {
	var req protocol.TaskRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid task request")
	}
	if req.Type == "" {
		return c.AbortBadRequest("task type is required")
	}

	result, err := s.executor.Execute(c.Context(), req)
	if err != nil {
		s.logger.Error("task execution failed",
			slog.String("task_id", req.ID),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("task execution failed")
	}

	s.logger.Info("task handled",
		slog.String("task_id", req.ID),
		slog.String("type", string(req.Type)),
		slog.String("status", string(result.Status)),
	)
	return c.OK(result)
}
