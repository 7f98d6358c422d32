// Package toolclient maintains a session to one credit tool server process
// over stdio. A session allows at most one in-flight call; every call carries
// its own timeout. The client performs no retries: fallback policy belongs to
// the broker, which owns the decision of what to do when a call fails.
package toolclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jkaninda/mikopo/internal/domain"
)

const defaultCallTimeout = 5 * time.Second

var (
	// ErrToolTimeout marks a call that exceeded its deadline.
	ErrToolTimeout = errors.New("tool call timed out")
	// ErrToolUnreachable marks transport or protocol failures.
	ErrToolUnreachable = errors.New("tool server unreachable")
)

// Config describes how to reach one tool server.
type Config struct {
	Command     string
	Args        []string
	Env         []string // "KEY=value" entries for the child process.
	CallTimeout time.Duration
}

// Session is a live connection to a spawned tool server process.
// All calls are serialized: a session never has two calls in flight.
type Session struct {
	client      *mcpclient.Client
	callTimeout time.Duration
	logger      *slog.Logger

	mu sync.Mutex // serializes calls
}

// Open spawns the tool server and performs the MCP initialization handshake.
// The ctx bounds the handshake only; per-call timeouts come from Config.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Session, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("%w: no command configured", ErrToolUnreachable)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c, err := mcpclient.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("%w: spawning %s: %v", ErrToolUnreachable, cfg.Command, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "mikopo",
		Version: "0.1.0",
	}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, mapCallErr(fmt.Errorf("initialize handshake: %w", err))
	}

	timeout := cfg.CallTimeout
	if timeout == 0 {
		timeout = defaultCallTimeout
	}

	logger.Debug("tool session opened",
		slog.String("command", cfg.Command),
		slog.Duration("call_timeout", timeout),
	)

	return &Session{
		client:      c,
		callTimeout: timeout,
		logger:      logger,
	}, nil
}

// ListTools returns the descriptors of every tool the server advertises.
func (s *Session) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	resp, err := s.client.ListTools(callCtx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, mapCallErr(err)
	}

	descriptors := make([]domain.ToolDescriptor, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		descriptors = append(descriptors, domain.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: convertInputSchema(t.InputSchema),
		})
	}
	return descriptors, nil
}

// GetCreditScore invokes the bureau lookup tool.
func (s *Session) GetCreditScore(ctx context.Context, name string) (domain.CreditBureauResult, error) {
	var record domain.CreditBureauResult
	err := s.call(ctx, "getCreditScore", map[string]any{"applicant_name": name}, &record)
	return record, err
}

// PredictDefaultRisk invokes the risk model tool.
func (s *Session) PredictDefaultRisk(ctx context.Context, app domain.ApplicantSnapshot) (domain.RiskPrediction, error) {
	var prediction domain.RiskPrediction
	err := s.call(ctx, "predictDefaultRisk", snapshotArgs(app), &prediction)
	return prediction, err
}

// ComprehensiveAssessment invokes the combined assessment tool.
func (s *Session) ComprehensiveAssessment(ctx context.Context, app domain.ApplicantSnapshot) (domain.AssessmentBundle, error) {
	var bundle domain.AssessmentBundle
	err := s.call(ctx, "comprehensiveAssessment", snapshotArgs(app), &bundle)
	return bundle, err
}

// Close tears down the session and the server process.
func (s *Session) Close() error {
	return s.client.Close()
}

// call performs one serialized, deadline-bounded tool invocation and decodes
// the JSON text payload into out.
func (s *Session) call(ctx context.Context, tool string, args map[string]any, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = tool
	callReq.Params.Arguments = args

	start := time.Now()
	result, err := s.client.CallTool(callCtx, callReq)
	if err != nil {
		s.logger.WarnContext(ctx, "tool call failed",
			slog.String("tool", tool),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return mapCallErr(err)
	}

	text := textContent(result.Content)
	if result.IsError {
		// Server-side rejection (e.g. invalid input) is a domain error, not
		// a transport failure.
		return fmt.Errorf("tool %s rejected call: %s", tool, text)
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: decoding %s payload: %v", ErrToolUnreachable, tool, err)
	}
	return nil
}

// mapCallErr classifies transport errors into the package sentinels.
func mapCallErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrToolTimeout, err)
	}
	if errors.Is(err, ErrToolTimeout) || errors.Is(err, ErrToolUnreachable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrToolUnreachable, err)
}

// textContent joins all text items of a tool result.
func textContent(content []mcp.Content) string {
	var sb strings.Builder
	for i, c := range content {
		if i > 0 {
			sb.WriteString("\n")
		}
		if tc, ok := mcp.AsTextContent(c); ok {
			sb.WriteString(tc.Text)
		} else {
			data, _ := json.Marshal(c)
			sb.Write(data)
		}
	}
	return sb.String()
}

// convertInputSchema flattens the MCP schema type into a plain map.
func convertInputSchema(schema mcp.ToolInputSchema) map[string]any {
	result := map[string]any{"type": schema.Type}
	if schema.Properties != nil {
		result["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		required := make([]any, len(schema.Required))
		for i, r := range schema.Required {
			required[i] = r
		}
		result["required"] = required
	}
	return result
}

// snapshotArgs converts a snapshot to tool arguments, omitting absent fields
// so the server applies its own conservative defaults.
func snapshotArgs(app domain.ApplicantSnapshot) map[string]any {
	args := map[string]any{"applicant_name": app.Name}
	if app.AnnualIncome > 0 {
		args["annual_income"] = app.AnnualIncome
	}
	if app.LoanAmount > 0 {
		args["loan_amount"] = app.LoanAmount
	}
	if app.PropertyValue > 0 {
		args["property_value"] = app.PropertyValue
	}
	if app.MonthlyDebt > 0 {
		args["monthly_debt"] = app.MonthlyDebt
	}
	return args
}
