// Package toolserver implements the credit tool server: an MCP server over
// stdio exposing the bureau lookup, risk model, and combined assessment as
// callable tools. Every handler validates its arguments against the tool's
// declared JSON schema before touching the domain layer, so malformed input
// is reported to the caller instead of crashing the process.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xeipuuv/gojsonschema"

	"github.com/jkaninda/mikopo/internal/credit"
	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/engine"
)

// Tool names as advertised to clients.
const (
	ToolGetCreditScore     = "getCreditScore"
	ToolPredictDefaultRisk = "predictDefaultRisk"
	ToolComprehensive      = "comprehensiveAssessment"
)

// Server wraps the MCP server and the domain services behind the tools.
type Server struct {
	mcp    *server.MCPServer
	bureau *credit.Bureau
	model  *credit.Model
	logger *slog.Logger
}

// New creates the credit tool server with all tools registered.
func New(version string, logger *slog.Logger) *Server {
	s := &Server{
		bureau: credit.NewBureau(),
		model:  credit.NewModel(),
		logger: logger,
	}

	s.mcp = server.NewMCPServer(
		"mikopo-credit",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Credit bureau and default-risk tools for mortgage underwriting. "+
			"Call comprehensiveAssessment for the combined bureau, risk, and metrics payload."),
	)

	s.mcp.AddTool(mcp.NewTool(ToolGetCreditScore,
		mcp.WithDescription("Look up the credit bureau record for an applicant."),
		mcp.WithString("applicant_name", mcp.Required(), mcp.Description("Full applicant name.")),
	), s.handleGetCreditScore)

	s.mcp.AddTool(mcp.NewTool(ToolPredictDefaultRisk,
		mcp.WithDescription("Predict the default probability for an applicant's financial profile."),
		mcp.WithString("applicant_name", mcp.Required(), mcp.Description("Full applicant name.")),
		mcp.WithNumber("annual_income", mcp.Description("Gross annual income in USD.")),
		mcp.WithNumber("loan_amount", mcp.Description("Requested loan amount in USD.")),
		mcp.WithNumber("property_value", mcp.Description("Appraised property value in USD.")),
		mcp.WithNumber("monthly_debt", mcp.Description("Total monthly debt obligations in USD.")),
	), s.handlePredictDefaultRisk)

	s.mcp.AddTool(mcp.NewTool(ToolComprehensive,
		mcp.WithDescription("Run the full credit assessment: bureau record, derived metrics, and risk prediction."),
		mcp.WithString("applicant_name", mcp.Required(), mcp.Description("Full applicant name.")),
		mcp.WithNumber("annual_income", mcp.Description("Gross annual income in USD.")),
		mcp.WithNumber("loan_amount", mcp.Description("Requested loan amount in USD.")),
		mcp.WithNumber("property_value", mcp.Description("Appraised property value in USD.")),
		mcp.WithNumber("monthly_debt", mcp.Description("Total monthly debt obligations in USD.")),
	), s.handleComprehensive)

	return s
}

// ServeStdio runs the server on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	s.logger.Info("credit tool server starting", slog.String("transport", "stdio"))
	return server.ServeStdio(s.mcp)
}

// MCPServer exposes the underlying server, used to mount additional transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// --- Handlers ---

func (s *Server) handleGetCreditScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	if err := validateArgs(creditScoreSchema, args); err != nil {
		return invalidInput(err), nil
	}

	name, _ := args["applicant_name"].(string)
	record := s.bureau.Lookup(name)

	s.logger.InfoContext(ctx, "credit score served",
		slog.String("tool", ToolGetCreditScore),
		slog.Int("score", record.Score),
	)
	return jsonResult(record)
}

func (s *Server) handlePredictDefaultRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	if err := validateArgs(riskSchema, args); err != nil {
		return invalidInput(err), nil
	}

	app := snapshotFromArgs(args)
	metrics := engine.Metrics(app)
	record := s.bureau.Lookup(app.Name)
	prediction := s.model.Predict(metrics, record.Score)

	s.logger.InfoContext(ctx, "default risk served",
		slog.String("tool", ToolPredictDefaultRisk),
		slog.Float64("probability", prediction.DefaultProbability),
		slog.String("category", string(prediction.Category)),
	)
	return jsonResult(prediction)
}

func (s *Server) handleComprehensive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	if err := validateArgs(riskSchema, args); err != nil {
		return invalidInput(err), nil
	}

	app := snapshotFromArgs(args)
	bundle := Assess(s.bureau, s.model, app)

	s.logger.InfoContext(ctx, "comprehensive assessment served",
		slog.String("tool", ToolComprehensive),
		slog.Int("score", bundle.Credit.Score),
		slog.String("risk_category", string(bundle.Risk.Category)),
	)
	return jsonResult(bundle)
}

// Assess builds the combined assessment payload. The broker's local fallback
// uses this same function, which is what makes the two paths agree.
func Assess(bureau *credit.Bureau, model *credit.Model, app domain.ApplicantSnapshot) domain.AssessmentBundle {
	metrics := engine.Metrics(app)
	record := bureau.Lookup(app.Name)
	return domain.AssessmentBundle{
		ApplicantName: app.Name,
		Credit:        record,
		Risk:          model.Predict(metrics, record.Score),
		Metrics:       metrics,
	}
}

// snapshotFromArgs builds an ApplicantSnapshot from validated tool arguments.
// Schema validation has already guaranteed types, so the assertions are safe.
func snapshotFromArgs(args map[string]any) domain.ApplicantSnapshot {
	return domain.ApplicantSnapshot{
		Name:          stringArg(args, "applicant_name"),
		AnnualIncome:  numberArg(args, "annual_income"),
		LoanAmount:    numberArg(args, "loan_amount"),
		PropertyValue: numberArg(args, "property_value"),
		MonthlyDebt:   numberArg(args, "monthly_debt"),
	}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func numberArg(args map[string]any, key string) float64 {
	v, _ := args[key].(float64)
	return v
}

// validateArgs checks tool arguments against the declared JSON schema.
func validateArgs(schema map[string]any, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// invalidInput reports a validation failure to the caller as a tool error
// result. The Go error stays nil so the session itself is not torn down.
func invalidInput(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("invalid input: " + err.Error())
}

// jsonResult marshals v as the tool's text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
