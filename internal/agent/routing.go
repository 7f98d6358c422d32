package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/engine"
	"github.com/jkaninda/mikopo/internal/protocol"
)

// RoutingOutcome is the routing agent's result payload: the application's
// journey through validation, assessment, and compliance review.
type RoutingOutcome struct {
	Validation ValidationReport  `json:"validation"`
	Assessment domain.Assessment `json:"assessment"`
	Compliance ComplianceReport  `json:"compliance"`
}

// RoutingExecutor drives a full application through the pipeline: document
// validation, risk assessment, then compliance review of the decision.
type RoutingExecutor struct {
	document   *DocumentExecutor
	assessor   Assessor
	compliance *ComplianceExecutor
	version    string
	logger     *slog.Logger
}

// NewRoutingExecutor creates the routing executor.
func NewRoutingExecutor(assessor Assessor, version string, logger *slog.Logger) *RoutingExecutor {
	return &RoutingExecutor{
		document:   NewDocumentExecutor(version, logger),
		assessor:   assessor,
		compliance: NewComplianceExecutor(version, logger),
		version:    version,
		logger:     logger,
	}
}

func (e *RoutingExecutor) Card() protocol.AgentCard {
	return protocol.AgentCard{
		Name:        "routing",
		Description: "Routes loan applications through validation, assessment, and compliance review.",
		Version:     e.version,
		TaskTypes:   []protocol.TaskType{protocol.TaskRouteApplication},
	}
}

func (e *RoutingExecutor) Execute(ctx context.Context, req protocol.TaskRequest) (protocol.TaskResult, error) {
	if req.Type != protocol.TaskRouteApplication {
		return unsupportedType(req, e.Card()), nil
	}

	app, err := decodeSnapshot(req)
	if err != nil {
		return protocol.FailedResult(req.ID, err), nil
	}

	var outcome RoutingOutcome

	// Stage 1: validate documents.
	outcome.Validation = ValidationReport{ApplicantName: app.Name, Valid: true}
	if err := engine.ValidateSnapshot(app); err != nil {
		return protocol.FailedResult(req.ID, fmt.Errorf("document validation: %w", err)), nil
	}
	outcome.Validation.Metrics = engine.Metrics(app)

	// Stage 2: assess risk.
	assessment, err := e.assessor.Assess(ctx, app)
	if err != nil {
		return protocol.FailedResult(req.ID, fmt.Errorf("risk assessment: %w", err)), nil
	}
	outcome.Assessment = assessment

	// Stage 3: compliance review.
	outcome.Compliance = e.compliance.Review(assessment)

	e.logger.InfoContext(ctx, "application routed",
		slog.String("task_id", req.ID),
		slog.String("applicant", app.Name),
		slog.String("decision", string(assessment.Decision)),
		slog.Bool("compliant", outcome.Compliance.Compliant),
	)
	return protocol.CompletedResult(req.ID, outcome)
}
