package agent

import (
	"context"
	"log/slog"

	"github.com/jkaninda/mikopo/internal/protocol"
)

// UnderwritingExecutor runs the full risk assessment through the broker,
// which prefers the remote credit tools and falls back to the local engine.
type UnderwritingExecutor struct {
	assessor Assessor
	version  string
	logger   *slog.Logger
}

// NewUnderwritingExecutor creates the credit-risk executor.
func NewUnderwritingExecutor(assessor Assessor, version string, logger *slog.Logger) *UnderwritingExecutor {
	return &UnderwritingExecutor{assessor: assessor, version: version, logger: logger}
}

func (e *UnderwritingExecutor) Card() protocol.AgentCard {
	return protocol.AgentCard{
		Name:        "credit-risk",
		Description: "Assesses credit and default risk and renders the underwriting decision.",
		Version:     e.version,
		TaskTypes:   []protocol.TaskType{protocol.TaskAssessRisk},
	}
}

func (e *UnderwritingExecutor) Execute(ctx context.Context, req protocol.TaskRequest) (protocol.TaskResult, error) {
	if req.Type != protocol.TaskAssessRisk {
		return unsupportedType(req, e.Card()), nil
	}

	app, err := decodeSnapshot(req)
	if err != nil {
		return protocol.FailedResult(req.ID, err), nil
	}

	assessment, err := e.assessor.Assess(ctx, app)
	if err != nil {
		return protocol.FailedResult(req.ID, err), nil
	}

	e.logger.InfoContext(ctx, "risk assessed",
		slog.String("task_id", req.ID),
		slog.String("assessment_id", assessment.ID),
		slog.String("decision", string(assessment.Decision)),
		slog.String("source", string(assessment.Source)),
	)
	return protocol.CompletedResult(req.ID, assessment)
}
