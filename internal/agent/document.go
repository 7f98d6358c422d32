package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/engine"
	"github.com/jkaninda/mikopo/internal/protocol"
)

// ValidationReport is the document agent's result payload.
type ValidationReport struct {
	ApplicantName string                  `json:"applicant_name"`
	Valid         bool                    `json:"valid"`
	Reason        string                  `json:"reason,omitempty"`
	Metrics       domain.FinancialMetrics `json:"metrics"`
}

// DocumentExecutor validates application data and derives the financial
// metrics the downstream agents work from.
type DocumentExecutor struct {
	version string
	logger  *slog.Logger
}

// NewDocumentExecutor creates the document validation executor.
func NewDocumentExecutor(version string, logger *slog.Logger) *DocumentExecutor {
	return &DocumentExecutor{version: version, logger: logger}
}

func (e *DocumentExecutor) Card() protocol.AgentCard {
	return protocol.AgentCard{
		Name:        "document",
		Description: "Validates loan application documents and derives financial metrics.",
		Version:     e.version,
		TaskTypes:   []protocol.TaskType{protocol.TaskValidateDocuments},
	}
}

func (e *DocumentExecutor) Execute(ctx context.Context, req protocol.TaskRequest) (protocol.TaskResult, error) {
	if req.Type != protocol.TaskValidateDocuments {
		return unsupportedType(req, e.Card()), nil
	}

	app, err := decodeSnapshot(req)
	if err != nil {
		return protocol.FailedResult(req.ID, err), nil
	}

	report := ValidationReport{ApplicantName: app.Name, Valid: true}
	if err := engine.ValidateSnapshot(app); err != nil {
		if !errors.Is(err, engine.ErrIncompleteData) {
			return protocol.FailedResult(req.ID, err), nil
		}
		report.Valid = false
		report.Reason = err.Error()
	} else {
		report.Metrics = engine.Metrics(app)
	}

	e.logger.InfoContext(ctx, "documents validated",
		slog.String("task_id", req.ID),
		slog.String("applicant", app.Name),
		slog.Bool("valid", report.Valid),
	)
	return protocol.CompletedResult(req.ID, report)
}
