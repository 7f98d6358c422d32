package agent

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/engine"
	"github.com/jkaninda/mikopo/internal/protocol"
)

// ComplianceReport is the compliance agent's result payload.
type ComplianceReport struct {
	AssessmentID     string          `json:"assessment_id"`
	Compliant        bool            `json:"compliant"`
	ExpectedDecision domain.Decision `json:"expected_decision"`
	ExpectedFlags    []string        `json:"expected_flags,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

// ComplianceExecutor re-derives the decision from an assessment's inputs and
// verifies the recorded decision matches. A mismatch means the assessment
// was tampered with or produced by a stale policy.
type ComplianceExecutor struct {
	version string
	logger  *slog.Logger
}

// NewComplianceExecutor creates the compliance review executor.
func NewComplianceExecutor(version string, logger *slog.Logger) *ComplianceExecutor {
	return &ComplianceExecutor{version: version, logger: logger}
}

func (e *ComplianceExecutor) Card() protocol.AgentCard {
	return protocol.AgentCard{
		Name:        "compliance",
		Description: "Verifies that recorded underwriting decisions match policy.",
		Version:     e.version,
		TaskTypes:   []protocol.TaskType{protocol.TaskComplianceReview},
	}
}

func (e *ComplianceExecutor) Execute(ctx context.Context, req protocol.TaskRequest) (protocol.TaskResult, error) {
	if req.Type != protocol.TaskComplianceReview {
		return unsupportedType(req, e.Card()), nil
	}

	var assessment domain.Assessment
	if len(req.Payload) == 0 {
		return protocol.FailedResult(req.ID, fmt.Errorf("task %s has no payload", req.ID)), nil
	}
	if err := req.Decode(&assessment); err != nil {
		return protocol.FailedResult(req.ID, fmt.Errorf("decoding task %s payload: %w", req.ID, err)), nil
	}

	report := e.Review(assessment)

	e.logger.InfoContext(ctx, "compliance reviewed",
		slog.String("task_id", req.ID),
		slog.String("assessment_id", assessment.ID),
		slog.Bool("compliant", report.Compliant),
	)
	return protocol.CompletedResult(req.ID, report)
}

// Review re-runs the decision table against the assessment's recorded inputs.
func (e *ComplianceExecutor) Review(assessment domain.Assessment) ComplianceReport {
	decision, flags := engine.Decide(assessment.Metrics, assessment.Credit)

	report := ComplianceReport{
		AssessmentID:     assessment.ID,
		Compliant:        true,
		ExpectedDecision: decision,
		ExpectedFlags:    flags,
	}
	if decision != assessment.Decision {
		report.Compliant = false
		report.Notes = fmt.Sprintf("recorded decision %s, policy requires %s", assessment.Decision, decision)
	} else if !reflect.DeepEqual(flags, assessment.Flags) {
		report.Compliant = false
		report.Notes = fmt.Sprintf("recorded flags %v, policy requires %v", assessment.Flags, flags)
	}
	return report
}
