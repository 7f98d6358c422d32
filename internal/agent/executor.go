// Package agent implements the worker-side task executors. Each executor
// handles one role in the loan pipeline and advertises itself through an
// agent card. Task-level failures (bad payloads, unsupported types) are
// reported as failed results, not Go errors: a worker stays up no matter
// what a task contains.
package agent

import (
	"context"
	"fmt"

	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/protocol"
)

// Executor processes tasks for one agent role.
type Executor interface {
	Card() protocol.AgentCard
	Execute(ctx context.Context, req protocol.TaskRequest) (protocol.TaskResult, error)
}

// Assessor runs a loan assessment. *broker.Broker satisfies this; tests
// substitute fakes.
type Assessor interface {
	Assess(ctx context.Context, app domain.ApplicantSnapshot) (domain.Assessment, error)
}

// unsupportedType builds the failed result for a task type the executor does
// not advertise.
func unsupportedType(req protocol.TaskRequest, card protocol.AgentCard) protocol.TaskResult {
	return protocol.FailedResult(req.ID, fmt.Errorf("agent %s does not handle task type %q", card.Name, req.Type))
}

// decodeSnapshot extracts the applicant snapshot from a task payload.
func decodeSnapshot(req protocol.TaskRequest) (domain.ApplicantSnapshot, error) {
	var app domain.ApplicantSnapshot
	if len(req.Payload) == 0 {
		return app, fmt.Errorf("task %s has no payload", req.ID)
	}
	if err := req.Decode(&app); err != nil {
		return app, fmt.Errorf("decoding task %s payload: %w", req.ID, err)
	}
	return app, nil
}
