// Package protocol defines the task messages exchanged between the
// coordinator and the agent workers. All messages are JSON-encoded; task
// payloads stay raw so each agent decodes only the shape it understands.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the kind of work a task request carries.
type TaskType string

const (
	TaskValidateDocuments TaskType = "loan.validate_documents"
	TaskAssessRisk        TaskType = "loan.assess_risk"
	TaskComplianceReview  TaskType = "loan.compliance_review"
	TaskRouteApplication  TaskType = "loan.route_application"
)

// TaskStatus is the terminal status of a processed task.
type TaskStatus string

const (
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// AgentCard is the discovery document each worker serves at
// /.well-known/agent.json.
type AgentCard struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Version     string     `json:"version"`
	URL         string     `json:"url,omitempty"`
	TaskTypes   []TaskType `json:"supported_task_types"`
}

// Supports reports whether the card advertises the given task type.
func (c AgentCard) Supports(taskType TaskType) bool {
	for _, t := range c.TaskTypes {
		if t == taskType {
			return true
		}
	}
	return false
}

// TaskRequest is submitted to a worker's /tasks endpoint.
type TaskRequest struct {
	ID          string          `json:"id"`
	Type        TaskType        `json:"type"`
	SessionID   string          `json:"session_id,omitempty"` // Correlates tasks of one application.
	Payload     json.RawMessage `json:"payload,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// NewTaskRequest creates a TaskRequest with a fresh ID and current timestamp.
func NewTaskRequest(taskType TaskType, sessionID string, payload any) (TaskRequest, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return TaskRequest{}, err
		}
		raw = data
	}
	return TaskRequest{
		ID:          uuid.New().String(),
		Type:        taskType,
		SessionID:   sessionID,
		Payload:     raw,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the Payload into the given target.
func (r TaskRequest) Decode(target any) error {
	return json.Unmarshal(r.Payload, target)
}

// TaskResult is the worker's answer to a TaskRequest.
type TaskResult struct {
	TaskID      string          `json:"task_id"`
	Status      TaskStatus      `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Error       string          `json:"error,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// CompletedResult builds a successful TaskResult carrying payload.
func CompletedResult(taskID string, payload any) (TaskResult, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return TaskResult{}, err
		}
		raw = data
	}
	return TaskResult{
		TaskID:      taskID,
		Status:      StatusCompleted,
		Payload:     raw,
		CompletedAt: time.Now().UTC(),
	}, nil
}

// FailedResult builds a failed TaskResult carrying the error message.
func FailedResult(taskID string, err error) TaskResult {
	return TaskResult{
		TaskID:      taskID,
		Status:      StatusFailed,
		Error:       err.Error(),
		CompletedAt: time.Now().UTC(),
	}
}

// Decode unmarshals the result Payload into the given target.
func (r TaskResult) Decode(target any) error {
	return json.Unmarshal(r.Payload, target)
}
