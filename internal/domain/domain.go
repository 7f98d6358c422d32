// Package domain defines the underwriting data model shared across the system.
// All wire-facing types carry JSON tags matching the credit tool payload format.
package domain

import (
	"time"
)

// Decision is the final underwriting outcome for an application.
type Decision string

const (
	DecisionApprove     Decision = "APPROVE"
	DecisionConditional Decision = "CONDITIONAL_APPROVAL"
	DecisionDecline     Decision = "DECLINE"
)

// Risk flags attached to an Assessment. A flag explains why a decision
// was downgraded; flags accumulate independently of the final decision.
const (
	FlagHighDTI     = "HIGH_DTI_RISK"
	FlagHighLTV     = "HIGH_LTV_RISK"
	FlagPoorCredit  = "POOR_CREDIT"
	FlagElevatedDTI = "ELEVATED_DTI"
)

// PaymentHistory is the bureau's qualitative payment record band.
type PaymentHistory string

const (
	PaymentExcellent PaymentHistory = "excellent"
	PaymentGood      PaymentHistory = "good"
	PaymentFair      PaymentHistory = "fair"
	PaymentPoor      PaymentHistory = "poor"
)

// RiskCategory buckets a default probability into an operator-friendly band.
type RiskCategory string

const (
	RiskLow    RiskCategory = "low"
	RiskMedium RiskCategory = "medium"
	RiskHigh   RiskCategory = "high"
)

// Source records which execution path produced an assessment.
type Source string

const (
	SourceRemote Source = "remote" // Served by the credit tool server.
	SourceLocal  Source = "local"  // Served by the in-process fallback.
)

// ApplicantSnapshot is the normalized application input. Zero values mean
// the field was absent; consumers must apply conservative defaults rather
// than treating missing data as favorable.
type ApplicantSnapshot struct {
	Name          string  `json:"applicant_name"`
	AnnualIncome  float64 `json:"annual_income,omitempty"`
	LoanAmount    float64 `json:"loan_amount,omitempty"`
	PropertyValue float64 `json:"property_value,omitempty"`
	MonthlyDebt   float64 `json:"monthly_debt,omitempty"`
}

// CreditBureauResult is the bureau lookup outcome for one applicant.
type CreditBureauResult struct {
	Score              int            `json:"credit_score"`
	PaymentHistory     PaymentHistory `json:"payment_history"`
	UtilizationPct     float64        `json:"utilization_pct"`
	HistoryLengthYears float64        `json:"history_length_years"`
}

// RiskPrediction is the default-risk model output.
type RiskPrediction struct {
	DefaultProbability float64      `json:"default_probability"`
	Category           RiskCategory `json:"risk_category"`
	ModelConfidence    float64      `json:"model_confidence"`
}

// FinancialMetrics are the derived ratios the decision table operates on.
// Ratios are fractions, not percentages (0.43 = 43%).
type FinancialMetrics struct {
	DTIRatio     float64 `json:"dti_ratio"`
	LTVRatio     float64 `json:"ltv_ratio"`
	AnnualIncome float64 `json:"annual_income"`
}

// AssessmentBundle is the combined payload produced by the
// comprehensiveAssessment tool: bureau data, risk prediction, and derived
// metrics for one applicant. The decision itself is stamped by the caller
// so that remote and local paths yield identical assessment shapes.
type AssessmentBundle struct {
	ApplicantName string             `json:"applicant_name"`
	Credit        CreditBureauResult `json:"credit"`
	Risk          RiskPrediction     `json:"risk"`
	Metrics       FinancialMetrics   `json:"metrics"`
}

// Assessment is the final underwriting verdict returned to callers.
type Assessment struct {
	ID            string             `json:"id"`
	ApplicantName string             `json:"applicant_name"`
	Credit        CreditBureauResult `json:"credit"`
	Risk          RiskPrediction     `json:"risk"`
	Metrics       FinancialMetrics   `json:"metrics"`
	Decision      Decision           `json:"decision"`
	Flags         []string           `json:"flags,omitempty"`
	Source        Source             `json:"source"`
	AssessedAt    time.Time          `json:"assessed_at"`
}

// ToolDescriptor describes one tool advertised by a tool server.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ProcessState is the supervisor's view of one agent worker process.
type ProcessState string

const (
	StateStopped  ProcessState = "stopped"
	StateStarting ProcessState = "starting"
	StateRunning  ProcessState = "running"
	StateDegraded ProcessState = "degraded" // Process alive but port unreachable.
)

// ProcessRecord is a point-in-time snapshot of a supervised worker.
type ProcessRecord struct {
	Name      string       `json:"name"`
	PID       int          `json:"pid,omitempty"`
	Port      int          `json:"port"`
	State     ProcessState `json:"state"`
	LogPath   string       `json:"log_path,omitempty"`
	StartedAt time.Time    `json:"started_at,omitempty"`
}
