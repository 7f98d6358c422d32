// Package engine derives financial metrics and applies the underwriting
// decision table. Decide is a pure function: the same inputs always produce
// the same decision and flags, regardless of which path supplied them.
package engine

import (
	"errors"
	"strings"

	"github.com/jkaninda/mikopo/internal/domain"
)

// ErrIncompleteData marks an application too malformed to assess.
// Partially missing fields get conservative defaults instead; this error is
// reserved for input that cannot support any decision at all.
var ErrIncompleteData = errors.New("incomplete application data")

// Decision thresholds. DTI and LTV are fractions (0.43 = 43%).
const (
	maxDTI        = 0.43
	elevatedDTI   = 0.36
	maxLTV        = 0.95
	minScore      = 620
	monthsPerYear = 12
)

// ValidateSnapshot rejects applications that cannot be assessed at all:
// no applicant name, or no financial figure of any kind. Everything less
// severe is handled by conservative metric defaults.
func ValidateSnapshot(app domain.ApplicantSnapshot) error {
	if strings.TrimSpace(app.Name) == "" {
		return ErrIncompleteData
	}
	if app.AnnualIncome <= 0 && app.LoanAmount <= 0 && app.PropertyValue <= 0 && app.MonthlyDebt <= 0 {
		return ErrIncompleteData
	}
	return nil
}

// Metrics derives the decision-table inputs from an application.
// Missing fields default conservatively: no income means the worst DTI,
// a loan against an unvalued property means the worst LTV.
func Metrics(app domain.ApplicantSnapshot) domain.FinancialMetrics {
	m := domain.FinancialMetrics{AnnualIncome: app.AnnualIncome}

	switch {
	case app.AnnualIncome <= 0:
		m.DTIRatio = 1.0
	default:
		m.DTIRatio = app.MonthlyDebt / (app.AnnualIncome / monthsPerYear)
	}

	switch {
	case app.LoanAmount <= 0:
		m.LTVRatio = 0
	case app.PropertyValue <= 0:
		m.LTVRatio = 1.0
	default:
		m.LTVRatio = app.LoanAmount / app.PropertyValue
	}

	return m
}

// Decide applies the ordered decision table. Decline conditions dominate:
// once any decline rule fires the outcome is DECLINE, but later rules still
// run so that every applicable flag is attached. An unknown credit score
// (zero or negative) is treated as failing the score floor.
func Decide(metrics domain.FinancialMetrics, credit domain.CreditBureauResult) (domain.Decision, []string) {
	decision := domain.DecisionApprove
	var flags []string

	if metrics.DTIRatio > maxDTI {
		decision = domain.DecisionDecline
		flags = append(flags, domain.FlagHighDTI)
	}

	if credit.Score < minScore {
		decision = domain.DecisionDecline
		flags = append(flags, domain.FlagPoorCredit)
	}

	if metrics.LTVRatio > maxLTV {
		flags = append(flags, domain.FlagHighLTV)
		if decision != domain.DecisionDecline {
			decision = domain.DecisionConditional
		}
	}

	if metrics.DTIRatio > elevatedDTI && metrics.DTIRatio <= maxDTI {
		flags = append(flags, domain.FlagElevatedDTI)
		if decision != domain.DecisionDecline {
			decision = domain.DecisionConditional
		}
	}

	return decision, flags
}
