package credit

import (
	"github.com/jkaninda/mikopo/internal/domain"
)

// Risk weights. DTI dominates after creditworthiness; income acts as a
// small stabilizer for low-income applicants.
const (
	weightCredit = 0.35
	weightDTI    = 0.30
	weightLTV    = 0.20
	weightIncome = 0.15
)

// Model is a deterministic default-risk model. It is a weighted blend of
// normalized credit score, debt-to-income, loan-to-value, and income level,
// clamped to (0, 1) so a probability of exactly 0 or 1 is never reported.
type Model struct{}

// NewModel creates a Model.
func NewModel() *Model {
	return &Model{}
}

// Predict returns the default-risk prediction for the given metrics and
// bureau score. The same inputs always produce the same prediction.
func (m *Model) Predict(metrics domain.FinancialMetrics, score int) domain.RiskPrediction {
	creditNorm := clamp(float64(score-scoreFloor)/float64(scoreCeil-scoreFloor), 0, 1)

	dtiRisk := clamp(metrics.DTIRatio/0.60, 0, 1)
	ltvRisk := clamp(metrics.LTVRatio, 0, 1)
	incomeFactor := clamp((100000-metrics.AnnualIncome)/80000, 0, 1)

	p := weightCredit*(1-creditNorm) +
		weightDTI*dtiRisk +
		weightLTV*ltvRisk +
		weightIncome*incomeFactor
	p = clamp(p, 0.01, 0.99)

	return domain.RiskPrediction{
		DefaultProbability: p,
		Category:           riskBand(p),
		ModelConfidence:    0.95 - 0.35*p,
	}
}

// riskBand buckets a probability into a risk category.
func riskBand(p float64) domain.RiskCategory {
	switch {
	case p < 0.25:
		return domain.RiskLow
	case p < 0.50:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
