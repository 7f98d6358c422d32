package credit

import (
	"testing"

	"github.com/jkaninda/mikopo/internal/domain"
)

func TestBureauDeterministic(t *testing.T) {
	b := NewBureau()

	first := b.Lookup("Alice Example")
	second := b.Lookup("Alice Example")
	if first != second {
		t.Errorf("repeated lookups differ: %+v vs %+v", first, second)
	}

	// Normalization: case and surrounding whitespace must not matter.
	if got := b.Lookup("  alice example "); got != first {
		t.Errorf("normalized lookup differs: %+v vs %+v", got, first)
	}
}

func TestBureauRanges(t *testing.T) {
	b := NewBureau()
	names := []string{"Alice", "Bob Carter", "Chidi Okafor", "Dana", "Esperanza Ruiz", "x"}

	for _, name := range names {
		r := b.Lookup(name)
		if r.Score < 580 || r.Score > 850 {
			t.Errorf("Lookup(%q).Score = %d, want within [580, 850]", name, r.Score)
		}
		if r.UtilizationPct < 5 || r.UtilizationPct > 44 {
			t.Errorf("Lookup(%q).UtilizationPct = %v, want within [5, 44]", name, r.UtilizationPct)
		}
		if r.HistoryLengthYears < 1 || r.HistoryLengthYears > 14 {
			t.Errorf("Lookup(%q).HistoryLengthYears = %v, want within [1, 14]", name, r.HistoryLengthYears)
		}
	}
}

func TestBureauNameFloors(t *testing.T) {
	b := NewBureau()

	if got := b.Lookup("John Smith").Score; got < 720 {
		t.Errorf("john floor: score = %d, want >= 720", got)
	}
	if got := b.Lookup("Jane Doe").Score; got < 680 {
		t.Errorf("jane floor: score = %d, want >= 680", got)
	}
}

func TestHistoryBand(t *testing.T) {
	tests := []struct {
		score int
		want  domain.PaymentHistory
	}{
		{780, domain.PaymentExcellent},
		{750, domain.PaymentExcellent},
		{749, domain.PaymentGood},
		{700, domain.PaymentGood},
		{699, domain.PaymentFair},
		{650, domain.PaymentFair},
		{649, domain.PaymentPoor},
		{580, domain.PaymentPoor},
	}
	for _, tc := range tests {
		if got := historyBand(tc.score); got != tc.want {
			t.Errorf("historyBand(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestModelBounds(t *testing.T) {
	m := NewModel()

	// Worst case input must still stay inside (0, 1).
	worst := m.Predict(domain.FinancialMetrics{DTIRatio: 2.0, LTVRatio: 1.5, AnnualIncome: 0}, 300)
	if worst.DefaultProbability < 0.01 || worst.DefaultProbability > 0.99 {
		t.Errorf("worst-case probability = %f, want within [0.01, 0.99]", worst.DefaultProbability)
	}
	if worst.Category != domain.RiskHigh {
		t.Errorf("worst-case category = %q, want high", worst.Category)
	}

	best := m.Predict(domain.FinancialMetrics{DTIRatio: 0.05, LTVRatio: 0.1, AnnualIncome: 500000}, 850)
	if best.DefaultProbability < 0.01 || best.DefaultProbability > 0.99 {
		t.Errorf("best-case probability = %f, want within [0.01, 0.99]", best.DefaultProbability)
	}
	if best.Category != domain.RiskLow {
		t.Errorf("best-case category = %q, want low", best.Category)
	}
}

func TestModelDeterministic(t *testing.T) {
	m := NewModel()
	metrics := domain.FinancialMetrics{DTIRatio: 0.35, LTVRatio: 0.80, AnnualIncome: 90000}

	first := m.Predict(metrics, 700)
	second := m.Predict(metrics, 700)
	if first != second {
		t.Errorf("repeated predictions differ: %+v vs %+v", first, second)
	}
}

func TestModelMonotonicInScore(t *testing.T) {
	m := NewModel()
	metrics := domain.FinancialMetrics{DTIRatio: 0.30, LTVRatio: 0.80, AnnualIncome: 80000}

	low := m.Predict(metrics, 600)
	high := m.Predict(metrics, 800)
	if high.DefaultProbability >= low.DefaultProbability {
		t.Errorf("higher score should lower risk: score 800 = %f, score 600 = %f",
			high.DefaultProbability, low.DefaultProbability)
	}
}

func TestModelConfidenceRange(t *testing.T) {
	m := NewModel()
	for _, score := range []int{300, 620, 700, 850} {
		p := m.Predict(domain.FinancialMetrics{DTIRatio: 0.40, LTVRatio: 0.9, AnnualIncome: 60000}, score)
		if p.ModelConfidence < 0.60 || p.ModelConfidence > 0.95 {
			t.Errorf("confidence = %f for score %d, want within [0.60, 0.95]", p.ModelConfidence, score)
		}
	}
}

func TestRiskBand(t *testing.T) {
	tests := []struct {
		p    float64
		want domain.RiskCategory
	}{
		{0.10, domain.RiskLow},
		{0.249, domain.RiskLow},
		{0.25, domain.RiskMedium},
		{0.49, domain.RiskMedium},
		{0.50, domain.RiskHigh},
		{0.99, domain.RiskHigh},
	}
	for _, tc := range tests {
		if got := riskBand(tc.p); got != tc.want {
			t.Errorf("riskBand(%f) = %q, want %q", tc.p, got, tc.want)
		}
	}
}
