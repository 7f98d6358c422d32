package engine

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/jkaninda/mikopo/internal/domain"
)

func TestValidateSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		app     domain.ApplicantSnapshot
		wantErr bool
	}{
		{"complete", domain.ApplicantSnapshot{Name: "Alice", AnnualIncome: 90000, LoanAmount: 300000, PropertyValue: 400000, MonthlyDebt: 2000}, false},
		{"income only", domain.ApplicantSnapshot{Name: "Bob", AnnualIncome: 50000}, false},
		{"missing name", domain.ApplicantSnapshot{AnnualIncome: 50000}, true},
		{"blank name", domain.ApplicantSnapshot{Name: "   ", AnnualIncome: 50000}, true},
		{"no figures at all", domain.ApplicantSnapshot{Name: "Carol"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSnapshot(tc.app)
			if tc.wantErr && !errors.Is(err, ErrIncompleteData) {
				t.Errorf("ValidateSnapshot() = %v, want ErrIncompleteData", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateSnapshot() = %v, want nil", err)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	m := Metrics(domain.ApplicantSnapshot{
		Name:          "Alice",
		AnnualIncome:  120000,
		LoanAmount:    320000,
		PropertyValue: 400000,
		MonthlyDebt:   3000,
	})

	if got, want := m.DTIRatio, 0.30; math.Abs(got-want) > 1e-9 {
		t.Errorf("DTIRatio = %f, want %f", got, want)
	}
	if got, want := m.LTVRatio, 0.80; math.Abs(got-want) > 1e-9 {
		t.Errorf("LTVRatio = %f, want %f", got, want)
	}
	if m.AnnualIncome != 120000 {
		t.Errorf("AnnualIncome = %f, want 120000", m.AnnualIncome)
	}
}

func TestMetricsConservativeDefaults(t *testing.T) {
	// Missing income: DTI defaults to the worst case.
	noIncome := Metrics(domain.ApplicantSnapshot{Name: "A", MonthlyDebt: 500, LoanAmount: 100000, PropertyValue: 200000})
	if noIncome.DTIRatio != 1.0 {
		t.Errorf("DTIRatio without income = %f, want 1.0", noIncome.DTIRatio)
	}

	// Loan against an unvalued property: LTV defaults to the worst case.
	noValue := Metrics(domain.ApplicantSnapshot{Name: "A", AnnualIncome: 80000, LoanAmount: 100000})
	if noValue.LTVRatio != 1.0 {
		t.Errorf("LTVRatio without property value = %f, want 1.0", noValue.LTVRatio)
	}

	// No loan requested: LTV is not a concern.
	noLoan := Metrics(domain.ApplicantSnapshot{Name: "A", AnnualIncome: 80000})
	if noLoan.LTVRatio != 0 {
		t.Errorf("LTVRatio without loan = %f, want 0", noLoan.LTVRatio)
	}
}

func TestDecide(t *testing.T) {
	credit := func(score int) domain.CreditBureauResult {
		return domain.CreditBureauResult{Score: score}
	}

	tests := []struct {
		name      string
		metrics   domain.FinancialMetrics
		credit    domain.CreditBureauResult
		want      domain.Decision
		wantFlags []string
	}{
		{
			name:      "high dti declines",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.50, LTVRatio: 0.80},
			credit:    credit(700),
			want:      domain.DecisionDecline,
			wantFlags: []string{domain.FlagHighDTI},
		},
		{
			name:      "high ltv is conditional",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.30, LTVRatio: 0.97},
			credit:    credit(700),
			want:      domain.DecisionConditional,
			wantFlags: []string{domain.FlagHighLTV},
		},
		{
			name:      "clean application approves",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.28, LTVRatio: 0.80},
			credit:    credit(650),
			want:      domain.DecisionApprove,
			wantFlags: nil,
		},
		{
			name:      "borderline dti with low score declines",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.40, LTVRatio: 0.80},
			credit:    credit(600),
			want:      domain.DecisionDecline,
			wantFlags: []string{domain.FlagPoorCredit, domain.FlagElevatedDTI},
		},
		{
			name:      "elevated dti is conditional",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.40, LTVRatio: 0.80},
			credit:    credit(700),
			want:      domain.DecisionConditional,
			wantFlags: []string{domain.FlagElevatedDTI},
		},
		{
			name:      "dti boundary 0.43 is not a decline",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.43, LTVRatio: 0.80},
			credit:    credit(700),
			want:      domain.DecisionConditional,
			wantFlags: []string{domain.FlagElevatedDTI},
		},
		{
			name:      "dti boundary 0.36 approves",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.36, LTVRatio: 0.80},
			credit:    credit(700),
			want:      domain.DecisionApprove,
			wantFlags: nil,
		},
		{
			name:      "score boundary 620 passes",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.30, LTVRatio: 0.80},
			credit:    credit(620),
			want:      domain.DecisionApprove,
			wantFlags: nil,
		},
		{
			name:      "ltv boundary 0.95 approves",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.30, LTVRatio: 0.95},
			credit:    credit(700),
			want:      domain.DecisionApprove,
			wantFlags: nil,
		},
		{
			name:      "unknown score treated as poor credit",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.30, LTVRatio: 0.80},
			credit:    credit(0),
			want:      domain.DecisionDecline,
			wantFlags: []string{domain.FlagPoorCredit},
		},
		{
			name:      "decline still collects ltv flag",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.50, LTVRatio: 0.97},
			credit:    credit(600),
			want:      domain.DecisionDecline,
			wantFlags: []string{domain.FlagHighDTI, domain.FlagPoorCredit, domain.FlagHighLTV},
		},
		{
			name:      "both conditional flags coexist",
			metrics:   domain.FinancialMetrics{DTIRatio: 0.40, LTVRatio: 0.97},
			credit:    credit(700),
			want:      domain.DecisionConditional,
			wantFlags: []string{domain.FlagHighLTV, domain.FlagElevatedDTI},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision, flags := Decide(tc.metrics, tc.credit)
			if decision != tc.want {
				t.Errorf("Decide() decision = %q, want %q", decision, tc.want)
			}
			if !reflect.DeepEqual(flags, tc.wantFlags) {
				t.Errorf("Decide() flags = %v, want %v", flags, tc.wantFlags)
			}
		})
	}
}

// Decide must be pure: repeated calls with identical inputs agree.
func TestDecideDeterministic(t *testing.T) {
	metrics := domain.FinancialMetrics{DTIRatio: 0.40, LTVRatio: 0.97}
	credit := domain.CreditBureauResult{Score: 640}

	d1, f1 := Decide(metrics, credit)
	d2, f2 := Decide(metrics, credit)
	if d1 != d2 || !reflect.DeepEqual(f1, f2) {
		t.Errorf("Decide is not deterministic: (%q, %v) vs (%q, %v)", d1, f1, d2, f2)
	}
}
