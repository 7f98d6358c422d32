// Package credit implements the deterministic credit bureau and default-risk
// model backing both the tool server and the broker's local fallback.
// Both paths produce byte-identical results for the same applicant, so a
// fallback never changes the shape or content of an assessment.
package credit

import (
	"hash/fnv"
	"strings"

	"github.com/jkaninda/mikopo/internal/domain"
)

const (
	scoreFloor = 300
	scoreCeil  = 850
)

// Bureau is a deterministic stand-in for an external credit bureau.
// Scores are derived from a stable hash of the applicant name, so repeated
// lookups for the same name always agree.
type Bureau struct{}

// NewBureau creates a Bureau.
func NewBureau() *Bureau {
	return &Bureau{}
}

// Lookup returns the bureau record for the named applicant.
func (b *Bureau) Lookup(name string) domain.CreditBureauResult {
	h := nameHash(name)
	score := 580 + int(h%270)

	// Well-known demo applicants get stable score floors.
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "john"):
		score = maxInt(score, 720)
	case strings.Contains(lower, "jane"):
		score = maxInt(score, 680)
	}

	utilization := float64(h % 45)
	if utilization < 5 {
		utilization = 5
	}
	years := float64(h % 15)
	if years < 1 {
		years = 1
	}

	return domain.CreditBureauResult{
		Score:              score,
		PaymentHistory:     historyBand(score),
		UtilizationPct:     utilization,
		HistoryLengthYears: years,
	}
}

// historyBand maps a score to its qualitative payment history band.
func historyBand(score int) domain.PaymentHistory {
	switch {
	case score >= 750:
		return domain.PaymentExcellent
	case score >= 700:
		return domain.PaymentGood
	case score >= 650:
		return domain.PaymentFair
	default:
		return domain.PaymentPoor
	}
}

// nameHash returns a stable FNV-1a hash of the normalized applicant name.
func nameHash(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	return h.Sum32()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
