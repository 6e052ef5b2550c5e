// Package scoring holds the pure derivation functions for compliance records.
// Everything here is deterministic and side-effect free: identical inputs
// always produce identical outputs, so derived scores are recomputed on read
// instead of persisted.
package scoring

import (
	"math"

	dErrors "complyd/pkg/domain-errors"
)

// RiskLevel buckets a risk score for display and filtering.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
)

// RiskScore computes likelihood x impact. Both inputs must be in [1,5]; the
// result lands in [1,25].
func RiskScore(likelihood, impact int) (int, error) {
	if likelihood < 1 || likelihood > 5 {
		return 0, dErrors.Newf(dErrors.CodeValidation, "likelihood %d out of range [1,5]", likelihood)
	}
	if impact < 1 || impact > 5 {
		return 0, dErrors.Newf(dErrors.CodeValidation, "impact %d out of range [1,5]", impact)
	}
	return likelihood * impact, nil
}

// RiskLevelFor buckets a risk score: >=20 critical, >=12 high, >=6 medium,
// else low.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= 20:
		return RiskCritical
	case score >= 12:
		return RiskHigh
	case score >= 6:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ComplianceScore computes implemented/total as a percentage rounded to the
// nearest integer.
func ComplianceScore(implemented, total int) (int, error) {
	if total <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "total controls must be positive")
	}
	if implemented < 0 || implemented > total {
		return 0, dErrors.Newf(dErrors.CodeValidation,
			"implemented controls %d out of range [0,%d]", implemented, total)
	}
	return int(math.Round(float64(implemented) / float64(total) * 100)), nil
}

// Grade maps a compliance score to a letter grade. 80 and 60 anchor A and B;
// the remaining tiers fill the range below 60 down to F.
func Grade(score int) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	case score >= 20:
		return "D"
	default:
		return "F"
	}
}

// Layer is one dependency layer's contribution to cross-layer risk.
type Layer struct {
	Count          int
	AvgCriticality float64
	RiskWeight     float64
}

// CrossLayerLevel buckets an aggregate cross-layer risk value.
type CrossLayerLevel string

const (
	CrossLayerHigh    CrossLayerLevel = "high"
	CrossLayerMedium  CrossLayerLevel = "medium"
	CrossLayerLow     CrossLayerLevel = "low"
	CrossLayerMinimal CrossLayerLevel = "minimal"
)

// CrossLayerRisk sums count * avg criticality * weight across layers.
func CrossLayerRisk(layers []Layer) float64 {
	var total float64
	for _, l := range layers {
		total += float64(l.Count) * l.AvgCriticality * l.RiskWeight
	}
	return total
}

// CrossLayerLevelFor buckets the aggregate: >50 high, >=20 medium, >=10 low,
// otherwise minimal. A total of exactly 50 is medium, exactly 10 is low.
func CrossLayerLevelFor(total float64) CrossLayerLevel {
	switch {
	case total > 50:
		return CrossLayerHigh
	case total >= 20:
		return CrossLayerMedium
	case total >= 10:
		return CrossLayerLow
	default:
		return CrossLayerMinimal
	}
}
