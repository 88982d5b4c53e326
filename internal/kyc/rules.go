package kyc

import (
	"fmt"
	"slices"
)

// Thresholds are the tier and score band boundaries. Defaults are documented
// in DefaultThresholds; all are overridable from the policy file.
type Thresholds struct {
	EnhancedValue  float64
	StandardValue  float64
	LowMinScore    int
	MediumMinScore int
	HighMinScore   int
}

// DefaultThresholds: enhanced above 100,000, standard from 10,000; scores
// 80..100 low, 60..79 medium, 40..59 high, below 40 critical.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EnhancedValue:  100_000,
		StandardValue:  10_000,
		LowMinScore:    80,
		MediumMinScore: 60,
		HighMinScore:   40,
	}
}

// DetermineTier is a pure rule: business owners and high value subjects get
// enhanced checks.
func DetermineTier(sc SubjectContext, th Thresholds) Tier {
	switch {
	case sc.IsBusinessOwner || sc.ExpectedTransactionValue > th.EnhancedValue:
		return TierEnhanced
	case sc.ExpectedTransactionValue >= th.StandardValue:
		return TierStandard
	default:
		return TierBasic
	}
}

var tierOrder = []Tier{TierBasic, TierStandard, TierEnhanced}

// DefaultDocuments lists the documents each tier adds on top of the tier
// below it.
func DefaultDocuments() map[Tier][]string {
	return map[Tier][]string{
		TierBasic:    {"government_id", "selfie"},
		TierStandard: {"proof_of_address"},
		TierEnhanced: {"source_of_funds", "bank_statement"},
	}
}

// RequiredDocuments accumulates additions up to tier, so a higher tier's set
// always contains the lower tier's.
func RequiredDocuments(tier Tier, additions map[Tier][]string) []string {
	var docs []string
	for _, t := range tierOrder {
		for _, d := range additions[t] {
			if !slices.Contains(docs, d) {
				docs = append(docs, d)
			}
		}
		if t == tier {
			break
		}
	}
	return docs
}

const (
	penaltyOverallConsider     = 20
	penaltyOverallUnidentified = 50
	penaltySubConsider         = 15
	penaltySubRejected         = 30

	FactorManualReview = "Manual review required"
	FactorFailed       = "Identity verification failed"
	FactorUnidentified = "Identity could not be established"
)

// ScoreVerificationResult converts a provider result into a risk score. A
// clear result with no adverse sub-checks scores 100.
func ScoreVerificationResult(res ProviderResult, th Thresholds) RiskAssessment {
	score := 100
	factors := []string{}

	switch res.Result {
	case ResultClear:
	case ResultConsider:
		score -= penaltyOverallConsider
		factors = append(factors, FactorManualReview)
	default:
		score -= penaltyOverallUnidentified
		factors = append(factors, FactorUnidentified)
	}

	for _, sub := range res.SubResults {
		switch sub.Result {
		case ResultClear:
		case ResultConsider:
			score -= penaltySubConsider
			factors = append(factors, fmt.Sprintf("%s: %s", FactorManualReview, sub.Check))
		default:
			score -= penaltySubRejected
			factors = append(factors, fmt.Sprintf("%s: %s", FactorFailed, sub.Check))
		}
	}

	score = max(0, score)
	return RiskAssessment{Score: score, Level: LevelFor(score, th), Factors: factors}
}

// LevelFor maps a score onto the configured bands.
func LevelFor(score int, th Thresholds) RiskLevel {
	switch {
	case score >= th.LowMinScore:
		return RiskLow
	case score >= th.MediumMinScore:
		return RiskMedium
	case score >= th.HighMinScore:
		return RiskHigh
	default:
		return RiskCritical
	}
}
