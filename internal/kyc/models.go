package kyc

import "time"

// Tier is the verification depth required for a subject.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierEnhanced Tier = "enhanced"
)

// RiskLevel partitions the 0..100 risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Provider level outcomes.
const (
	ResultClear        = "clear"
	ResultConsider     = "consider"
	ResultUnidentified = "unidentified"
	ResultRejected     = "rejected"
)

// SubjectContext is the business context tier decisions are made from.
// Subjects never choose their own tier.
type SubjectContext struct {
	SubjectID                string  `json:"subject_id"`
	ExpectedTransactionValue float64 `json:"expected_transaction_value"`
	IsBusinessOwner          bool    `json:"is_business_owner"`
	Country                  string  `json:"country,omitempty"`
}

// Document references an uploaded identity document.
type Document struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
}

// VerificationRequest is sent to the identity verification provider.
type VerificationRequest struct {
	Documents   []Document        `json:"documents"`
	SubjectData map[string]string `json:"subject_data"`
}

// SubResult is one provider sub-check.
type SubResult struct {
	Check  string `json:"check"`
	Result string `json:"result"`
}

// ProviderResult is the provider response. Missing SubResults means zero
// sub-checks.
type ProviderResult struct {
	Result     string      `json:"result"`
	SubResults []SubResult `json:"sub_results,omitempty"`
}

// RiskAssessment is the scored provider result.
type RiskAssessment struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
}

// Profile is the committed KYC state for a subject.
type Profile struct {
	SubjectID         string    `json:"subject_id"`
	Tier              Tier      `json:"tier"`
	RequiredDocuments []string  `json:"required_documents"`
	RiskScore         int       `json:"risk_score"`
	RiskLevel         RiskLevel `json:"risk_level"`
	Factors           []string  `json:"factors,omitempty"`
	ProviderResult    string    `json:"provider_result,omitempty"`
	VerifiedAt        time.Time `json:"verified_at,omitzero"`
	UpdatedAt         time.Time `json:"updated_at"`
}
