package httptransport

import (
	"time"

	"bastion/internal/credential"
	"bastion/internal/esign"
	"bastion/internal/kyc"
)

type validatePasswordRequest struct {
	Password string `json:"password"`
}

type encryptRequest struct {
	Plaintext string `json:"plaintext" validate:"required,max=65536"`
	AAD       string `json:"aad,omitempty" validate:"max=1024"`
}

type encryptResponse struct {
	Payload *credential.EncryptedPayload `json:"payload"`
}

type decryptRequest struct {
	Payload credential.EncryptedPayload `json:"payload"`
	AAD     string                      `json:"aad,omitempty" validate:"max=1024"`
}

type decryptResponse struct {
	Plaintext string `json:"plaintext"`
}

type verifyTOTPRequest struct {
	Code   string `json:"code" validate:"required,numeric,len=6"`
	Secret string `json:"secret" validate:"required"`
}

type codeResponse struct {
	Code string `json:"code"`
}

type issueTokenRequest struct {
	SubjectID  string   `json:"subject_id" validate:"required,max=128"`
	Roles      []string `json:"roles,omitempty" validate:"dive,required,max=64"`
	Scope      string   `json:"scope,omitempty"`
	TTLSeconds int      `json:"ttl_seconds,omitempty" validate:"gte=0,lte=86400"`
}

type revokeTokenRequest struct {
	// Token defaults to the caller's own bearer token.
	Token string `json:"token,omitempty"`
}

type revokeAllRequest struct {
	Tokens []string `json:"tokens" validate:"required,min=1,max=1000,dive,required"`
}

type revokeAllResponse struct {
	Revoked int `json:"revoked"`
}

type consentRequest struct {
	ConsentTypes []string `json:"consent_types" validate:"required,min=1,dive,required"`
	LegalBasis   string   `json:"legal_basis,omitempty"`
	Source       string   `json:"source,omitempty" validate:"max=128"`
}

type withdrawConsentRequest struct {
	ConsentTypes []string `json:"consent_types" validate:"required,min=1,dive,required"`
}

type withdrawConsentResponse struct {
	Withdrawn int `json:"withdrawn"`
}

type dsrRequest struct {
	RequestID string `json:"request_id,omitempty" validate:"omitempty,max=64"`
	Type      string `json:"type" validate:"required,oneof=access erasure portability rectification objection"`
	Details   string `json:"details,omitempty" validate:"max=4000"`
}

type dsrStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=in_progress completed rejected"`
}

type breachRequest struct {
	Description         string    `json:"description" validate:"required,max=4000"`
	AffectedRecordCount int       `json:"affected_record_count" validate:"gte=0"`
	AffectedDataTypes   []string  `json:"affected_data_types" validate:"dive,required"`
	DiscoveredAt        time.Time `json:"discovered_at,omitzero"`
}

type kycVerifyRequest struct {
	ExpectedTransactionValue float64           `json:"expected_transaction_value" validate:"gte=0"`
	IsBusinessOwner          bool              `json:"is_business_owner"`
	Country                  string            `json:"country,omitempty" validate:"omitempty,len=2"`
	Documents                []kyc.Document    `json:"documents" validate:"required,min=1"`
	SubjectData              map[string]string `json:"subject_data,omitempty"`
}

type kycRequirementsRequest struct {
	ExpectedTransactionValue float64 `json:"expected_transaction_value" validate:"gte=0"`
	IsBusinessOwner          bool    `json:"is_business_owner"`
}

type kycRequirementsResponse struct {
	Tier              kyc.Tier `json:"tier"`
	RequiredDocuments []string `json:"required_documents"`
}

type envelopeRequest struct {
	Signers  []esign.Signer `json:"signers" validate:"required,min=1,dive"`
	Document esign.Document `json:"document"`
}

type envelopeResponse struct {
	EnvelopeID string `json:"envelope_id"`
}

type blockRequest struct {
	IP              string `json:"ip" validate:"required,ip"`
	Reason          string `json:"reason" validate:"required,max=256"`
	DurationSeconds int    `json:"duration_seconds" validate:"required,gt=0"`
}
