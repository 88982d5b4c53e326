package httptransport

import (
	"context"
	"time"

	"bastion/internal/audit"
	"bastion/internal/compliance"
	"bastion/internal/credential"
	"bastion/internal/esign"
	"bastion/internal/kyc"
	rlmodels "bastion/internal/ratelimit/models"
	"bastion/internal/token"
)

// CredentialService covers password policy, payload encryption and one-time
// codes.
type CredentialService interface {
	ValidatePassword(password string) credential.PasswordValidation
	Encrypt(ctx context.Context, plaintext, aad []byte) (*credential.EncryptedPayload, error)
	Decrypt(ctx context.Context, payload *credential.EncryptedPayload, aad []byte) ([]byte, error)
	EnrollTOTP(ctx context.Context, account string) (*credential.TOTPEnrollment, error)
	VerifyTOTP(ctx context.Context, code, secret string) bool
	GenerateCode(ctx context.Context) (string, error)
}

type TokenService interface {
	Issue(ctx context.Context, req token.IssueRequest, ttl time.Duration) (*token.Token, error)
	Verify(ctx context.Context, tokenString string) (*token.Claims, error)
	Revoke(ctx context.Context, tokenString string) error
	RevokeAll(ctx context.Context, tokenStrings []string) (int, error)
}

type AuditService interface {
	GetSecuritySummary(ctx context.Context, timeframe string) (*audit.Summary, error)
	Trail(ctx context.Context, subjectID string) ([]audit.AuditRecord, error)
}

type KYCService interface {
	Requirements(sc kyc.SubjectContext) (kyc.Tier, []string)
	Verify(ctx context.Context, sc kyc.SubjectContext, req kyc.VerificationRequest) (*kyc.Profile, error)
	GetProfile(ctx context.Context, subjectID string) (*kyc.Profile, error)
}

type ComplianceService interface {
	Assess(ctx context.Context, bc compliance.BusinessContext) *compliance.Assessment
	RecordConsent(ctx context.Context, subjectID string, data compliance.ConsentData) (*compliance.ConsentRecord, error)
	WithdrawConsent(ctx context.Context, subjectID string, rawTypes []string) (int, error)
	ListConsents(ctx context.Context, subjectID string) ([]*compliance.ConsentRecord, error)
	ProcessDataSubjectRequest(ctx context.Context, data compliance.RequestData) (*compliance.DataSubjectRequest, error)
	UpdateRequestStatus(ctx context.Context, requestID string, status compliance.DSRStatus) (*compliance.DataSubjectRequest, error)
	GetRequest(ctx context.Context, requestID string) (*compliance.DataSubjectRequest, error)
	OverdueRequests(ctx context.Context) ([]*compliance.DataSubjectRequest, error)
	RecordBreach(ctx context.Context, b compliance.Breach) (*compliance.BreachRecord, error)
	ListBreaches(ctx context.Context) ([]*compliance.BreachRecord, error)
}

// BlockService is the operator surface of the rate limiter.
type BlockService interface {
	BlockIP(ctx context.Context, ip, reason string, duration time.Duration) (*rlmodels.Block, error)
	UnblockIP(ctx context.Context, ip string) error
	BlockStatus(ctx context.Context, ip string) (*rlmodels.Block, error)
}

type ESignService interface {
	CreateEnvelope(ctx context.Context, signers []esign.Signer, doc esign.Document) (string, error)
	GetStatus(ctx context.Context, envelopeID string) (*esign.Status, error)
}
