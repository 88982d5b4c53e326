package audit

import (
	"time"
)

// EventType names a security relevant occurrence.
type EventType string

// Severity is derived from EventType, never supplied by callers.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	// Authentication and tokens
	EventLoginSucceeded   EventType = "login_succeeded"
	EventLoginFailed      EventType = "login_failed"
	EventPasswordChanged  EventType = "password_changed"
	EventTokenIssued      EventType = "token_issued"
	EventTokenRevoked     EventType = "token_revoked"
	EventTokenInvalid     EventType = "token_invalid"
	EventRevokedTokenUsed EventType = "revoked_token_used"
	EventMFAEnrolled      EventType = "mfa_enrolled"
	EventPermissionDenied EventType = "permission_denied"

	// Cryptography and storage
	EventEncryptionFailed EventType = "encryption_failed"
	EventDecryptionFailed EventType = "decryption_failed"
	EventHashingFailed    EventType = "hashing_failed"
	EventStoreFailed      EventType = "store_failed"

	// Abuse controls
	EventRateLimitExceeded  EventType = "rate_limit_exceeded"
	EventAdaptiveLimitSet   EventType = "adaptive_limit_applied"
	EventIPBlocked          EventType = "ip_blocked"
	EventIPUnblocked        EventType = "ip_unblocked"
	EventSuspiciousActivity EventType = "suspicious_activity"

	// Identity risk
	EventKYCStarted         EventType = "kyc_verification_started"
	EventKYCCompleted       EventType = "kyc_verification_completed"
	EventKYCFailed          EventType = "kyc_verification_failed"
	EventKYCHighRisk        EventType = "kyc_high_risk"
	EventKYCProviderTimeout EventType = "kyc_provider_timeout"

	// Compliance
	EventConsentGranted   EventType = "consent_granted"
	EventConsentWithdrawn EventType = "consent_withdrawn"
	EventDSRSubmitted     EventType = "dsr_submitted"
	EventDSRStatusChanged EventType = "dsr_status_changed"
	EventDSROverdue       EventType = "dsr_overdue"
	EventBreachRecorded   EventType = "breach_recorded"

	// Documents
	EventEnvelopeCreated EventType = "esign_envelope_created"
	EventEnvelopeChecked EventType = "esign_status_checked"
)

var severities = map[EventType]Severity{
	EventLoginSucceeded:   SeverityInfo,
	EventLoginFailed:      SeverityWarning,
	EventPasswordChanged:  SeverityInfo,
	EventTokenIssued:      SeverityInfo,
	EventTokenRevoked:     SeverityInfo,
	EventTokenInvalid:     SeverityWarning,
	EventRevokedTokenUsed: SeverityHigh,
	EventMFAEnrolled:      SeverityInfo,
	EventPermissionDenied: SeverityWarning,

	EventEncryptionFailed: SeverityCritical,
	EventDecryptionFailed: SeverityCritical,
	EventHashingFailed:    SeverityCritical,
	EventStoreFailed:      SeverityCritical,

	EventRateLimitExceeded:  SeverityWarning,
	EventAdaptiveLimitSet:   SeverityHigh,
	EventIPBlocked:          SeverityHigh,
	EventIPUnblocked:        SeverityInfo,
	EventSuspiciousActivity: SeverityHigh,

	EventKYCStarted:         SeverityInfo,
	EventKYCCompleted:       SeverityInfo,
	EventKYCFailed:          SeverityWarning,
	EventKYCHighRisk:        SeverityHigh,
	EventKYCProviderTimeout: SeverityWarning,

	EventConsentGranted:   SeverityInfo,
	EventConsentWithdrawn: SeverityInfo,
	EventDSRSubmitted:     SeverityInfo,
	EventDSRStatusChanged: SeverityInfo,
	EventDSROverdue:       SeverityHigh,
	EventBreachRecorded:   SeverityCritical,

	EventEnvelopeCreated: SeverityInfo,
	EventEnvelopeChecked: SeverityInfo,
}

// Severity returns the fixed severity for e. Unknown types are info.
func (e EventType) Severity() Severity {
	if s, ok := severities[e]; ok {
		return s
	}
	return SeverityInfo
}

// Kind separates raw security events from retained audit records.
type Kind string

const (
	KindSecurity Kind = "security"
	KindAudit    Kind = "audit"
)

// SecurityEvent is an append-only log entry.
type SecurityEvent struct {
	ID        string         `json:"id"`
	EventType EventType      `json:"event_type"`
	SubjectID string         `json:"subject_id"`
	Severity  Severity       `json:"severity"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AuditRecord is a SecurityEvent carrying an action and its retention period.
type AuditRecord struct {
	SecurityEvent
	Action        string `json:"action"`
	RetentionDays int    `json:"retention_days"`
}

// ExpiresAt is when the record may be purged.
func (r AuditRecord) ExpiresAt() time.Time {
	return r.Timestamp.AddDate(0, 0, r.RetentionDays)
}

// Summary aggregates security events over a timeframe.
type Summary struct {
	Timeframe        string            `json:"timeframe"`
	From             time.Time         `json:"from"`
	To               time.Time         `json:"to"`
	TotalEvents      int               `json:"total_events"`
	EventsByType     map[EventType]int `json:"events_by_type"`
	EventsBySeverity map[Severity]int  `json:"events_by_severity"`
	SecurityScore    int               `json:"security_score"`
	Recommendations  []string          `json:"recommendations"`
}
