package compliance

import "time"

// Framework identifies a regulatory framework.
type Framework string

const (
	FrameworkGDPR     Framework = "gdpr"
	FrameworkMiFID    Framework = "mifid_ii"
	FrameworkPCIDSS   Framework = "pci_dss"
	FrameworkSOX      Framework = "sox"
	FrameworkAML      Framework = "aml"
	FrameworkNDPR     Framework = "ndpr"
	FrameworkPOPIA    Framework = "popia"
	FrameworkKenyaDPA Framework = "kenya_dpa"
	FrameworkGhanaDPA Framework = "ghana_dpa"
	FrameworkUKGDPR   Framework = "uk_gdpr"
	FrameworkLGPD     Framework = "lgpd"
	FrameworkPIPEDA   Framework = "pipeda"
	FrameworkPDPA     Framework = "pdpa"
	FrameworkCCPA     Framework = "ccpa"
)

// BusinessContext is the set of facts framework applicability is derived from.
type BusinessContext struct {
	OperatesInEU           bool   `json:"operates_in_eu"`
	OperatesInUS           bool   `json:"operates_in_us"`
	ProcessesPayments      bool   `json:"processes_payments"`
	RegulatedSecurities    bool   `json:"regulated_securities"`
	PrimaryJurisdiction    string `json:"primary_jurisdiction"`
	HighDataVolume         bool   `json:"high_data_volume"`
	CrossBorderTransfers   bool   `json:"cross_border_transfers"`
	ProcessesSensitiveData bool   `json:"processes_sensitive_data"`
	PubliclyTraded         bool   `json:"publicly_traded"`
	FinancialServices      bool   `json:"financial_services"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
)

// RequirementStatus is always pending on a freshly generated checklist.
type RequirementStatus string

const RequirementPending RequirementStatus = "pending"

// Requirement is one checklist item for a framework.
type Requirement struct {
	ID          string            `json:"id"`
	Framework   Framework         `json:"framework"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Priority    Priority          `json:"priority"`
	Deadline    time.Time         `json:"deadline"`
	Status      RequirementStatus `json:"status"`
}

// ConsentType names a processing purpose a subject can agree to.
type ConsentType string

const (
	ConsentNecessary  ConsentType = "necessary"
	ConsentFunctional ConsentType = "functional"
	ConsentAnalytics  ConsentType = "analytics"
	ConsentMarketing  ConsentType = "marketing"
	ConsentThirdParty ConsentType = "third_party_sharing"
	ConsentProfiling  ConsentType = "profiling"
)

type LegalBasis string

const (
	BasisConsent            LegalBasis = "consent"
	BasisContract           LegalBasis = "contract"
	BasisLegalObligation    LegalBasis = "legal_obligation"
	BasisVitalInterests     LegalBasis = "vital_interests"
	BasisPublicTask         LegalBasis = "public_task"
	BasisLegitimateInterest LegalBasis = "legitimate_interests"
)

// ConsentData is the caller supplied part of a consent grant.
type ConsentData struct {
	ConsentTypes []string   `json:"consent_types"`
	LegalBasis   LegalBasis `json:"legal_basis"`
	Source       string     `json:"source,omitempty"`
}

// ConsentRecord captures one grant. ExpiresAt is nil only when every type is
// necessary.
type ConsentRecord struct {
	ConsentID    string        `json:"consent_id"`
	SubjectID    string        `json:"subject_id"`
	ConsentTypes []ConsentType `json:"consent_types"`
	LegalBasis   LegalBasis    `json:"legal_basis"`
	Source       string        `json:"source,omitempty"`
	GrantedAt    time.Time     `json:"granted_at"`
	ExpiresAt    *time.Time    `json:"expires_at"`
	WithdrawnAt  *time.Time    `json:"withdrawn_at,omitempty"`
}

// IsActive reports whether the record is neither withdrawn nor expired at now.
func (c ConsentRecord) IsActive(now time.Time) bool {
	if c.WithdrawnAt != nil && !c.WithdrawnAt.After(now) {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}

// Covers reports whether the record grants t.
func (c ConsentRecord) Covers(t ConsentType) bool {
	for _, ct := range c.ConsentTypes {
		if ct == t {
			return true
		}
	}
	return false
}

type DSRType string

const (
	DSRAccess        DSRType = "access"
	DSRErasure       DSRType = "erasure"
	DSRPortability   DSRType = "portability"
	DSRRectification DSRType = "rectification"
	DSRObjection     DSRType = "objection"
)

type DSRStatus string

const (
	DSRReceived   DSRStatus = "received"
	DSRInProgress DSRStatus = "in_progress"
	DSRCompleted  DSRStatus = "completed"
	DSRRejected   DSRStatus = "rejected"
)

// RequestData is a data subject request as submitted. An empty RequestID is
// replaced by a generated one.
type RequestData struct {
	RequestID string  `json:"request_id,omitempty"`
	SubjectID string  `json:"subject_id"`
	Type      DSRType `json:"type"`
	Details   string  `json:"details,omitempty"`
}

// DataSubjectRequest tracks a request against its statutory deadline.
type DataSubjectRequest struct {
	RequestID       string    `json:"request_id"`
	ReferenceNumber string    `json:"reference_number"`
	SubjectID       string    `json:"subject_id"`
	Type            DSRType   `json:"type"`
	Status          DSRStatus `json:"status"`
	Details         string    `json:"details,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Deadline        time.Time `json:"deadline"`
}

// IsOverdue reports whether an open request has passed its deadline.
func (r DataSubjectRequest) IsOverdue(now time.Time) bool {
	return !r.Status.Terminal() && now.After(r.Deadline)
}

func (s DSRStatus) Terminal() bool {
	return s == DSRCompleted || s == DSRRejected
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Breach holds the facts of a discovered incident.
type Breach struct {
	Description         string    `json:"description"`
	AffectedRecordCount int       `json:"affected_record_count"`
	AffectedDataTypes   []string  `json:"affected_data_types"`
	DiscoveredAt        time.Time `json:"discovered_at,omitzero"`
}

// BreachRecord is a breach with every derived field filled in. Nothing on it
// is caller controlled besides the facts.
type BreachRecord struct {
	BreachID                      string    `json:"breach_id"`
	Description                   string    `json:"description"`
	Severity                      Severity  `json:"severity"`
	AffectedRecordCount           int       `json:"affected_record_count"`
	AffectedDataTypes             []string  `json:"affected_data_types"`
	AuthorityNotificationRequired bool      `json:"authority_notification_required"`
	SubjectNotificationRequired   bool      `json:"subject_notification_required"`
	DiscoveredAt                  time.Time `json:"discovered_at"`
	AuthorityDeadline             time.Time `json:"authority_deadline,omitzero"`
	RecordedAt                    time.Time `json:"recorded_at"`
}
