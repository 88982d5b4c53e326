package compliance

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"bastion/internal/audit"
	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/platform/sentinel"
	"bastion/pkg/requestcontext"
)

// Service owns consent, data subject request and breach records and audits
// every change to them.
type Service struct {
	consents   ConsentStore
	requests   RequestStore
	breaches   BreachStore
	audit      AuditLogger
	events     SecurityEventLogger
	logger     *slog.Logger
	metrics    *Metrics
	thresholds BreachThresholds
	locks      *subjectLocks
	tx         Transactor
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditLogger(a AuditLogger) Option {
	return func(s *Service) { s.audit = a }
}

func WithSecurityEvents(events SecurityEventLogger) Option {
	return func(s *Service) { s.events = events }
}

// WithTransactor makes consent withdrawal atomic across the withdraw and
// re-grant writes.
func WithTransactor(t Transactor) Option {
	return func(s *Service) { s.tx = t }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithBreachThresholds(th BreachThresholds) Option {
	return func(s *Service) { s.thresholds = th }
}

func New(consents ConsentStore, requests RequestStore, breaches BreachStore, opts ...Option) (*Service, error) {
	if consents == nil {
		return nil, errors.New("consent store is required")
	}
	if requests == nil {
		return nil, errors.New("request store is required")
	}
	if breaches == nil {
		return nil, errors.New("breach store is required")
	}
	svc := &Service{
		consents:   consents,
		requests:   requests,
		breaches:   breaches,
		logger:     slog.Default(),
		thresholds: DefaultBreachThresholds(),
		locks:      &subjectLocks{},
		tx:         noTx{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Assessment is the framework view of a business context.
type Assessment struct {
	Frameworks   []Framework   `json:"frameworks"`
	RiskLevel    RiskLevel     `json:"risk_level"`
	Requirements []Requirement `json:"requirements"`
}

// Assess determines applicable frameworks, overall risk and the combined
// requirement checklist.
func (s *Service) Assess(ctx context.Context, bc BusinessContext) *Assessment {
	now := requestcontext.Now(ctx)
	frameworks := DetermineApplicableFrameworks(bc)
	out := &Assessment{
		Frameworks:   frameworks,
		RiskLevel:    AssessComplianceRisk(bc),
		Requirements: []Requirement{},
	}
	for _, f := range frameworks {
		out.Requirements = append(out.Requirements, GetRequirements(f, bc, now)...)
	}
	return out
}

// RecordConsent stores a new grant with its computed expiry.
func (s *Service) RecordConsent(ctx context.Context, subjectID string, data ConsentData) (*ConsentRecord, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, dErrors.Validation("invalid consent",
			dErrors.FieldError{Field: "subject_id", Message: "subject_id is required"})
	}
	types, err := ParseConsentTypes(data.ConsentTypes)
	if err != nil {
		return nil, err
	}
	basis := data.LegalBasis
	if basis == "" {
		basis = BasisConsent
	}
	if !validLegalBasis(basis) {
		return nil, dErrors.Validation("invalid consent",
			dErrors.FieldError{Field: "legal_basis", Message: "unknown legal basis: " + string(basis)})
	}

	now := requestcontext.Now(ctx)
	record := &ConsentRecord{
		ConsentID:    uuid.NewString(),
		SubjectID:    subjectID,
		ConsentTypes: types,
		LegalBasis:   basis,
		Source:       data.Source,
		GrantedAt:    now,
		ExpiresAt:    CalculateConsentExpiry(types, now),
	}
	err = s.locks.run(ctx, subjectID, func(ctx context.Context) error {
		return s.consents.Save(ctx, record)
	})
	if err != nil {
		return nil, s.storeFailure(ctx, "consents", err, "failed to record consent")
	}

	if s.metrics != nil {
		for _, t := range types {
			s.metrics.ConsentsGranted.WithLabelValues(string(t)).Inc()
		}
	}
	s.auditAction(ctx, subjectID, "consent_granted", map[string]any{
		"consent_id":    record.ConsentID,
		"consent_types": types,
		"legal_basis":   basis,
	})
	return record, nil
}

// WithdrawConsent withdraws the given types from every active grant. A grant
// that also covered other types is replaced by a grant of the remainder with
// its original grant time. Returns the number of grants withdrawn.
func (s *Service) WithdrawConsent(ctx context.Context, subjectID string, rawTypes []string) (int, error) {
	types, err := ParseConsentTypes(rawTypes)
	if err != nil {
		return 0, err
	}
	now := requestcontext.Now(ctx)
	withdrawn := 0
	err = s.locks.run(ctx, subjectID, func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			records, err := s.consents.ListBySubject(ctx, subjectID)
			if err != nil {
				return err
			}
			for _, r := range records {
				if !r.IsActive(now) || !slices.ContainsFunc(types, r.Covers) {
					continue
				}
				if err := s.consents.MarkWithdrawn(ctx, r.ConsentID, now); err != nil {
					return err
				}
				withdrawn++
				remaining := slices.DeleteFunc(slices.Clone(r.ConsentTypes), func(t ConsentType) bool {
					return slices.Contains(types, t)
				})
				if len(remaining) == 0 {
					continue
				}
				replacement := &ConsentRecord{
					ConsentID:    uuid.NewString(),
					SubjectID:    subjectID,
					ConsentTypes: remaining,
					LegalBasis:   r.LegalBasis,
					Source:       r.Source,
					GrantedAt:    r.GrantedAt,
					ExpiresAt:    CalculateConsentExpiry(remaining, r.GrantedAt),
				}
				if err := s.consents.Save(ctx, replacement); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return 0, err
		}
		return 0, s.storeFailure(ctx, "consents", err, "failed to withdraw consent")
	}
	if withdrawn > 0 {
		s.auditAction(ctx, subjectID, "consent_withdrawn", map[string]any{
			"consent_types": types,
			"grants":        withdrawn,
		})
	}
	return withdrawn, nil
}

// HasActiveConsent reports whether subjectID currently consents to t.
func (s *Service) HasActiveConsent(ctx context.Context, subjectID string, t ConsentType) (bool, error) {
	records, err := s.consents.ListBySubject(ctx, subjectID)
	if err != nil {
		return false, s.storeFailure(ctx, "consents", err, "failed to load consent")
	}
	now := requestcontext.Now(ctx)
	for _, r := range records {
		if r.IsActive(now) && r.Covers(t) {
			return true, nil
		}
	}
	return false, nil
}

// ListConsents returns every grant for subjectID, withdrawn ones included.
func (s *Service) ListConsents(ctx context.Context, subjectID string) ([]*ConsentRecord, error) {
	records, err := s.consents.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, s.storeFailure(ctx, "consents", err, "failed to load consent")
	}
	return records, nil
}

// ProcessDataSubjectRequest registers a request with its 30 day deadline.
// Resubmitting a known request id returns the stored request.
func (s *Service) ProcessDataSubjectRequest(ctx context.Context, data RequestData) (*DataSubjectRequest, error) {
	var fields []dErrors.FieldError
	if strings.TrimSpace(data.SubjectID) == "" {
		fields = append(fields, dErrors.FieldError{Field: "subject_id", Message: "subject_id is required"})
	}
	if _, ok := dsrTypes[data.Type]; !ok {
		fields = append(fields, dErrors.FieldError{Field: "type", Message: "type must be one of access, erasure, portability, rectification, objection"})
	}
	if len(fields) > 0 {
		return nil, dErrors.Validation("invalid data subject request", fields...)
	}

	if data.RequestID == "" {
		data.RequestID = uuid.NewString()
	} else if existing, err := s.requests.FindByID(ctx, data.RequestID); err == nil {
		return existing, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.storeFailure(ctx, "dsr_requests", err, "failed to load data subject request")
	}

	now := requestcontext.Now(ctx)
	req := &DataSubjectRequest{
		RequestID:       data.RequestID,
		ReferenceNumber: ReferenceNumber(data.RequestID, now),
		SubjectID:       data.SubjectID,
		Type:            data.Type,
		Status:          DSRReceived,
		Details:         data.Details,
		CreatedAt:       now,
		UpdatedAt:       now,
		Deadline:        now.Add(DSRDeadline),
	}
	if err := s.requests.Save(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "data subject request already exists")
		}
		return nil, s.storeFailure(ctx, "dsr_requests", err, "failed to save data subject request")
	}

	if s.metrics != nil {
		s.metrics.RequestsReceived.WithLabelValues(string(req.Type)).Inc()
	}
	s.auditAction(ctx, req.SubjectID, "dsr_submitted", map[string]any{
		"request_id": req.RequestID,
		"reference":  req.ReferenceNumber,
		"type":       req.Type,
		"deadline":   req.Deadline,
	})
	return req, nil
}

// UpdateRequestStatus moves a request along received, in_progress and a
// terminal status. Terminal requests cannot change.
func (s *Service) UpdateRequestStatus(ctx context.Context, requestID string, status DSRStatus) (*DataSubjectRequest, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "data subject request not found")
		}
		return nil, s.storeFailure(ctx, "dsr_requests", err, "failed to load data subject request")
	}
	if !CanTransition(req.Status, status) {
		return nil, dErrors.New(dErrors.CodeConflict,
			"cannot move request from "+string(req.Status)+" to "+string(status))
	}
	now := requestcontext.Now(ctx)
	if err := s.requests.UpdateStatus(ctx, requestID, status, now); err != nil {
		return nil, s.storeFailure(ctx, "dsr_requests", err, "failed to update data subject request")
	}
	from := req.Status
	req.Status = status
	req.UpdatedAt = now
	s.auditAction(ctx, req.SubjectID, "dsr_status_changed", map[string]any{
		"request_id": requestID,
		"from":       from,
		"to":         status,
	})
	return req, nil
}

// GetRequest returns a request by id.
func (s *Service) GetRequest(ctx context.Context, requestID string) (*DataSubjectRequest, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "data subject request not found")
		}
		return nil, s.storeFailure(ctx, "dsr_requests", err, "failed to load data subject request")
	}
	return req, nil
}

// OverdueRequests lists open requests past their deadline, oldest deadline
// first, and raises a security event for each.
func (s *Service) OverdueRequests(ctx context.Context) ([]*DataSubjectRequest, error) {
	now := requestcontext.Now(ctx)
	reqs, err := s.requests.ListOverdue(ctx, now)
	if err != nil {
		return nil, s.storeFailure(ctx, "dsr_requests", err, "failed to list overdue requests")
	}
	if s.metrics != nil {
		s.metrics.RequestsOverdue.Set(float64(len(reqs)))
	}
	for _, req := range reqs {
		s.securityEvent(ctx, audit.EventDSROverdue, req.SubjectID, map[string]any{
			"request_id":       req.RequestID,
			"reference_number": req.ReferenceNumber,
			"type":             string(req.Type),
			"overdue_by":       now.Sub(req.Deadline).Round(time.Minute).String(),
		})
	}
	return reqs, nil
}

// RecordBreach derives severity and notification duties from the breach facts
// and stores the result.
func (s *Service) RecordBreach(ctx context.Context, b Breach) (*BreachRecord, error) {
	if b.AffectedRecordCount < 0 {
		return nil, dErrors.Validation("invalid breach",
			dErrors.FieldError{Field: "affected_record_count", Message: "affected_record_count must not be negative"})
	}
	now := requestcontext.Now(ctx)
	discovered := b.DiscoveredAt
	if discovered.IsZero() {
		discovered = now
	}
	if discovered.After(now) {
		return nil, dErrors.Validation("invalid breach",
			dErrors.FieldError{Field: "discovered_at", Message: "discovered_at must not be in the future"})
	}

	severity := AssessBreachSeverity(b, s.thresholds)
	record := &BreachRecord{
		BreachID:                      uuid.NewString(),
		Description:                   b.Description,
		Severity:                      severity,
		AffectedRecordCount:           b.AffectedRecordCount,
		AffectedDataTypes:             slices.Clone(b.AffectedDataTypes),
		AuthorityNotificationRequired: IsAuthorityNotificationRequired(severity, b.AffectedDataTypes),
		SubjectNotificationRequired:   IsDataSubjectNotificationRequired(severity, b.AffectedDataTypes),
		DiscoveredAt:                  discovered,
		RecordedAt:                    now,
	}
	if record.AuthorityNotificationRequired {
		record.AuthorityDeadline = discovered.Add(AuthorityNotificationWindow)
	}
	if err := s.breaches.Save(ctx, record); err != nil {
		return nil, s.storeFailure(ctx, "breaches", err, "failed to record breach")
	}

	if s.metrics != nil {
		s.metrics.Breaches.WithLabelValues(string(severity)).Inc()
	}
	actor := actorOf(ctx)
	details := map[string]any{
		"breach_id":             record.BreachID,
		"severity":              severity,
		"affected_record_count": record.AffectedRecordCount,
		"notify_authority":      record.AuthorityNotificationRequired,
		"notify_subjects":       record.SubjectNotificationRequired,
	}
	s.auditAction(ctx, actor, "breach_recorded", details)
	s.securityEvent(ctx, audit.EventBreachRecorded, actor, details)
	return record, nil
}

func (s *Service) ListBreaches(ctx context.Context) ([]*BreachRecord, error) {
	records, err := s.breaches.List(ctx)
	if err != nil {
		return nil, s.storeFailure(ctx, "breaches", err, "failed to list breaches")
	}
	return records, nil
}

// storeFailure logs err, records a critical store_failed event naming the
// collection and returns a generic internal error.
func (s *Service) storeFailure(ctx context.Context, store string, err error, msg string) error {
	s.logger.ErrorContext(ctx, msg,
		"error", err,
		"store", store,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.securityEvent(ctx, audit.EventStoreFailed, actorOf(ctx), map[string]any{"store": store})
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) securityEvent(ctx context.Context, eventType audit.EventType, subjectID string, details map[string]any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.LogSecurityEvent(ctx, eventType, subjectID, details); err != nil {
		s.logger.WarnContext(ctx, "failed to record security event",
			"event", eventType,
			"error", err,
		)
	}
}

func actorOf(ctx context.Context) string {
	if actor := requestcontext.SubjectID(ctx); actor != "" {
		return actor
	}
	return "system"
}

func (s *Service) auditAction(ctx context.Context, subjectID, action string, details map[string]any) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.LogAuditEvent(ctx, subjectID, action, details); err != nil {
		s.logger.WarnContext(ctx, "failed to record audit event",
			"action", action,
			"error", err,
		)
	}
}
