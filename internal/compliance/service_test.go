package compliance_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"bastion/internal/audit"
	auditmemory "bastion/internal/audit/store/memory"
	"bastion/internal/compliance"
	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	now      time.Time
	consents *compliance.InMemoryConsentStore
	requests *compliance.InMemoryRequestStore
	breaches *compliance.InMemoryBreachStore
	audit    *audit.Service
	svc      *compliance.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.consents = compliance.NewInMemoryConsentStore()
	s.requests = compliance.NewInMemoryRequestStore()
	s.breaches = compliance.NewInMemoryBreachStore()

	var err error
	s.audit, err = audit.New(auditmemory.New())
	s.Require().NoError(err)
	s.svc, err = compliance.New(s.consents, s.requests, s.breaches,
		compliance.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		compliance.WithAuditLogger(s.audit),
		compliance.WithSecurityEvents(s.audit),
		compliance.WithMetrics(compliance.NewMetrics(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *ServiceSuite) ctx() context.Context {
	return s.at(s.now)
}

func (s *ServiceSuite) actions(subjectID string) []string {
	trail, err := s.audit.Trail(context.Background(), subjectID)
	s.Require().NoError(err)
	out := make([]string, len(trail))
	for i, r := range trail {
		out[i] = r.Action
	}
	return out
}

func (s *ServiceSuite) TestNewRequiresStores() {
	_, err := compliance.New(nil, s.requests, s.breaches)
	s.ErrorContains(err, "consent store is required")
	_, err = compliance.New(s.consents, nil, s.breaches)
	s.ErrorContains(err, "request store is required")
	_, err = compliance.New(s.consents, s.requests, nil)
	s.ErrorContains(err, "breach store is required")
}

func (s *ServiceSuite) TestAssess() {
	a := s.svc.Assess(s.ctx(), compliance.BusinessContext{
		OperatesInEU: true, ProcessesPayments: true, PrimaryJurisdiction: "NG",
	})
	s.Contains(a.Frameworks, compliance.FrameworkNDPR)
	s.Equal(compliance.RiskLow, a.RiskLevel)
	s.NotEmpty(a.Requirements)
}

// =============================================================================
// Consent
// =============================================================================

func (s *ServiceSuite) TestRecordConsent() {
	s.Run("necessary only never expires", func() {
		r, err := s.svc.RecordConsent(s.ctx(), "subj-1", compliance.ConsentData{ConsentTypes: []string{"necessary"}})
		s.Require().NoError(err)
		s.Nil(r.ExpiresAt)
		s.Equal(compliance.BasisConsent, r.LegalBasis)
	})

	s.Run("mixed types take the longest horizon", func() {
		r, err := s.svc.RecordConsent(s.ctx(), "subj-1", compliance.ConsentData{
			ConsentTypes: []string{"necessary", "analytics", "marketing"},
			LegalBasis:   compliance.BasisLegitimateInterest,
		})
		s.Require().NoError(err)
		s.Require().NotNil(r.ExpiresAt)
		s.Equal(*compliance.CalculateConsentExpiry([]compliance.ConsentType{compliance.ConsentMarketing}, s.now), *r.ExpiresAt)
	})

	s.Run("validation", func() {
		_, err := s.svc.RecordConsent(s.ctx(), "", compliance.ConsentData{ConsentTypes: []string{"marketing"}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.svc.RecordConsent(s.ctx(), "subj-1", compliance.ConsentData{ConsentTypes: []string{"marketing"}, LegalBasis: "whim"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Contains(s.actions("subj-1"), "consent_granted")
}

func (s *ServiceSuite) TestWithdrawConsentKeepsRemainder() {
	_, err := s.svc.RecordConsent(s.ctx(), "subj-1", compliance.ConsentData{ConsentTypes: []string{"analytics", "marketing"}})
	s.Require().NoError(err)

	later := s.at(s.now.Add(time.Hour))
	n, err := s.svc.WithdrawConsent(later, "subj-1", []string{"marketing"})
	s.Require().NoError(err)
	s.Equal(1, n)

	ok, err := s.svc.HasActiveConsent(later, "subj-1", compliance.ConsentMarketing)
	s.Require().NoError(err)
	s.False(ok)
	ok, err = s.svc.HasActiveConsent(later, "subj-1", compliance.ConsentAnalytics)
	s.Require().NoError(err)
	s.True(ok)

	records, err := s.svc.ListConsents(later, "subj-1")
	s.Require().NoError(err)
	s.Len(records, 2)
	s.NotNil(records[0].WithdrawnAt)
	s.Equal(s.now, records[1].GrantedAt)
	s.Equal([]compliance.ConsentType{compliance.ConsentAnalytics}, records[1].ConsentTypes)

	s.Contains(s.actions("subj-1"), "consent_withdrawn")
}

func (s *ServiceSuite) TestWithdrawUnknownGrantIsNoop() {
	n, err := s.svc.WithdrawConsent(s.ctx(), "subj-2", []string{"marketing"})
	s.Require().NoError(err)
	s.Zero(n)
	s.NotContains(s.actions("subj-2"), "consent_withdrawn")
}

func (s *ServiceSuite) TestConsentExpires() {
	r, err := s.svc.RecordConsent(s.ctx(), "subj-1", compliance.ConsentData{ConsentTypes: []string{"profiling"}})
	s.Require().NoError(err)

	ok, err := s.svc.HasActiveConsent(s.at(r.ExpiresAt.Add(-time.Second)), "subj-1", compliance.ConsentProfiling)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.svc.HasActiveConsent(s.at(*r.ExpiresAt), "subj-1", compliance.ConsentProfiling)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ServiceSuite) TestConcurrentConsentGrants() {
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.RecordConsent(s.ctx(), "subj-c", compliance.ConsentData{ConsentTypes: []string{"analytics"}})
			s.NoError(err)
		}()
	}
	wg.Wait()
	records, err := s.svc.ListConsents(s.ctx(), "subj-c")
	s.Require().NoError(err)
	s.Len(records, 20)
}

// =============================================================================
// Data subject requests
// =============================================================================

func (s *ServiceSuite) TestProcessDataSubjectRequest() {
	req, err := s.svc.ProcessDataSubjectRequest(s.ctx(), compliance.RequestData{
		RequestID: "req-1", SubjectID: "subj-1", Type: compliance.DSRErasure,
	})
	s.Require().NoError(err)
	s.Equal(s.now.Add(30*24*time.Hour), req.Deadline)
	s.Equal(compliance.DSRReceived, req.Status)
	s.Equal(compliance.ReferenceNumber("req-1", s.now), req.ReferenceNumber)

	again, err := s.svc.ProcessDataSubjectRequest(s.at(s.now.Add(time.Hour)), compliance.RequestData{
		RequestID: "req-1", SubjectID: "subj-1", Type: compliance.DSRErasure,
	})
	s.Require().NoError(err)
	s.Equal(req.ReferenceNumber, again.ReferenceNumber)
	s.Equal(req.Deadline, again.Deadline)

	s.Equal([]string{"dsr_submitted"}, s.actions("subj-1"))
}

func (s *ServiceSuite) TestProcessDataSubjectRequestValidation() {
	_, err := s.svc.ProcessDataSubjectRequest(s.ctx(), compliance.RequestData{Type: "delete_everything"})
	s.Require().Error(err)
	de, ok := dErrors.As(err)
	s.Require().True(ok)
	s.Len(de.Fields, 2)
}

func (s *ServiceSuite) TestRequestLifecycleAndOverdue() {
	_, err := s.svc.ProcessDataSubjectRequest(s.ctx(), compliance.RequestData{RequestID: "a", SubjectID: "subj-1", Type: compliance.DSRAccess})
	s.Require().NoError(err)
	_, err = s.svc.ProcessDataSubjectRequest(s.ctx(), compliance.RequestData{RequestID: "b", SubjectID: "subj-1", Type: compliance.DSRPortability})
	s.Require().NoError(err)

	_, err = s.svc.UpdateRequestStatus(s.ctx(), "a", compliance.DSRCompleted)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.svc.UpdateRequestStatus(s.ctx(), "a", compliance.DSRInProgress)
	s.Require().NoError(err)
	done, err := s.svc.UpdateRequestStatus(s.ctx(), "a", compliance.DSRCompleted)
	s.Require().NoError(err)
	s.Equal(compliance.DSRCompleted, done.Status)

	_, err = s.svc.UpdateRequestStatus(s.ctx(), "missing", compliance.DSRInProgress)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	overdue, err := s.svc.OverdueRequests(s.at(s.now.Add(31 * 24 * time.Hour)))
	s.Require().NoError(err)
	s.Require().Len(overdue, 1)
	s.Equal("b", overdue[0].RequestID)
	summary, err := s.audit.GetSecuritySummary(context.Background(), "1h")
	s.Require().NoError(err)
	s.Equal(1, summary.EventsByType[audit.EventDSROverdue])

	overdue, err = s.svc.OverdueRequests(s.at(s.now.Add(29 * 24 * time.Hour)))
	s.Require().NoError(err)
	s.Empty(overdue)
}

// =============================================================================
// Breaches
// =============================================================================

func (s *ServiceSuite) TestRecordBreach() {
	discovered := s.now.Add(-2 * time.Hour)
	r, err := s.svc.RecordBreach(requestcontext.WithSubjectID(s.ctx(), "dpo-1"), compliance.Breach{
		Description:         "exposed bucket",
		AffectedRecordCount: 20_000,
		AffectedDataTypes:   []string{"email"},
		DiscoveredAt:        discovered,
	})
	s.Require().NoError(err)
	s.Equal(compliance.SeverityHigh, r.Severity)
	s.True(r.AuthorityNotificationRequired)
	s.True(r.SubjectNotificationRequired)
	s.Equal(discovered.Add(72*time.Hour), r.AuthorityDeadline)
	s.Equal([]string{"breach_recorded"}, s.actions("dpo-1"))

	trail, err := s.audit.Trail(context.Background(), "dpo-1")
	s.Require().NoError(err)
	s.Equal(audit.SeverityCritical, trail[0].Severity)
}

func (s *ServiceSuite) TestRecordLowBreach() {
	r, err := s.svc.RecordBreach(s.ctx(), compliance.Breach{AffectedRecordCount: 12, AffectedDataTypes: []string{"email"}})
	s.Require().NoError(err)
	s.Equal(compliance.SeverityLow, r.Severity)
	s.False(r.AuthorityNotificationRequired)
	s.False(r.SubjectNotificationRequired)
	s.True(r.AuthorityDeadline.IsZero())
	s.Equal(s.now, r.DiscoveredAt)

	all, err := s.svc.ListBreaches(s.ctx())
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *ServiceSuite) TestRecordBreachValidation() {
	_, err := s.svc.RecordBreach(s.ctx(), compliance.Breach{AffectedRecordCount: -1})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = s.svc.RecordBreach(s.ctx(), compliance.Breach{DiscoveredAt: s.now.Add(time.Hour)})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestRecordBreachLowersSecurityScore() {
	_, err := s.svc.RecordBreach(requestcontext.WithSubjectID(s.ctx(), "dpo-1"), compliance.Breach{
		AffectedRecordCount: 50_000,
		AffectedDataTypes:   []string{"health"},
	})
	s.Require().NoError(err)

	summary, err := s.audit.GetSecuritySummary(context.Background(), "24h")
	s.Require().NoError(err)
	s.Equal(1, summary.EventsByType[audit.EventBreachRecorded])
	s.Equal(1, summary.EventsBySeverity[audit.SeverityCritical])
	s.Less(summary.SecurityScore, 100)
	s.Contains(summary.Recommendations, "Investigate critical security events immediately")
}

// =============================================================================
// Store failures
// =============================================================================

type unavailableBreachStore struct{}

func (unavailableBreachStore) Save(context.Context, *compliance.BreachRecord) error {
	return errors.New("connection reset")
}

func (unavailableBreachStore) List(context.Context) ([]*compliance.BreachRecord, error) {
	return nil, errors.New("connection reset")
}

func (s *ServiceSuite) TestStoreFailureIsCriticalSecurityEvent() {
	svc, err := compliance.New(s.consents, s.requests, unavailableBreachStore{},
		compliance.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		compliance.WithSecurityEvents(s.audit),
	)
	s.Require().NoError(err)

	_, err = svc.RecordBreach(s.ctx(), compliance.Breach{AffectedRecordCount: 5})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	_, err = svc.ListBreaches(s.ctx())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	summary, err := s.audit.GetSecuritySummary(context.Background(), "24h")
	s.Require().NoError(err)
	s.Equal(2, summary.EventsByType[audit.EventStoreFailed])
	s.Equal(0, summary.EventsByType[audit.EventBreachRecorded], "nothing is announced for an unsaved breach")
}

func (s *ServiceSuite) TestResubmissionKeepsReferenceAcrossYearBoundary() {
	lateDecember := time.Date(2026, 12, 31, 23, 30, 0, 0, time.UTC)
	first, err := s.svc.ProcessDataSubjectRequest(s.at(lateDecember), compliance.RequestData{
		RequestID: "req-ny",
		SubjectID: "user-9",
		Type:      compliance.DSRAccess,
	})
	s.Require().NoError(err)
	s.Equal("DSR-2026-", first.ReferenceNumber[:9])

	again, err := s.svc.ProcessDataSubjectRequest(s.at(lateDecember.Add(time.Hour)), compliance.RequestData{
		RequestID: "req-ny",
		SubjectID: "user-9",
		Type:      compliance.DSRAccess,
	})
	s.Require().NoError(err)
	s.Equal(first.ReferenceNumber, again.ReferenceNumber)
	s.Equal(first.CreatedAt, again.CreatedAt)
}
