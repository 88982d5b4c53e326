package token_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bastion/internal/audit"
	auditmemory "bastion/internal/audit/store/memory"
	"bastion/internal/token"
	"bastion/internal/token/store/revocation"
	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	now    time.Time
	trl    *revocation.InMemoryTRL
	events *auditmemory.Store
	svc    *token.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Now().Truncate(time.Second)
	s.trl = revocation.NewInMemoryTRL(func() time.Time { return s.now })
	s.events = auditmemory.New()
	auditSvc, err := audit.New(s.events)
	s.Require().NoError(err)

	s.svc, err = token.New(token.NewSigner("test-signing-key", "bastion", "bastion-api"), s.trl,
		token.WithSecurityEvents(auditSvc))
	s.Require().NoError(err)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

// =============================================================================
// Issue / Verify
// =============================================================================

func (s *ServiceSuite) TestIssueThenVerify() {
	tok, err := s.svc.Issue(s.ctx(), token.IssueRequest{SubjectID: "subj-1", Roles: []string{"admin"}}, time.Hour)
	s.Require().NoError(err)
	s.Equal(token.TypeBearer, tok.TokenType)
	s.NotEmpty(tok.ID)
	s.WithinDuration(s.now.Add(time.Hour), tok.ExpiresAt, 0)

	claims, err := s.svc.Verify(s.ctx(), tok.AccessToken)
	s.Require().NoError(err)
	s.Equal("subj-1", claims.SubjectID)
	s.Equal([]string{"admin"}, claims.Roles)
	s.Equal(tok.ID, claims.ID)
}

func (s *ServiceSuite) TestIssueGeneratesUniqueJTI() {
	a, err := s.svc.Issue(s.ctx(), token.IssueRequest{SubjectID: "subj-1"}, 0)
	s.Require().NoError(err)
	b, err := s.svc.Issue(s.ctx(), token.IssueRequest{SubjectID: "subj-1"}, 0)
	s.Require().NoError(err)
	s.NotEqual(a.ID, b.ID)
	s.Equal(int64(time.Hour.Seconds()), a.ExpiresIn)
}

func (s *ServiceSuite) TestIssueValidation() {
	_, err := s.svc.Issue(s.ctx(), token.IssueRequest{}, time.Hour)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Issue(s.ctx(), token.IssueRequest{SubjectID: "x"}, 48*time.Hour)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestVerifyRejects() {
	tok, err := s.svc.Issue(s.ctx(), token.IssueRequest{SubjectID: "subj-1"}, time.Minute)
	s.Require().NoError(err)

	s.Run("malformed", func() {
		_, err := s.svc.Verify(s.ctx(), "not-a-jwt")
		s.ErrorIs(err, token.ErrInvalidToken)
	})

	s.Run("wrong signing key", func() {
		other, _ := token.New(token.NewSigner("other-key", "bastion", "bastion-api"), s.trl)
		_, err := other.Verify(s.ctx(), tok.AccessToken)
		s.ErrorIs(err, token.ErrInvalidToken)
	})

	s.Run("expired", func() {
		later := requestcontext.WithTime(context.Background(), s.now.Add(2*time.Minute))
		_, err := s.svc.Verify(later, tok.AccessToken)
		s.ErrorIs(err, token.ErrInvalidToken)
		s.NotErrorIs(err, token.ErrRevokedToken)
	})
}

// =============================================================================
// Revoke
// =============================================================================

func (s *ServiceSuite) TestRevoke() {
	tok, err := s.svc.Issue(s.ctx(), token.IssueRequest{SubjectID: "subj-1"}, time.Hour)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Revoke(s.ctx(), tok.AccessToken))
	s.Require().NoError(s.svc.Revoke(s.ctx(), tok.AccessToken), "revocation is idempotent")

	_, err = s.svc.Verify(s.ctx(), tok.AccessToken)
	s.ErrorIs(err, token.ErrRevokedToken)
	s.False(errors.Is(err, token.ErrInvalidToken))

	events, _ := s.events.ListEventsSince(context.Background(), time.Time{})
	var types []audit.EventType
	for _, e := range events {
		types = append(types, e.EventType)
	}
	s.Contains(types, audit.EventTokenRevoked)
	s.Contains(types, audit.EventRevokedTokenUsed)
}

func (s *ServiceSuite) TestRevokeExpiredIsNoop() {
	tok, err := s.svc.Issue(s.ctx(), token.IssueRequest{SubjectID: "subj-1"}, time.Minute)
	s.Require().NoError(err)
	later := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
	s.NoError(s.svc.Revoke(later, tok.AccessToken))
	s.Equal(0, s.trl.Len())
}

func (s *ServiceSuite) TestRevokeRejectsForgedToken() {
	other, _ := token.New(token.NewSigner("other-key", "bastion", "bastion-api"), s.trl)
	forged, err := other.Issue(s.ctx(), token.IssueRequest{SubjectID: "x"}, time.Hour)
	s.Require().NoError(err)
	s.ErrorIs(s.svc.Revoke(s.ctx(), forged.AccessToken), token.ErrInvalidToken)
}

func (s *ServiceSuite) TestRevokeAll() {
	var raw []string
	for range 3 {
		tok, err := s.svc.Issue(s.ctx(), token.IssueRequest{SubjectID: "subj-1"}, time.Hour)
		s.Require().NoError(err)
		raw = append(raw, tok.AccessToken)
	}

	n, err := s.svc.RevokeAll(s.ctx(), raw)
	s.Require().NoError(err)
	s.Equal(3, n)
	for _, r := range raw {
		_, err := s.svc.Verify(s.ctx(), r)
		s.ErrorIs(err, token.ErrRevokedToken)
	}

	_, err = s.svc.RevokeAll(s.ctx(), []string{"garbage"})
	s.ErrorIs(err, token.ErrInvalidToken)
}

type failingStore struct{}

func (failingStore) RevokeToken(context.Context, string, time.Duration) error    { return assertErr }
func (failingStore) RevokeTokens(context.Context, []string, time.Duration) error { return assertErr }
func (failingStore) IsRevoked(context.Context, string) (bool, error)             { return false, assertErr }

var assertErr = errors.New("store down")

func (s *ServiceSuite) TestStoreFailureFailsClosed() {
	svc, err := token.New(token.NewSigner("test-signing-key", "bastion", "bastion-api"), failingStore{})
	s.Require().NoError(err)
	tok, err := svc.Issue(s.ctx(), token.IssueRequest{SubjectID: "subj-1"}, time.Hour)
	s.Require().NoError(err)

	_, err = svc.Verify(s.ctx(), tok.AccessToken)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
