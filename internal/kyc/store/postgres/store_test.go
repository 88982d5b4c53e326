package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bastion/internal/kyc"
	"bastion/pkg/platform/sentinel"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestSaveUpsertsProfile(t *testing.T) {
	store, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO kyc_profiles").
		WithArgs("subj-1", "standard", sqlmock.AnyArg(), 80, "low", sqlmock.AnyArg(), "consider", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Save(context.Background(), &kyc.Profile{
		SubjectID:         "subj-1",
		Tier:              kyc.TierStandard,
		RequiredDocuments: []string{"government_id", "selfie", "proof_of_address"},
		RiskScore:         80,
		RiskLevel:         kyc.RiskLow,
		Factors:           []string{kyc.FactorManualReview},
		ProviderResult:    kyc.ResultConsider,
		VerifiedAt:        now,
		UpdatedAt:         now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBySubject(t *testing.T) {
	store, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"subject_id", "tier", "required_documents", "risk_score", "risk_level", "factors", "provider_result", "verified_at", "updated_at"}).
		AddRow("subj-1", "basic", "{government_id,selfie}", 100, "low", "{}", "clear", now, now)
	mock.ExpectQuery("SELECT subject_id, tier").WithArgs("subj-1").WillReturnRows(rows)

	p, err := store.FindBySubject(context.Background(), "subj-1")
	require.NoError(t, err)
	assert.Equal(t, kyc.TierBasic, p.Tier)
	assert.Equal(t, pq.StringArray{"government_id", "selfie"}, pq.StringArray(p.RequiredDocuments))
	assert.Equal(t, now, p.VerifiedAt)
}

func TestFindBySubjectNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("SELECT subject_id, tier").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"subject_id"}))

	_, err := store.FindBySubject(context.Background(), "missing")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}
