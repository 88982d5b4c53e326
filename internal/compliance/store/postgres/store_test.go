package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bastion/internal/compliance"
	"bastion/pkg/platform/sentinel"
	"bastion/pkg/requestcontext"
)

func newDB(t *testing.T) (*ConsentStore, *RequestStore, *BreachStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewConsentStore(db), NewRequestStore(db), NewBreachStore(db), mock
}

func TestWithdrawConsentIsAtomic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc, err := compliance.New(NewConsentStore(db), compliance.NewInMemoryRequestStore(), compliance.NewInMemoryBreachStore(),
		compliance.WithTransactor(NewTransactor(db)))
	require.NoError(t, err)

	granted := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	expires := granted.Add(365 * 24 * time.Hour)
	ctx := requestcontext.WithTime(context.Background(), granted.Add(24*time.Hour))
	listRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"consent_id", "subject_id", "consent_types", "legal_basis", "source", "granted_at", "expires_at", "withdrawn_at"}).
			AddRow("c-1", "subj-1", "{marketing,analytics}", "consent", "web", granted, expires, nil)
	}

	t.Run("replacement failure rolls back the withdrawal", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM consent_records").WithArgs("subj-1").WillReturnRows(listRows())
		mock.ExpectExec("UPDATE consent_records").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO consent_records").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err := svc.WithdrawConsent(ctx, "subj-1", []string{"marketing"})
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("withdraw and re-grant commit together", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM consent_records").WithArgs("subj-1").WillReturnRows(listRows())
		mock.ExpectExec("UPDATE consent_records").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO consent_records").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		n, err := svc.WithdrawConsent(ctx, "subj-1", []string{"marketing"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConsentRoundTrip(t *testing.T) {
	consents, _, _, mock := newDB(t)
	granted := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	expires := granted.Add(730 * 24 * time.Hour)

	mock.ExpectExec("INSERT INTO consent_records").
		WithArgs("c-1", "subj-1", sqlmock.AnyArg(), "consent", "web", granted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, consents.Save(context.Background(), &compliance.ConsentRecord{
		ConsentID:    "c-1",
		SubjectID:    "subj-1",
		ConsentTypes: []compliance.ConsentType{compliance.ConsentMarketing},
		LegalBasis:   compliance.BasisConsent,
		Source:       "web",
		GrantedAt:    granted,
		ExpiresAt:    &expires,
	}))

	rows := sqlmock.NewRows([]string{"consent_id", "subject_id", "consent_types", "legal_basis", "source", "granted_at", "expires_at", "withdrawn_at"}).
		AddRow("c-1", "subj-1", "{marketing,analytics}", "consent", "web", granted, expires, nil).
		AddRow("c-2", "subj-1", "{necessary}", "contract", "", granted, nil, nil)
	mock.ExpectQuery("FROM consent_records").WithArgs("subj-1").WillReturnRows(rows)

	got, err := consents.ListBySubject(context.Background(), "subj-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []compliance.ConsentType{compliance.ConsentMarketing, compliance.ConsentAnalytics}, got[0].ConsentTypes)
	require.NotNil(t, got[0].ExpiresAt)
	assert.Equal(t, expires, *got[0].ExpiresAt)
	assert.Nil(t, got[1].ExpiresAt)
	assert.Nil(t, got[1].WithdrawnAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkWithdrawnUnknown(t *testing.T) {
	consents, _, _, mock := newDB(t)
	mock.ExpectExec("UPDATE consent_records").WillReturnResult(sqlmock.NewResult(0, 0))
	err := consents.MarkWithdrawn(context.Background(), "nope", time.Now())
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestRequestSaveConflict(t *testing.T) {
	_, requests, _, mock := newDB(t)
	mock.ExpectExec("INSERT INTO data_subject_requests").WillReturnResult(sqlmock.NewResult(0, 0))
	err := requests.Save(context.Background(), &compliance.DataSubjectRequest{RequestID: "r-1"})
	assert.True(t, errors.Is(err, sentinel.ErrConflict))
}

func TestRequestFindByID(t *testing.T) {
	_, requests, _, mock := newDB(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	cols := []string{"request_id", "reference_number", "subject_id", "type", "status", "details", "created_at", "updated_at", "deadline"}

	mock.ExpectQuery("FROM data_subject_requests").WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("r-1", "DSR-2026-abcdef01", "subj-1", "erasure", "received", "", now, now, now.Add(720*time.Hour)))
	r, err := requests.FindByID(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, compliance.DSRErasure, r.Type)
	assert.Equal(t, compliance.DSRReceived, r.Status)

	mock.ExpectQuery("FROM data_subject_requests").WithArgs("r-2").WillReturnRows(sqlmock.NewRows(cols))
	_, err = requests.FindByID(context.Background(), "r-2")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestListOverdueFiltersInSQL(t *testing.T) {
	_, requests, _, mock := newDB(t)
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`status NOT IN \('completed', 'rejected'\) AND deadline < \$1`).WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"request_id", "reference_number", "subject_id", "type", "status", "details", "created_at", "updated_at", "deadline"}))
	got, err := requests.ListOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBreachSaveAndList(t *testing.T) {
	_, _, breaches, mock := newDB(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO breach_records").
		WithArgs("b-1", "lost laptop", "low", 3, sqlmock.AnyArg(), false, false, now, sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, breaches.Save(context.Background(), &compliance.BreachRecord{
		BreachID: "b-1", Description: "lost laptop", Severity: compliance.SeverityLow,
		AffectedRecordCount: 3, DiscoveredAt: now, RecordedAt: now,
	}))

	mock.ExpectQuery("FROM breach_records").WillReturnRows(
		sqlmock.NewRows([]string{"breach_id", "description", "severity", "affected_record_count", "affected_data_types",
			"notify_authority", "notify_subjects", "discovered_at", "authority_deadline", "recorded_at"}).
			AddRow("b-1", "lost laptop", "low", 3, "{}", false, false, now, nil, now))
	got, err := breaches.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].AuthorityDeadline.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
