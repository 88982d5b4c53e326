package revocation

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresMock(t *testing.T, now time.Time) (*PostgresTRL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresTRL(db, WithPostgresClock(func() time.Time { return now })), mock
}

func TestPostgresTRL_RevokeToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trl, mock := newPostgresMock(t, now)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO token_revocations (jti, expires_at)")).
		WithArgs("jti-1", now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, trl.RevokeToken(context.Background(), "jti-1", time.Hour))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTRL_RevokeTokensUsesSingleBatch(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trl, mock := newPostgresMock(t, now)

	mock.ExpectExec(regexp.QuoteMeta("SELECT unnest($1::text[]), $2")).
		WithArgs(pq.Array([]string{"a", "b"}), now.Add(time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, trl.RevokeTokens(context.Background(), []string{"a", "", "b"}, time.Minute))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTRL_IsRevoked(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta("SELECT expires_at FROM token_revocations WHERE jti = $1")

	t.Run("live entry", func(t *testing.T) {
		trl, mock := newPostgresMock(t, now)
		mock.ExpectQuery(query).WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(now.Add(time.Minute)))
		revoked, err := trl.IsRevoked(context.Background(), "a")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("expired entry", func(t *testing.T) {
		trl, mock := newPostgresMock(t, now)
		mock.ExpectQuery(query).WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(now.Add(-time.Minute)))
		revoked, err := trl.IsRevoked(context.Background(), "a")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("missing row", func(t *testing.T) {
		trl, mock := newPostgresMock(t, now)
		mock.ExpectQuery(query).WithArgs("a").WillReturnError(sql.ErrNoRows)
		revoked, err := trl.IsRevoked(context.Background(), "a")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("driver error propagates", func(t *testing.T) {
		trl, mock := newPostgresMock(t, now)
		mock.ExpectQuery(query).WithArgs("a").WillReturnError(assert.AnError)
		_, err := trl.IsRevoked(context.Background(), "a")
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestPostgresTRL_PurgeExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trl, mock := newPostgresMock(t, now)
	mock.ExpectExec("DELETE FROM token_revocations").WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := trl.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
