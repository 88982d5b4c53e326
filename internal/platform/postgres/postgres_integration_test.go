//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bastion/internal/compliance"
	compliancepostgres "bastion/internal/compliance/store/postgres"
	"bastion/internal/platform/config"
	"bastion/internal/platform/postgres"
	"bastion/internal/token/store/revocation"
	"bastion/pkg/requestcontext"
	"bastion/pkg/testutil/containers"
)

func TestMigrateAndStores(t *testing.T) {
	pg := containers.NewPostgresContainer(t, "")
	ctx := context.Background()

	db, err := postgres.Open(ctx, config.PostgresConfig{DSN: pg.DSN, MaxOpenConns: 4, MaxIdleConns: 1, ConnMaxLifetime: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "schema must be re-appliable")
	require.NoError(t, db.Check(ctx))

	t.Run("revocations expire", func(t *testing.T) {
		trl := revocation.NewPostgresTRL(db.DB)
		require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Hour))
		revoked, err := trl.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("consent withdrawal commits atomically", func(t *testing.T) {
		svc, err := compliance.New(compliancepostgres.NewConsentStore(db.DB),
			compliancepostgres.NewRequestStore(db.DB), compliancepostgres.NewBreachStore(db.DB),
			compliance.WithTransactor(compliancepostgres.NewTransactor(db.DB)))
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Microsecond)
		cctx := requestcontext.WithTime(ctx, now)
		_, err = svc.RecordConsent(cctx, "subj-1", compliance.ConsentData{ConsentTypes: []string{"analytics", "marketing"}})
		require.NoError(t, err)

		n, err := svc.WithdrawConsent(cctx, "subj-1", []string{"marketing"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		ok, err := svc.HasActiveConsent(cctx, "subj-1", compliance.ConsentAnalytics)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = svc.HasActiveConsent(cctx, "subj-1", compliance.ConsentMarketing)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
