package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bastion/pkg/platform/sentinel"
)

func TestInMemoryTRL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trl := NewInMemoryTRL(func() time.Time { return now })

	t.Run("revoked until ttl passes", func(t *testing.T) {
		require.NoError(t, trl.RevokeToken(ctx, "a", time.Minute))
		revoked, err := trl.IsRevoked(ctx, "a")
		require.NoError(t, err)
		assert.True(t, revoked)

		now = now.Add(2 * time.Minute)
		revoked, _ = trl.IsRevoked(ctx, "a")
		assert.False(t, revoked)
	})

	t.Run("repeat revocation never shortens", func(t *testing.T) {
		require.NoError(t, trl.RevokeToken(ctx, "b", time.Hour))
		require.NoError(t, trl.RevokeToken(ctx, "b", time.Second))
		now = now.Add(time.Minute)
		revoked, _ := trl.IsRevoked(ctx, "b")
		assert.True(t, revoked)
	})

	t.Run("batch skips empty ids and prunes expired", func(t *testing.T) {
		require.NoError(t, trl.RevokeTokens(ctx, []string{"c", "", "d"}, time.Minute))
		for _, jti := range []string{"c", "d"} {
			revoked, _ := trl.IsRevoked(ctx, jti)
			assert.True(t, revoked, jti)
		}
		now = now.Add(2 * time.Hour)
		require.NoError(t, trl.RevokeToken(ctx, "e", time.Minute))
		assert.Equal(t, 1, trl.Len())
	})

	t.Run("non-positive ttl is rejected", func(t *testing.T) {
		err := trl.RevokeToken(ctx, "f", 0)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})
}
