package credential

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericCode(t *testing.T) {
	g := NewCodeGenerator("Bastion")
	seen := map[string]struct{}{}
	for range 20 {
		code, err := g.NumericCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Regexp(t, `^[0-9]{6}$`, code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestTOTP(t *testing.T) {
	g := NewCodeGenerator("Bastion")
	enrollment, err := g.EnrollTOTP("subj-1")
	require.NoError(t, err)
	assert.Contains(t, enrollment.URL, "otpauth://totp/")

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	code, err := totp.GenerateCode(enrollment.Secret, now)
	require.NoError(t, err)

	assert.True(t, g.ValidateTOTP(code, enrollment.Secret, now))
	assert.True(t, g.ValidateTOTP(code, enrollment.Secret, now.Add(30*time.Second)), "one step of skew")
	assert.False(t, g.ValidateTOTP(code, enrollment.Secret, now.Add(5*time.Minute)))

	_, err = g.EnrollTOTP("")
	assert.Error(t, err)
}
