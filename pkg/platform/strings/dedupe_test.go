package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		input  []string
		mode   Mode
		expect []string
	}{
		{"nil input", nil, Exact, []string{}},
		{"blank entries dropped", []string{" ", "", "\t"}, Exact, []string{}},
		{"exact keeps case", []string{"jti-A", "jti-a", " jti-A "}, Exact, []string{"jti-A", "jti-a"}},
		{"fold merges case", []string{" Marketing", "marketing", "ANALYTICS"}, Fold, []string{"marketing", "analytics"}},
		{"order preserved", []string{"c", "a", "b", "a"}, Exact, []string{"c", "a", "b"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, Normalize(tc.input, tc.mode))
		})
	}
}

func TestFirstDuplicate(t *testing.T) {
	dup, ok := FirstDuplicate([]string{"admin", "auditor", " Admin"}, Fold)
	assert.True(t, ok)
	assert.Equal(t, "admin", dup)

	_, ok = FirstDuplicate([]string{"admin", " Admin"}, Exact)
	assert.False(t, ok)

	_, ok = FirstDuplicate(nil, Fold)
	assert.False(t, ok)
}
