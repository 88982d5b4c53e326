package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/requestcontext"
)

type stubVerifier struct {
	claims *Claims
	err    error
}

func (s stubVerifier) VerifyBearer(_ context.Context, _ string) (*Claims, error) {
	return s.claims, s.err
}

func serve(t *testing.T, h http.Handler, authHeader string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		r.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	body := map[string]string{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	}
	return w, body
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var gotSubject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = requestcontext.SubjectID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header is unauthorized", func(t *testing.T) {
		w, body := serve(t, RequireAuth(stubVerifier{}, logger)(next), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.True(t, strings.HasPrefix(body["error_description"], "Unauthorized"))
	})

	t.Run("revoked token is reported distinctly", func(t *testing.T) {
		w, body := serve(t, RequireAuth(stubVerifier{err: ErrRevoked}, logger)(next), "Bearer abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, body["error_description"], "revoked")
	})

	t.Run("invalid token", func(t *testing.T) {
		err := dErrors.New(dErrors.CodeUnauthorized, "invalid token")
		w, body := serve(t, RequireAuth(stubVerifier{err: err}, logger)(next), "Bearer abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, body["error_description"], "invalid or expired")
	})

	t.Run("valid token sets subject", func(t *testing.T) {
		v := stubVerifier{claims: &Claims{SubjectID: "subj-9", JTI: "j"}}
		w, _ := serve(t, RequireAuth(v, logger)(next), "Bearer abc")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "subj-9", gotSubject)
	})
}

func TestRequireRole(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireRole("admin", logger)(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Insufficient permissions")

	r = r.WithContext(requestcontext.WithRoles(r.Context(), []string{"admin"}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}
