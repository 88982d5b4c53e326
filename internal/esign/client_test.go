package esign

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bastion/pkg/platform/sentinel"
)

func TestHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/envelopes":
			var req createEnvelopeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []byte("pdf"), req.Document.Content)
			_ = json.NewEncoder(w).Encode(createEnvelopeResponse{EnvelopeID: "env-9"})
		case r.URL.Path == "/v1/envelopes/env-9":
			_, _ = w.Write([]byte(`{"status":"sent","signers":[{"email":"a@example.com","status":"delivered"}]}`))
		case r.URL.Path == "/v1/envelopes/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "key", time.Second)
	ctx := context.Background()

	id, err := c.CreateEnvelope(ctx, []Signer{{Name: "A", Email: "a@example.com"}}, Document{Name: "d", ContentType: "application/pdf", Content: []byte("pdf")})
	require.NoError(t, err)
	assert.Equal(t, "env-9", id)

	status, err := c.GetStatus(ctx, "env-9")
	require.NoError(t, err)
	assert.Equal(t, "env-9", status.EnvelopeID)
	assert.Equal(t, StatusSent, status.Status)
	require.Len(t, status.Signers, 1)
	assert.Equal(t, StatusDelivered, status.Signers[0].Status)

	_, err = c.GetStatus(ctx, "nope")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = c.GetStatus(ctx, "broken")
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
