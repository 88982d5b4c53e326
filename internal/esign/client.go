package esign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bastion/pkg/platform/sentinel"
)

// HTTPClient is a REST client for the e-signature provider.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type createEnvelopeRequest struct {
	Signers  []Signer `json:"signers"`
	Document Document `json:"document"`
}

type createEnvelopeResponse struct {
	EnvelopeID string `json:"envelope_id"`
}

func (c *HTTPClient) CreateEnvelope(ctx context.Context, signers []Signer, doc Document) (string, error) {
	body, err := json.Marshal(createEnvelopeRequest{Signers: signers, Document: doc})
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	var out createEnvelopeResponse
	if err := c.do(ctx, http.MethodPost, "/v1/envelopes", bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	if out.EnvelopeID == "" {
		return "", fmt.Errorf("provider returned no envelope id")
	}
	return out.EnvelopeID, nil
}

func (c *HTTPClient) GetStatus(ctx context.Context, envelopeID string) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/v1/envelopes/"+url.PathEscape(envelopeID), nil, &out); err != nil {
		return nil, err
	}
	if out.EnvelopeID == "" {
		out.EnvelopeID = envelopeID
	}
	return &out, nil
}

// Check probes the provider health endpoint.
func (c *HTTPClient) Check(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: provider returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		return fmt.Errorf("provider returned %d", resp.StatusCode)
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
