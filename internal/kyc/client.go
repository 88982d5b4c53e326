package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClient talks to the verification provider's REST API. Outbound calls
// are paced by a token bucket so bursts of onboarding do not trip the
// provider's own throttling.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

type ClientOption func(*HTTPClient)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) { h.http = c }
}

func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(h *HTTPClient) {
		if perSecond > 0 && burst > 0 {
			h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify submits documents and subject data for verification.
func (c *HTTPClient) Verify(ctx context.Context, req VerificationRequest) (*ProviderResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classifyTransport(ctx, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, NewProviderError(ErrorBadData, "encode request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/verifications", bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError(ErrorInternal, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var result ProviderResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return nil, NewProviderError(ErrorBadData, "decode response", err)
	}
	switch result.Result {
	case ResultClear, ResultConsider, ResultUnidentified:
	default:
		return nil, NewProviderError(ErrorBadData, fmt.Sprintf("unknown result %q", result.Result), nil)
	}
	return &result, nil
}

// Check probes the provider health endpoint.
func (c *HTTPClient) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return classifyStatus(resp)
}

func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewProviderError(ErrorTimeout, "request timed out", err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewProviderError(ErrorTimeout, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewProviderError(ErrorInternal, "request canceled", err)
	}
	return NewProviderError(ErrorOutage, "transport failure", err)
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewProviderError(ErrorRateLimited, "provider rate limited", nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewProviderError(ErrorAuthentication, "provider rejected credentials", nil)
	case resp.StatusCode >= 500:
		return NewProviderError(ErrorOutage, fmt.Sprintf("provider returned %d", resp.StatusCode), nil)
	default:
		return NewProviderError(ErrorBadData, fmt.Sprintf("provider returned %d", resp.StatusCode), nil)
	}
}
