package models

import "time"

// RateLimitExceededResponse is the API response when a limit is exceeded.
type RateLimitExceededResponse struct {
	Error      string `json:"error"` // "rate_limit_exceeded" or "ip_blocked"
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"` // seconds
}

// BlockResponse is returned by the admin block endpoints.
type BlockResponse struct {
	IP        string     `json:"ip"`
	Blocked   bool       `json:"blocked"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
