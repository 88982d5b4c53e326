package models

import (
	"fmt"
	"strings"
	"time"
)

// Route names a rate limit table entry.
type Route string

const (
	// RouteGeneral: loose limit for unclassified traffic
	RouteGeneral Route = "general"
	// RouteAuth: credential endpoints; only failed attempts count
	RouteAuth Route = "auth"
	// RouteAPI: authenticated API calls
	RouteAPI Route = "api"
	// RouteKYC: identity verification submissions
	RouteKYC Route = "kyc"
)

// IsValid checks if the route is one of the supported values.
func (r Route) IsValid() bool {
	switch r {
	case RouteGeneral, RouteAuth, RouteAPI, RouteKYC:
		return true
	}
	return false
}

// Limit is a fixed window allowance.
type Limit struct {
	Max    int           `json:"max"`
	Window time.Duration `json:"window"`
	// SkipSuccessful refunds requests that complete without a client or
	// server error, so only failures consume the allowance.
	SkipSuccessful bool `json:"skip_successful"`
}

// DefaultLimits is the static route table.
func DefaultLimits() map[Route]Limit {
	return map[Route]Limit{
		RouteGeneral: {Max: 100, Window: 15 * time.Minute},
		RouteAuth:    {Max: 5, Window: 15 * time.Minute, SkipSuccessful: true},
		RouteAPI:     {Max: 60, Window: time.Minute},
		RouteKYC:     {Max: 3, Window: 24 * time.Hour},
	}
}

// Request identifies the caller for one check.
type Request struct {
	Route      Route
	SubjectID  string
	IP         string
	Identifier string
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Key        string    `json:"-"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	Adaptive   bool      `json:"adaptive,omitempty"`
}

// Override is a stricter limit installed after repeated violations.
type Override struct {
	Max       int           `json:"max"`
	Window    time.Duration `json:"window"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Active reports whether the override still applies at now.
func (o Override) Active(now time.Time) bool {
	return now.Before(o.ExpiresAt)
}

// Block records a blocked client address.
type Block struct {
	IP        string    `json:"ip"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExceededError is returned when a request is rejected. RetryAfter is the
// time until the caller may try again.
type ExceededError struct {
	Route      Route
	RetryAfter time.Duration
	Blocked    bool
	Reason     string
}

func (e *ExceededError) Error() string {
	if e.Blocked {
		return fmt.Sprintf("rate limit: address blocked (%s)", e.Reason)
	}
	return fmt.Sprintf("rate limit exceeded for %s route, retry after %s", e.Route, e.RetryAfter)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum one.
func (e *ExceededError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	return max(1, secs)
}

// NormalizeIdentifier lowercases and trims a submitted login identifier.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
