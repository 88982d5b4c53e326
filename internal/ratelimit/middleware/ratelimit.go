package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"bastion/internal/ratelimit/models"
	"bastion/pkg/platform/httputil"
	"bastion/pkg/platform/privacy"
	"bastion/pkg/requestcontext"
)

// maxIdentifierPeek caps how much of an auth request body is read to find
// the submitted login identifier.
const maxIdentifierPeek = 16 << 10

type RateLimiter interface {
	Check(ctx context.Context, req models.Request) (*models.Result, error)
	Refund(ctx context.Context, key string) error
	LimitFor(route models.Route) (models.Limit, bool)
	BlockStatus(ctx context.Context, ip string) (*models.Block, error)
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit enforces the route's limit. It must run after the client metadata
// middleware, and after authentication on routes that key by subject.
func (m *Middleware) Limit(route models.Route) func(http.Handler) http.Handler {
	limit, _ := m.limiter.LimitFor(route)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			req := models.Request{
				Route:     route,
				SubjectID: requestcontext.SubjectID(ctx),
				IP:        requestcontext.ClientIP(ctx),
			}
			if route == models.RouteAuth && req.SubjectID == "" {
				req.Identifier = peekIdentifier(r)
			}

			result, err := m.limiter.Check(ctx, req)
			if exceeded, ok := asExceeded(err); ok {
				addRateLimitHeaders(w, result)
				writeRateLimitExceeded(w, exceeded)
				return
			}
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"route", route,
					"ip_prefix", privacy.AnonymizeIP(req.IP),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !limit.SkipSuccessful {
				next.ServeHTTP(w, r)
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if status := ww.Status(); status == 0 || status < http.StatusBadRequest {
				if err := m.limiter.Refund(ctx, result.Key); err != nil {
					m.logger.WarnContext(ctx, "failed to refund successful request", "error", err, "route", route)
				}
			}
		})
	}
}

// RejectBlocked answers 403 for a blocked client address and touches no
// counter. It goes ahead of authentication so a blocked address never costs a
// token verification; Limit still runs afterwards to key by subject.
func (m *Middleware) RejectBlocked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		if m.disabled || ip == "" {
			next.ServeHTTP(w, r)
			return
		}
		block, err := m.limiter.BlockStatus(ctx, ip)
		if err != nil {
			m.logger.WarnContext(ctx, "failed to check blocked address",
				"error", err,
				"ip_prefix", privacy.AnonymizeIP(ip),
			)
			next.ServeHTTP(w, r)
			return
		}
		if block == nil {
			next.ServeHTTP(w, r)
			return
		}
		writeRateLimitExceeded(w, &models.ExceededError{
			RetryAfter: block.ExpiresAt.Sub(requestcontext.Now(ctx)),
			Blocked:    true,
			Reason:     block.Reason,
		})
	})
}

func asExceeded(err error) (*models.ExceededError, bool) {
	exceeded, ok := err.(*models.ExceededError)
	return exceeded, ok
}

// peekIdentifier reads the login identifier from a JSON body and restores
// the body for the next handler.
func peekIdentifier(r *http.Request) string {
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	peeked, err := io.ReadAll(io.LimitReader(r.Body, maxIdentifierPeek))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(peeked), r.Body), r.Body}
	if err != nil || len(peeked) == 0 {
		return ""
	}
	var payload struct {
		Email      string `json:"email"`
		Username   string `json:"username"`
		Identifier string `json:"identifier"`
	}
	if json.Unmarshal(peeked, &payload) != nil {
		return ""
	}
	for _, candidate := range []string{payload.Email, payload.Username, payload.Identifier} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return ""
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if !result.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, exceeded *models.ExceededError) {
	retryAfter := exceeded.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	resp := &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: retryAfter,
	}
	if exceeded.Blocked {
		resp.Error = "ip_blocked"
		resp.Message = "Requests from this address are temporarily blocked."
		httputil.WriteJSON(w, http.StatusForbidden, resp)
		return
	}
	httputil.WriteJSON(w, http.StatusTooManyRequests, resp)
}
