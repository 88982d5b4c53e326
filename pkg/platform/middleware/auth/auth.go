package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/platform/httputil"
	"bastion/pkg/requestcontext"
)

// Claims is the subset of verified token claims the middleware needs.
type Claims struct {
	SubjectID string
	Roles     []string
	JTI       string
}

// TokenVerifier validates a bearer token, including its revocation status.
type TokenVerifier interface {
	VerifyBearer(ctx context.Context, token string) (*Claims, error)
}

// ErrRevoked lets verifiers report revocation distinctly from other failures.
var ErrRevoked = errors.New("token revoked")

// RequireAuth rejects requests without a valid bearer token and stores the
// caller identity in the request context.
func RequireAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized: missing or invalid Authorization header"))
				return
			}

			claims, err := verifier.VerifyBearer(ctx, strings.TrimSpace(token))
			if err != nil {
				if errors.Is(err, ErrRevoked) {
					logger.WarnContext(ctx, "unauthorized access - token revoked",
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized: token has been revoked"))
					return
				}
				if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					logger.ErrorContext(ctx, "failed to verify token",
						"error", err,
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to validate token"))
					return
				}
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized: invalid or expired token"))
				return
			}

			ctx = requestcontext.WithSubjectID(ctx, claims.SubjectID)
			ctx = requestcontext.WithRoles(ctx, claims.Roles)
			ctx = requestcontext.WithTokenID(ctx, claims.JTI)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated callers lacking role with 403.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !requestcontext.HasRole(ctx, role) {
				logger.WarnContext(ctx, "forbidden - missing role",
					"role", role,
					"subject_id", requestcontext.SubjectID(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Insufficient permissions: "+role+" role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
