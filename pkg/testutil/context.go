package testutil

import (
	"net/http"

	"bastion/pkg/requestcontext"
)

// WithSubject simulates what the auth middleware does for an authenticated
// request: subject id, roles and token id land in the request context.
func WithSubject(req *http.Request, subjectID string, roles ...string) *http.Request {
	ctx := requestcontext.WithSubjectID(req.Context(), subjectID)
	if len(roles) > 0 {
		ctx = requestcontext.WithRoles(ctx, roles)
	}
	return req.WithContext(ctx)
}

// WithClientIP sets the caller IP and user agent as the metadata middleware would.
func WithClientIP(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
