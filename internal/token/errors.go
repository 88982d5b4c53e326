package token

import dErrors "bastion/pkg/domain-errors"

var (
	// ErrInvalidToken covers malformed, expired and badly signed tokens.
	ErrInvalidToken = dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
	// ErrRevokedToken is returned for a well formed token whose jti was revoked.
	ErrRevokedToken = dErrors.New(dErrors.CodeUnauthorized, "token has been revoked")
)
