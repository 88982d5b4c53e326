package httptransport

import (
	"context"
	"errors"
	"fmt"

	"bastion/internal/token"
	auth "bastion/pkg/platform/middleware/auth"
)

type tokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*token.Claims, error)
}

// BearerVerifier adapts the token authority to the auth middleware, reporting
// revocation as auth.ErrRevoked.
type BearerVerifier struct {
	tokens tokenVerifier
}

func NewBearerVerifier(tokens tokenVerifier) *BearerVerifier {
	return &BearerVerifier{tokens: tokens}
}

func (v *BearerVerifier) VerifyBearer(ctx context.Context, raw string) (*auth.Claims, error) {
	claims, err := v.tokens.Verify(ctx, raw)
	if errors.Is(err, token.ErrRevokedToken) {
		return nil, fmt.Errorf("%w: %w", auth.ErrRevoked, err)
	}
	if err != nil {
		return nil, err
	}
	return &auth.Claims{SubjectID: claims.SubjectID, Roles: claims.Roles, JTI: claims.ID}, nil
}
