package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errExpired = errors.New("token expired")

// Signer creates and parses HS256 tokens.
type Signer struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewSigner(signingKey, issuer, audience string) *Signer {
	return &Signer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Sign returns a signed token with a fresh jti.
func (s *Signer) Sign(req IssueRequest, now time.Time, ttl time.Duration) (string, *Claims, error) {
	claims := &Claims{
		SubjectID: req.SubjectID,
		Roles:     req.Roles,
		Scope:     req.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.SubjectID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse validates signature, issuer, audience and time claims at now.
// Expired tokens return errExpired so callers can log the reason.
func (s *Signer) Parse(tokenString string, now time.Time) (*Claims, error) {
	return s.parse(tokenString,
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
}

// ParseUnvalidated checks only the signature, so expired tokens can still be
// inspected for revocation.
func (s *Signer) ParseUnvalidated(tokenString string) (*Claims, error) {
	return s.parse(tokenString, jwt.WithoutClaimsValidation())
}

func (s *Signer) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errExpired
		}
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
