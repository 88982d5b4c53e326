package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const TypeBearer = "Bearer"

// Claims are the access token claims. ID (jti) is always set by Issue.
type Claims struct {
	SubjectID string   `json:"sub_id"`
	Roles     []string `json:"roles,omitempty"`
	Scope     string   `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// IssueRequest carries the caller-controlled claims.
type IssueRequest struct {
	SubjectID string
	Roles     []string
	Scope     string
}

// Token is an issued bearer token.
type Token struct {
	ID          string    `json:"jti"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int64     `json:"expires_in"`
}
