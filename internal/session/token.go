package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenHints are claims read from the access token without verifying its
// signature. They are for display only; whether a token is still valid is
// known only after the next authenticated call.
type TokenHints struct {
	Subject   string     `json:"subject,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// readHints returns nil when the token is not a JWT.
func readHints(token string) *TokenHints {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}

	hints := &TokenHints{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		hints.ExpiresAt = &exp
	}

	return hints
}
