package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"habit-ai-billing/internal/domain"
)

// AuthManager validates the bearer tokens the client apps attach to billing
// requests. Tokens are HMAC-signed session JWTs; the Subject is the user id.
type AuthManager struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl}
}

// Mint issues a session token for a user. Used by the seed tool and tests;
// production tokens come from the auth backend sharing the same secret.
func (a *AuthManager) Mint(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// UserFromRequest extracts and validates the bearer credential, returning
// the caller's user id. No anonymous access.
func (a *AuthManager) UserFromRequest(r *http.Request) (string, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return "", fmt.Errorf("%w: missing Authorization header", domain.ErrUnauthorized)
	}
	if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return "", fmt.Errorf("%w: malformed Authorization header", domain.ErrUnauthorized)
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}
