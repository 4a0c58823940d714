// Package auth resolves optional Bearer identities. The auth provider
// itself (OAuth redirects, magic links) lives outside this service; we
// only verify the HS256 tokens it mints.
package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt"
)

// Identity is a signed-in user as seen by this service.
type Identity struct {
	UserID string
	Email  string
}

// Verifier checks Bearer tokens against a shared HMAC secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// FromAuthorization parses an Authorization header value. A missing,
// malformed, or unverifiable token yields a nil identity, not an error:
// anonymous use is a supported path.
func (v *Verifier) FromAuthorization(header string) *Identity {
	if v == nil || len(v.secret) == 0 {
		return nil
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" || token == header {
		return nil
	}
	id, err := v.Parse(token)
	if err != nil {
		return nil
	}
	return id
}

// Parse verifies a raw token and extracts the subject and email claims.
func (v *Verifier) Parse(raw string) (*Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	id := &Identity{}
	if sub, ok := claims["sub"].(string); ok {
		id.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if id.UserID == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return id, nil
}
