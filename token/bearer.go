package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// FromAccessToken wraps an opaque access token for use as a bearer credential.
// When the token is a JWT its exp claim becomes the Expiry; the signature is not checked,
// the client is not the party that trusts the token.
func FromAccessToken(raw string) *oauth2.Token {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if exp, ok := ExpiryOf(raw); ok {
		t.Expiry = exp
	}
	return t
}

// ExpiryOf returns the exp claim of an unverified JWT.
func ExpiryOf(raw string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
