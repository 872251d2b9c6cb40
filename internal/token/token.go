// Package token inspects access tokens on the client side. Signatures are
// never verified here: the client only needs the expiry to decide when to
// refresh, and the server stays the authority on validity.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultHorizon is how long before expiry a token counts as expiring.
const DefaultHorizon = 5 * time.Minute

var parser = jwt.NewParser()

// ExpiresAt decodes the exp claim of a JWT without verifying it. The
// second return is false for malformed tokens and tokens without exp.
func ExpiresAt(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// IsExpiringSoon reports whether raw expires within horizon of now.
// Undecodable tokens are reported as expiring.
func IsExpiringSoon(raw string, horizon time.Duration) bool {
	return IsExpiringSoonAt(raw, horizon, time.Now())
}

// IsExpiringSoonAt is IsExpiringSoon with an explicit clock.
func IsExpiringSoonAt(raw string, horizon time.Duration, now time.Time) bool {
	exp, ok := ExpiresAt(raw)
	if !ok {
		return true
	}

	return exp.Sub(now) <= horizon
}
