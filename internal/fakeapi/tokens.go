package fakeapi

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer mints and validates HS256 access tokens.
type Issuer struct {
	secret []byte
	now    func() time.Time

	mu  sync.RWMutex
	ttl time.Duration
}

// NewIssuer creates an issuer signing with secret. now defaults to
// time.Now.
func NewIssuer(secret []byte, ttl time.Duration, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}

	return &Issuer{secret: secret, ttl: ttl, now: now}
}

// SetTTL changes the lifetime of tokens issued from now on.
func (i *Issuer) SetTTL(ttl time.Duration) {
	i.mu.Lock()
	i.ttl = ttl
	i.mu.Unlock()
}

// TTL returns the current token lifetime.
func (i *Issuer) TTL() time.Duration {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.ttl
}

// Issue mints an access token for userID that expires after ttl.
func (i *Issuer) Issue(userID int64, ttl time.Duration) (string, error) {
	now := i.now()

	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}

	return signed, nil
}

// Validate verifies the signature and expiry of raw and returns the
// user id it was issued to.
func (i *Issuer) Validate(raw string) (int64, error) {
	var claims jwt.RegisteredClaims

	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return 0, err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, errors.New("token subject is not a user id")
	}

	return id, nil
}
