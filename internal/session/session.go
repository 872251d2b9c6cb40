// Package session owns the client's authentication state and the
// coordinator that keeps outgoing requests supplied with a valid access
// token.
package session

import (
	"sync"

	"github.com/alexjbarnes/ioco/internal/models"
)

// Session is the in-memory authentication state for one client process.
// The token pair is always read and replaced as a unit.
type Session struct {
	mu            sync.RWMutex
	tokens        models.Tokens
	user          *models.User
	authenticated bool
	listeners     []func(reason error)
}

// New returns a logged-out session.
func New() *Session {
	return &Session{}
}

// Tokens returns the current token pair.
func (s *Session) Tokens() models.Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// User returns a copy of the logged-in user's profile, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}

	u := *s.user

	return &u
}

// Authenticated reports whether the session is logged in. It flips to
// false on every forced or explicit logout.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// OnLogout registers fn to run after the session transitions from
// logged in to logged out. reason is nil for an explicit logout.
func (s *Session) OnLogout(fn func(reason error)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// establish logs the session in with a fresh token pair and profile.
func (s *Session) establish(tokens models.Tokens, u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = tokens
	s.user = u
	s.authenticated = true
}

// replaceTokens swaps the token pair after a refresh. It refuses when the
// session was logged out while the refresh was in flight, so a late
// refresh cannot resurrect a dead session.
func (s *Session) replaceTokens(tokens models.Tokens) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authenticated {
		return false
	}

	s.tokens = tokens

	return true
}

// clear drops all credentials and reports whether the session was
// logged in before the call.
func (s *Session) clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	was := s.authenticated
	s.tokens = models.Tokens{}
	s.user = nil
	s.authenticated = false

	return was
}

func (s *Session) notifyLogout(reason error) {
	s.mu.RLock()
	listeners := append([]func(error){}, s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(reason)
	}
}
