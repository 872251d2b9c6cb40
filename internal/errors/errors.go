package errors

import "errors"

// Client errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrInvalidInviteCode  = errors.New("invite code is required")
)

// Session errors.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRefreshRejected = errors.New("token refresh rejected")
)

// Server/transport errors.
var (
	ErrAPIRequest  = errors.New("API request failed")
	ErrAPIResponse = errors.New("unexpected API response")
)
