package session

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/alexjbarnes/ioco/internal/errors"
	"github.com/alexjbarnes/ioco/internal/models"
)

// AuthAPI is the part of the remote API the login flow needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
	Logout(ctx context.Context) error
}

// Authenticator runs the explicit login and logout flows and restores a
// persisted session at startup.
type Authenticator struct {
	api   AuthAPI
	coord *Coordinator
}

// NewAuthenticator binds the login flow to a coordinator's session and
// credential store.
func NewAuthenticator(api AuthAPI, coord *Coordinator) *Authenticator {
	return &Authenticator{api: api, coord: coord}
}

// Restore loads persisted credentials into the session. The session is
// authenticated only when the logged-in flag is set and an access token
// exists. Read failures count as absent.
func (a *Authenticator) Restore() bool {
	store, logger := a.coord.store, a.coord.logger

	loggedIn, err := store.IsLoggedIn()
	if err != nil {
		logger.Warn("failed to read logged-in flag", slog.String("error", err.Error()))
		return false
	}

	if !loggedIn {
		return false
	}

	access, err := store.AccessToken()
	if err != nil {
		logger.Warn("failed to read access token", slog.String("error", err.Error()))
		return false
	}

	if access == "" {
		return false
	}

	refresh, err := store.RefreshToken()
	if err != nil {
		logger.Warn("failed to read refresh token", slog.String("error", err.Error()))
		refresh = ""
	}

	u, err := store.User()
	if err != nil {
		logger.Warn("failed to read stored user", slog.String("error", err.Error()))
		u = nil
	}

	a.coord.session.establish(models.Tokens{AccessToken: access, RefreshToken: refresh}, u)
	logger.Debug("restored session from credential store")

	return true
}

// Login authenticates with email and password and establishes the
// session. Persisting the credentials is best-effort.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	resp, err := a.api.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	tokens := resp.Tokens()
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, fmt.Errorf("logging in: %w: missing tokens", apperrors.ErrAPIResponse)
	}

	u := resp.User
	a.coord.session.establish(tokens, &u)

	if err := a.coord.store.SetAuthBundle(tokens, u); err != nil {
		a.coord.logger.Warn("failed to persist credentials", slog.String("error", err.Error()))
	}

	a.coord.logger.Info("logged in", slog.String("email", u.Email))

	return &u, nil
}

// Logout tells the server the session is over, then clears local state
// regardless of whether the server call succeeded.
func (a *Authenticator) Logout(ctx context.Context) error {
	if !a.coord.session.Authenticated() {
		a.coord.Logout(nil)
		return apperrors.ErrNotLoggedIn
	}

	if err := a.api.Logout(ctx); err != nil {
		a.coord.logger.Warn("server logout failed", slog.String("error", err.Error()))
	}

	a.coord.Logout(nil)

	return nil
}
