package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/alexjbarnes/ioco/internal/errors"
	"github.com/alexjbarnes/ioco/internal/models"
	"github.com/alexjbarnes/ioco/internal/transport"
	"github.com/tidwall/gjson"
)

// memberRoleID is the role every self-registered account receives.
const memberRoleID = 2

// Login authenticates with email and password. The request is sent
// without a bearer token and a 401 does not end the current session.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	req := models.LoginRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
	}

	var resp models.LoginResponse
	if err := c.do(transport.WithSkipAuth(ctx), http.MethodPost, "/auth/login", nil, req, &resp); err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return nil, fmt.Errorf("logging in: %w", apperrors.ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("logging in: %w", err)
	}

	return &resp, nil
}

// Register creates a member account. It does not log the new account in.
func (c *Client) Register(ctx context.Context, firstName, lastName, email, password string) (*models.LoginResponse, error) {
	req := models.RegisterRequest{
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Email:     strings.TrimSpace(email),
		Password:  password,
		RoleID:    memberRoleID,
	}

	var resp models.LoginResponse
	if err := c.do(transport.WithSkipAuth(ctx), http.MethodPost, "/auth/register", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("registering: %w", err)
	}

	return &resp, nil
}

// Logout invalidates the current session on the server.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}

	return nil
}

// Refresh exchanges a refresh token for a new token pair. It is sent
// outside session handling so it never carries the expiring bearer,
// never triggers a nested refresh and is never retried.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (models.Tokens, error) {
	body, err := c.send(transport.WithSkipAuth(ctx), http.MethodPost, "/auth/refresh", nil, models.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		// A 4xx answer is a refusal of the token itself.
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !IsTransient(err) {
			return models.Tokens{}, fmt.Errorf("refreshing token: %w: %w", apperrors.ErrRefreshRejected, err)
		}

		return models.Tokens{}, fmt.Errorf("refreshing token: %w", err)
	}

	// Both tokens must be present. A partial answer is treated the same
	// as a rejection rather than half-updating the session.
	fields := gjson.GetManyBytes(body, "data.accessToken", "data.refreshToken", "error.message")
	if msg := fields[2].String(); msg != "" {
		return models.Tokens{}, fmt.Errorf("refreshing token: %w: %s", apperrors.ErrRefreshRejected, sanitizeResponseBody([]byte(msg)))
	}

	tokens := models.Tokens{AccessToken: fields[0].String(), RefreshToken: fields[1].String()}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return models.Tokens{}, fmt.Errorf("refreshing token: %w: response missing tokens", apperrors.ErrRefreshRejected)
	}

	return tokens, nil
}

// ForgotPassword asks the server to mail a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp models.Message
	if err := c.do(transport.WithSkipAuth(ctx), http.MethodPost, "/auth/forgot-password", nil, models.ForgotPasswordRequest{Email: strings.TrimSpace(email)}, &resp); err != nil {
		return "", fmt.Errorf("requesting password reset: %w", err)
	}

	return resp.Message, nil
}

// ResetPassword sets a new password using the token from the reset mail.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	req := models.ResetPasswordRequest{Token: strings.TrimSpace(token), NewPassword: newPassword}

	var resp models.Message
	if err := c.do(transport.WithSkipAuth(ctx), http.MethodPost, "/auth/reset-password", nil, req, &resp); err != nil {
		return "", fmt.Errorf("resetting password: %w", err)
	}

	return resp.Message, nil
}
