package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/alexjbarnes/ioco/internal/errors"
	"github.com/alexjbarnes/ioco/internal/models"
	"github.com/alexjbarnes/ioco/internal/token"
	"github.com/alexjbarnes/ioco/internal/transport"
)

// Policy selects when the coordinator refreshes the access token.
type Policy string

const (
	// PolicyProactive refreshes before a request when the access token is
	// within the horizon of expiry. A 401 forces a logout.
	PolicyProactive Policy = "proactive"

	// PolicyReactive never refreshes ahead of time. A 401 triggers one
	// refresh and one replay of the failed request.
	PolicyReactive Policy = "reactive"
)

// Outcome is the result of a refresh cycle as seen by every request that
// took part in it.
type Outcome int

const (
	OutcomeRefreshed Outcome = iota + 1
	OutcomeLoggedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeLoggedOut:
		return "logged_out"
	}

	return "unknown"
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.Tokens, error)
}

// Options configures a Coordinator.
type Options struct {
	Policy  Policy
	Horizon time.Duration
	Logger  *slog.Logger

	// Now is the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Coordinator keeps requests supplied with a usable access token. At
// most one refresh call is in flight at a time; requests that need a
// token while it runs wait for its outcome and are released in the
// order they arrived.
//
// It implements transport.RequestInterceptor and
// transport.ResponseInterceptor.
type Coordinator struct {
	session *Session
	store   CredentialStore
	policy  Policy
	horizon time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu         sync.Mutex
	refresher  Refresher
	refreshing bool
	waiters    []func(Outcome)
}

// NewCoordinator creates a coordinator over sess, persisting token
// changes to store.
func NewCoordinator(sess *Session, store CredentialStore, opts Options) *Coordinator {
	if opts.Policy == "" {
		opts.Policy = PolicyProactive
	}

	if opts.Horizon <= 0 {
		opts.Horizon = token.DefaultHorizon
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Coordinator{
		session: sess,
		store:   store,
		policy:  opts.Policy,
		horizon: opts.Horizon,
		now:     opts.Now,
		logger:  opts.Logger,
	}
}

// SetRefresher sets the refresh endpoint. The refresher usually sends
// through the same transport this coordinator is installed in, so it is
// bound after construction.
func (c *Coordinator) SetRefresher(r Refresher) {
	c.mu.Lock()
	c.refresher = r
	c.mu.Unlock()
}

// Session returns the session this coordinator owns.
func (c *Coordinator) Session() *Session {
	return c.session
}

// Policy returns the active refresh policy.
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// BeforeRequest attaches the bearer token and, under the proactive
// policy, refreshes it first when it is about to expire.
//
// The header is attached from one read of the session and the expiry
// check uses a second read. A refresh finishing between the two can
// leave this one request with the previous token; the 401 handling in
// AfterResponse covers that case.
func (c *Coordinator) BeforeRequest(req *http.Request) (*http.Request, error) {
	if transport.SkipAuth(req.Context()) {
		return req, nil
	}

	tokens := c.session.Tokens()
	if tokens.AccessToken == "" {
		return req, nil
	}

	setBearer(req, tokens.AccessToken)

	if c.policy != PolicyProactive {
		return req, nil
	}

	current := c.session.Tokens()
	if current.AccessToken == "" || current.RefreshToken == "" {
		return req, nil
	}

	if !token.IsExpiringSoonAt(current.AccessToken, c.horizon, c.now()) {
		return req, nil
	}

	if _, err := c.refresh(req.Context(), current.RefreshToken); err != nil {
		return nil, err
	}

	// Whatever the cycle left behind is what this request carries. After
	// a forced logout it goes out unauthenticated.
	if after := c.session.Tokens(); after.AccessToken != "" {
		setBearer(req, after.AccessToken)
	} else {
		req.Header.Del("Authorization")
	}

	return req, nil
}

// AfterResponse handles 401 responses. Proactive: force a logout.
// Reactive: refresh once and replay the request once, logging out when
// either step fails.
func (c *Coordinator) AfterResponse(req *http.Request, resp *http.Response, replay transport.Replay) (*http.Response, error) {
	if resp.StatusCode != http.StatusUnauthorized || transport.SkipAuth(req.Context()) {
		return resp, nil
	}

	if c.policy == PolicyReactive && !transport.Replayed(req.Context()) {
		return c.retryUnauthorized(req, resp, replay)
	}

	c.logger.Info("unauthorized response, logging out",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)
	c.Logout(fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, apperrors.ErrUnauthorized))

	return resp, nil
}

func (c *Coordinator) retryUnauthorized(req *http.Request, resp *http.Response, replay transport.Replay) (*http.Response, error) {
	current := c.session.Tokens()
	if current.RefreshToken == "" {
		c.Logout(fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, apperrors.ErrUnauthorized))
		return resp, nil
	}

	// Another request may already have refreshed since this one was
	// sent. Then the replay alone is enough.
	if bearer(req) == current.AccessToken {
		outcome, err := c.refresh(req.Context(), current.RefreshToken)
		if err != nil {
			drainAndClose(resp.Body)
			return nil, err
		}

		if outcome != OutcomeRefreshed {
			return resp, nil
		}
	}

	drainAndClose(resp.Body)

	c.logger.Debug("replaying request after refresh",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	return replay(req)
}

// refresh runs or joins a refresh cycle and returns its outcome. stale is
// the refresh token the caller observed; if the session has moved on
// since, no new cycle is started.
func (c *Coordinator) refresh(ctx context.Context, stale string) (Outcome, error) {
	c.mu.Lock()

	if c.refreshing {
		done := make(chan Outcome, 1)
		c.waiters = append(c.waiters, func(o Outcome) { done <- o })
		c.mu.Unlock()

		select {
		case o := <-done:
			return o, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	if current := c.session.Tokens(); current.RefreshToken != stale {
		c.mu.Unlock()

		if current.AccessToken == "" {
			return OutcomeLoggedOut, nil
		}

		return OutcomeRefreshed, nil
	}

	c.refreshing = true
	refresher := c.refresher
	c.mu.Unlock()

	// The cycle is shared by every waiter, so the leader's cancellation
	// must not decide it. The HTTP client timeout still bounds it.
	outcome := c.runRefresh(context.WithoutCancel(ctx), refresher, stale)

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false

	for _, release := range waiters {
		release(outcome)
	}
	c.mu.Unlock()

	return outcome, nil
}

func (c *Coordinator) runRefresh(ctx context.Context, refresher Refresher, refreshToken string) Outcome {
	if refresher == nil {
		c.Logout(errors.New("refreshing token: no refresher configured"))
		return OutcomeLoggedOut
	}

	c.logger.Debug("refreshing access token", slog.String("policy", string(c.policy)))

	tokens, err := refresher.Refresh(ctx, refreshToken)
	if err == nil && (tokens.AccessToken == "" || tokens.RefreshToken == "") {
		err = apperrors.ErrRefreshRejected
	}

	if err != nil {
		c.logger.Warn("token refresh failed, logging out", slog.String("error", err.Error()))
		c.Logout(fmt.Errorf("refreshing token: %w", err))

		return OutcomeLoggedOut
	}

	if !c.session.replaceTokens(tokens) {
		c.logger.Info("session ended during refresh, discarding new tokens")
		return OutcomeLoggedOut
	}

	if err := c.store.SetTokens(tokens.AccessToken, tokens.RefreshToken); err != nil {
		c.logger.Warn("failed to persist refreshed tokens", slog.String("error", err.Error()))
	}

	c.logger.Info("access token refreshed")

	return OutcomeRefreshed
}

// Logout clears the session and the persisted credentials. Listeners
// registered with Session.OnLogout run once per logged-in to logged-out
// transition. Store failures are logged and swallowed.
func (c *Coordinator) Logout(reason error) {
	was := c.session.clear()

	if err := c.store.ClearAuthData(); err != nil {
		c.logger.Warn("failed to clear stored credentials", slog.String("error", err.Error()))
	}

	if err := c.store.SetIsLoggedIn(false); err != nil {
		c.logger.Warn("failed to persist logged-out flag", slog.String("error", err.Error()))
	}

	if !was {
		return
	}

	if reason != nil {
		c.logger.Info("session logged out", slog.String("reason", reason.Error()))
	} else {
		c.logger.Info("session logged out")
	}

	c.session.notifyLogout(reason)
}

func setBearer(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
}

func bearer(req *http.Request) string {
	return strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	body.Close()
}
