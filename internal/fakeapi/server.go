package fakeapi

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alexjbarnes/ioco/internal/models"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Config configures a Server.
type Config struct {
	// Secret signs access tokens. A random secret is used when empty.
	Secret []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// BcryptCost is the cost for password hashes. Defaults to the
	// minimum cost, which keeps tests fast.
	BcryptCost int

	// BasePath mounts every route under a prefix, such as "/api".
	BasePath string

	Logger *slog.Logger

	// Now is the server clock. Defaults to time.Now.
	Now func() time.Time
}

// Server is the in-memory API.
type Server struct {
	Store *Store

	issuer     *Issuer
	refreshTTL time.Duration
	basePath   string
	logger     *slog.Logger
	now        func() time.Time

	refreshCalls atomic.Int64
	unauthorized atomic.Int64
	refreshDelay atomic.Int64
	rejectAll    atomic.Bool
}

// New creates a server with an empty store.
func New(cfg Config) *Server {
	if len(cfg.Secret) == 0 {
		cfg.Secret = []byte(RandomHex(32))
	}

	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}

	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Server{
		Store:      NewStore(cfg.BcryptCost),
		issuer:     NewIssuer(cfg.Secret, cfg.AccessTTL, cfg.Now),
		refreshTTL: cfg.RefreshTTL,
		basePath:   strings.TrimRight(cfg.BasePath, "/"),
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
}

// Close stops the store's cleanup goroutine.
func (s *Server) Close() {
	s.Store.Stop()
}

// Handler returns the routed API, mounted under the configured base path.
func (s *Server) Handler() http.Handler {
	mux := s.NewMux()
	if s.basePath == "" {
		return mux
	}

	return http.StripPrefix(s.basePath, mux)
}

// NewMux builds the HTTP mux. The auth endpoints except logout are
// public; everything else is behind the bearer token middleware.
func (s *Server) NewMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST /auth/reset-password", s.handleResetPassword)

	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.Middleware(h))
	}

	protected("POST /auth/logout", s.handleLogout)

	protected("GET /organizations", s.handleListOrgs)
	protected("GET /organizations/my", s.handleMyOrgs)
	protected("GET /organizations/detail/{id}", s.handleGetOrg)
	protected("POST /organizations", s.handleCreateOrg)
	protected("PUT /organizations/{id}", s.handleUpdateOrg)
	protected("DELETE /organizations/{id}", s.handleDeleteOrg)
	protected("POST /organizations/{id}/members", s.handleAddMember)
	protected("DELETE /organizations/{id}/members/{userId}", s.handleRemoveMember)

	protected("POST /invites", s.handleCreateInvite)
	protected("POST /invites/join", s.handleJoinInvite)

	protected("POST /calendar-events", s.handleCreateEvent)
	protected("GET /calendar-events/{id}", s.handleGetEvent)
	protected("PUT /calendar-events/{id}", s.handleUpdateEvent)
	protected("DELETE /calendar-events/{id}", s.handleDeleteEvent)
	protected("GET /calendar-events/my", s.handleMyEvents)
	protected("GET /calendar-events/my/availability", s.handleAvailability)
	protected("GET /calendar-events/organization/{id}", s.handleOrgEvents)
	protected("GET /calendar-events/organization/{id}/date-range", s.handleDateRange)
	protected("GET /calendar-events/organization/{id}/calendar-view", s.handleCalendarView)
	protected("GET /calendar-events/organization/{id}/all-members", s.handleAllMembers)
	protected("GET /calendar-events/organization/{id}/free-slots", s.handleFreeSlots)

	return mux
}

// SetAccessTTL changes the lifetime of access tokens issued from now on.
func (s *Server) SetAccessTTL(ttl time.Duration) {
	s.issuer.SetTTL(ttl)
}

// SetRefreshDelay makes every refresh call wait d before answering.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// RejectRefresh makes every refresh call fail with 401 while on.
func (s *Server) RejectRefresh(on bool) {
	s.rejectAll.Store(on)
}

// RefreshCalls returns how many refresh requests were received.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// UnauthorizedResponses returns how many requests were rejected by the
// bearer middleware.
func (s *Server) UnauthorizedResponses() int64 {
	return s.unauthorized.Load()
}

// IssueTokens mints a token pair for userID as a successful login would.
func (s *Server) IssueTokens(userID int64) (models.Tokens, error) {
	return s.issueTokens(userID, s.issuer.TTL())
}

// IssueTokensTTL mints a token pair whose access token lives for ttl.
func (s *Server) IssueTokensTTL(userID int64, ttl time.Duration) (models.Tokens, error) {
	return s.issueTokens(userID, ttl)
}

func (s *Server) issueTokens(userID int64, ttl time.Duration) (models.Tokens, error) {
	access, err := s.issuer.Issue(userID, ttl)
	if err != nil {
		return models.Tokens{}, err
	}

	refresh := RandomHex(32)
	s.Store.SaveRefresh(refresh, userID, s.now().Add(s.refreshTTL))

	return models.Tokens{AccessToken: access, RefreshToken: refresh}, nil
}
