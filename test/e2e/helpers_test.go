package e2e_test

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexjbarnes/ioco/internal/api"
	"github.com/alexjbarnes/ioco/internal/fakeapi"
	"github.com/alexjbarnes/ioco/internal/session"
	"github.com/alexjbarnes/ioco/internal/state"
	"github.com/alexjbarnes/ioco/internal/transport"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "correct horse battery staple"
)

// backend is the fake API behind a real HTTP listener.
type backend struct {
	URL    string
	Server *fakeapi.Server
}

func newBackend(t *testing.T) *backend {
	t.Helper()

	srv := fakeapi.New(fakeapi.Config{BasePath: "/api"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})

	_, err := srv.Store.AddUser("Ada", "Lovelace", testEmail, testPassword, 2)
	require.NoError(t, err)

	return &backend{URL: ts.URL + "/api", Server: srv}
}

type stackOptions struct {
	policy    session.Policy
	horizon   time.Duration
	timeout   time.Duration
	statePath string
}

// stack is the client side wired the way cmd/ioco wires it: credential
// store, session coordinator, interceptor pipeline and typed API.
type stack struct {
	State   *state.State
	Coord   *session.Coordinator
	Auth    *session.Authenticator
	API     *api.Client
	Logouts atomic.Int32
	Reasons chan error
}

func newStack(t *testing.T, b *backend, opts stackOptions) *stack {
	t.Helper()

	if opts.statePath == "" {
		opts.statePath = filepath.Join(t.TempDir(), "state.db")
	}

	if opts.timeout == 0 {
		opts.timeout = 5 * time.Second
	}

	st, err := state.LoadAt(opts.statePath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	coord := session.NewCoordinator(session.New(), st, session.Options{
		Policy:  opts.policy,
		Horizon: opts.horizon,
		Logger:  logger,
	})

	wireLog := transport.Logging{Logger: logger}
	httpClient := transport.New(transport.Options{
		Timeout:  opts.timeout,
		RetryMax: 1,
		Request: []transport.RequestInterceptor{
			transport.Headers{Platform: "e2e"},
			transport.RequestID{},
			wireLog,
			coord,
		},
		Response: []transport.ResponseInterceptor{coord, wireLog},
		Logger:   logger,
	})

	client := api.NewClient(httpClient, b.URL)
	coord.SetRefresher(client)

	s := &stack{
		State:   st,
		Coord:   coord,
		Auth:    session.NewAuthenticator(client, coord),
		API:     client,
		Reasons: make(chan error, 16),
	}

	coord.Session().OnLogout(func(reason error) {
		s.Logouts.Add(1)
		s.Reasons <- reason
	})

	return s
}

func (s *stack) login(t *testing.T) {
	t.Helper()
	_, err := s.Auth.Login(t.Context(), testEmail, testPassword)
	require.NoError(t, err)
}

func (s *stack) storedTokens(t *testing.T) (string, string) {
	t.Helper()

	access, err := s.State.AccessToken()
	require.NoError(t, err)

	refresh, err := s.State.RefreshToken()
	require.NoError(t, err)

	return access, refresh
}
