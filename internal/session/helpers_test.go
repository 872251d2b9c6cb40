package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexjbarnes/ioco/internal/models"
	"github.com/alexjbarnes/ioco/internal/state"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *state.State {
	t.Helper()
	s, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// jwtExpiring returns an HS256 token whose exp is d from now.
func jwtExpiring(t *testing.T, d time.Duration) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"exp": time.Now().Add(d).Unix(),
		"jti": time.Now().UnixNano(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// fakeRefresher counts calls and can hold every call until released.
type fakeRefresher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	tokens  models.Tokens
	err     error

	mu      sync.Mutex
	seen    []string
	ctxErrs []error
}

func newFakeRefresher(tokens models.Tokens) *fakeRefresher {
	return &fakeRefresher{tokens: tokens, started: make(chan struct{}, 16)}
}

// blocking makes Refresh wait until unblock is called.
func (f *fakeRefresher) blocking() *fakeRefresher {
	f.release = make(chan struct{})
	return f
}

func (f *fakeRefresher) unblock() {
	close(f.release)
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (models.Tokens, error) {
	f.calls.Add(1)

	f.mu.Lock()
	f.seen = append(f.seen, refreshToken)
	f.mu.Unlock()

	f.started <- struct{}{}

	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()

	return f.tokens, f.err
}

func (f *fakeRefresher) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh never started")
	}
}

type harness struct {
	coord     *Coordinator
	session   *Session
	store     *state.State
	refresher *fakeRefresher
	logouts   *atomic.Int32
	reasons   chan error
}

// newHarness builds a coordinator over a logged-in session holding the
// given tokens.
func newHarness(t *testing.T, policy Policy, tokens models.Tokens, refresher *fakeRefresher) *harness {
	t.Helper()

	store := testStore(t)
	require.NoError(t, store.SetAuthBundle(tokens, models.User{ID: 7, Email: "ada@example.com"}))

	sess := New()
	sess.establish(tokens, &models.User{ID: 7, Email: "ada@example.com"})

	var logouts atomic.Int32
	reasons := make(chan error, 16)
	sess.OnLogout(func(reason error) {
		logouts.Add(1)
		reasons <- reason
	})

	coord := NewCoordinator(sess, store, Options{Policy: policy, Logger: testLogger()})
	if refresher != nil {
		coord.SetRefresher(refresher)
	}

	return &harness{
		coord:     coord,
		session:   sess,
		store:     store,
		refresher: refresher,
		logouts:   &logouts,
		reasons:   reasons,
	}
}

func (h *harness) waiterCount() int {
	h.coord.mu.Lock()
	defer h.coord.mu.Unlock()
	return len(h.coord.waiters)
}

func newRequest(t *testing.T, ctx context.Context) *http.Request {
	t.Helper()
	return httptest.NewRequestWithContext(ctx, http.MethodGet, "http://api.test/organizations/my", nil)
}

type beforeResult struct {
	req *http.Request
	err error
}

// goBefore runs BeforeRequest in a goroutine.
func (h *harness) goBefore(t *testing.T, ctx context.Context) <-chan beforeResult {
	t.Helper()
	out := make(chan beforeResult, 1)
	req := newRequest(t, ctx)
	go func() {
		r, err := h.coord.BeforeRequest(req)
		out <- beforeResult{req: r, err: err}
	}()
	return out
}

func recv(t *testing.T, ch <-chan beforeResult) beforeResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("BeforeRequest never returned")
		return beforeResult{}
	}
}
