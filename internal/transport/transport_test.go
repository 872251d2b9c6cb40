package transport

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(opts Options) *http.Client {
	opts.RetryWaitMin = time.Millisecond
	opts.RetryWaitMax = 5 * time.Millisecond
	opts.Logger = testLogger()
	return New(opts)
}

type beforeFunc func(*http.Request) (*http.Request, error)

func (f beforeFunc) BeforeRequest(r *http.Request) (*http.Request, error) { return f(r) }

type afterFunc func(*http.Request, *http.Response, Replay) (*http.Response, error)

func (f afterFunc) AfterResponse(req *http.Request, resp *http.Response, replay Replay) (*http.Response, error) {
	return f(req, resp, replay)
}

// --- Pipeline ordering ---

func TestPipeline_InterceptorOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "first,second", r.Header.Get("X-Trace"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var order []string
	appendTrace := func(name string) RequestInterceptor {
		return beforeFunc(func(r *http.Request) (*http.Request, error) {
			order = append(order, "before:"+name)
			if prev := r.Header.Get("X-Trace"); prev != "" {
				name = prev + "," + name
			}
			r.Header.Set("X-Trace", name)
			return r, nil
		})
	}
	after := func(name string) ResponseInterceptor {
		return afterFunc(func(_ *http.Request, resp *http.Response, _ Replay) (*http.Response, error) {
			order = append(order, "after:"+name)
			return resp, nil
		})
	}

	c := testClient(Options{
		Request:  []RequestInterceptor{appendTrace("first"), appendTrace("second")},
		Response: []ResponseInterceptor{after("first"), after("second")},
	})

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"before:first", "before:second", "after:first", "after:second"}, order)
}

func TestPipeline_DoesNotMutateCallerRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := testClient(Options{Request: []RequestInterceptor{
		beforeFunc(func(r *http.Request) (*http.Request, error) {
			r.Header.Set("Authorization", "Bearer secret")
			return r, nil
		}),
	}})

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestPipeline_BeforeErrorAbortsRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	boom := errors.New("boom")
	c := testClient(Options{Request: []RequestInterceptor{
		beforeFunc(func(r *http.Request) (*http.Request, error) { return nil, boom }),
	}})

	_, err := c.Post(srv.URL, "application/json", strings.NewReader(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(0), hits.Load())
}

func TestPipeline_ReplayResendsBody(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	var replayedSeen bool
	c := testClient(Options{Response: []ResponseInterceptor{
		afterFunc(func(req *http.Request, resp *http.Response, replay Replay) (*http.Response, error) {
			if Replayed(req.Context()) {
				replayedSeen = true
				return resp, nil
			}
			if resp.StatusCode == http.StatusUnauthorized {
				resp.Body.Close()
				return replay(req)
			}
			return resp, nil
		}),
	}})

	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader([]byte(`{"title":"standup"}`)))
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, replayedSeen)
	assert.Equal(t, []string{`{"title":"standup"}`, `{"title":"standup"}`}, bodies)
}

// --- Retries ---

func flakyServer(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRetry_IdempotentRequestRetried(t *testing.T) {
	srv, hits := flakyServer(t, 1)
	c := testClient(Options{RetryMax: 2})

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRetry_PostNotRetried(t *testing.T) {
	srv, hits := flakyServer(t, 1)
	c := testClient(Options{RetryMax: 2})

	resp, err := c.Post(srv.URL, "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetry_SkipAuthNotRetried(t *testing.T) {
	srv, hits := flakyServer(t, 1)
	c := testClient(Options{RetryMax: 2})

	req, err := http.NewRequestWithContext(WithSkipAuth(t.Context()), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), hits.Load())
}

func TestRetry_ExhaustedReturnsLastResponse(t *testing.T) {
	srv, hits := flakyServer(t, 10)
	c := testClient(Options{RetryMax: 2})

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

// --- Interceptors ---

func TestHeaders_SetsDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "go-cli", r.Header.Get("platform"))
		assert.Equal(t, "application/json;charset=utf-8", r.Header.Get("Content-Type"))
	}))
	defer srv.Close()

	c := testClient(Options{Request: []RequestInterceptor{Headers{Platform: "go-cli"}}})

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{}`))
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestHeaders_KeepsExplicitContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	out, err := Headers{}.BeforeRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", out.Header.Get("Content-Type"))
	assert.Empty(t, out.Header.Get("platform"))
}

func TestRequestID_GeneratesUUID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	out, err := RequestID{}.BeforeRequest(req)
	require.NoError(t, err)

	_, err = uuid.Parse(out.Header.Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestRequestID_KeepsExisting(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "fixed")
	out, err := RequestID{}.BeforeRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "fixed", out.Header.Get(RequestIDHeader))
}

func TestLogging_LogsResponse(t *testing.T) {
	var buf bytes.Buffer
	l := Logging{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	req := httptest.NewRequest(http.MethodGet, "/organizations/my", nil)
	req, err := l.BeforeRequest(req)
	require.NoError(t, err)

	_, err = l.AfterResponse(req, &http.Response{StatusCode: http.StatusOK}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "path=/organizations/my")
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, "elapsed=")
}

// --- Context markers ---

func TestContextMarkers(t *testing.T) {
	ctx := t.Context()
	assert.False(t, SkipAuth(ctx))
	assert.False(t, Replayed(ctx))

	assert.True(t, SkipAuth(WithSkipAuth(ctx)))
	assert.True(t, Replayed(WithReplayed(ctx)))
}

// --- Redirect policy ---

func TestSameHostRedirectPolicy(t *testing.T) {
	orig := httptest.NewRequest(http.MethodGet, "https://api.example.com/a", nil)

	same := httptest.NewRequest(http.MethodGet, "https://api.example.com/b", nil)
	assert.NoError(t, sameHostRedirectPolicy(same, []*http.Request{orig}))

	other := httptest.NewRequest(http.MethodGet, "https://evil.example.com/b", nil)
	err := sameHostRedirectPolicy(other, []*http.Request{orig})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different host")

	via := make([]*http.Request, maxRedirects)
	for i := range via {
		via[i] = orig
	}
	assert.Error(t, sameHostRedirectPolicy(same, via))
}
