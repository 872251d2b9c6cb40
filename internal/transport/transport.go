// Package transport builds the HTTP client used for every API call. Each
// request runs through an explicit pipeline: request interceptors in
// order, a retrying base transport, then response interceptors in order.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	defaultTimeout      = 15 * time.Second
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
)

// RequestInterceptor runs before a request is sent. It may return a
// modified request. An error aborts the round trip.
type RequestInterceptor interface {
	BeforeRequest(req *http.Request) (*http.Request, error)
}

// Replay re-sends a request through the whole pipeline. The request is
// marked with WithReplayed so interceptors can bound retries.
type Replay func(req *http.Request) (*http.Response, error)

// ResponseInterceptor runs after a response is received. It may return
// the response unchanged, a replacement from replay, or an error.
type ResponseInterceptor interface {
	AfterResponse(req *http.Request, resp *http.Response, replay Replay) (*http.Response, error)
}

type ctxKey int

const (
	ctxSkipAuth ctxKey = iota
	ctxReplayed
	ctxNoRetry
)

// WithSkipAuth marks a request as exempt from session handling. The
// token refresh call uses it so it cannot trigger a refresh itself.
func WithSkipAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxSkipAuth, true)
}

// SkipAuth reports whether the request context is exempt from session
// handling.
func SkipAuth(ctx context.Context) bool {
	v, _ := ctx.Value(ctxSkipAuth).(bool)
	return v
}

// WithReplayed marks a request as a replay of an earlier attempt.
func WithReplayed(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxReplayed, true)
}

// Replayed reports whether the request is a replay.
func Replayed(ctx context.Context) bool {
	v, _ := ctx.Value(ctxReplayed).(bool)
	return v
}

func withNoRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxNoRetry, true)
}

func noRetry(ctx context.Context) bool {
	v, _ := ctx.Value(ctxNoRetry).(bool)
	return v
}

// Options configures New.
type Options struct {
	// Timeout bounds the whole round trip including retries and replays.
	Timeout time.Duration

	// RetryMax is the retry budget for idempotent requests. Zero disables
	// retries.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	Request  []RequestInterceptor
	Response []ResponseInterceptor

	// Base is the innermost transport. Defaults to a pooled transport.
	Base http.RoundTripper

	Logger *slog.Logger
}

// Pipeline is an http.RoundTripper that applies interceptors around a
// base transport.
type Pipeline struct {
	before []RequestInterceptor
	after  []ResponseInterceptor
	next   http.RoundTripper
}

// NewPipeline composes interceptors around next.
func NewPipeline(next http.RoundTripper, before []RequestInterceptor, after []ResponseInterceptor) *Pipeline {
	return &Pipeline{before: before, after: after, next: next}
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified; interceptors operate on a clone.
func (p *Pipeline) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())

	for _, in := range p.before {
		next, err := in.BeforeRequest(out)
		if err != nil {
			if out.Body != nil {
				out.Body.Close()
			}

			return nil, err
		}

		out = next
	}

	sent := out
	if SkipAuth(sent.Context()) || !idempotent(sent.Method) {
		sent = sent.WithContext(withNoRetry(sent.Context()))
	}

	resp, err := p.next.RoundTrip(sent)
	if err != nil {
		return nil, err
	}

	for _, in := range p.after {
		resp, err = in.AfterResponse(out, resp, p.replay)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// replay rewinds the request body and runs the request through the
// pipeline again.
func (p *Pipeline) replay(req *http.Request) (*http.Response, error) {
	again := req.Clone(WithReplayed(req.Context()))

	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errors.New("replaying request: body cannot be rewound")
		}

		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replaying request: %w", err)
		}

		again.Body = body
	}

	return p.RoundTrip(again)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}

	return false
}

// checkRetry retries transient failures of idempotent requests only. The
// refresh call and non-idempotent writes get exactly one attempt.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if noRetry(ctx) {
		return false, nil
	}

	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host. This prevents the Authorization
// header from leaking to third-party domains.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// New returns an http.Client whose transport is the interceptor pipeline
// over a retrying base transport.
func New(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = defaultRetryWaitMin
	}

	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = defaultRetryWaitMax
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = opts.RetryWaitMin
	rc.RetryWaitMax = opts.RetryWaitMax
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.CheckRedirect = sameHostRedirectPolicy

	if opts.Base != nil {
		rc.HTTPClient.Transport = opts.Base
	}

	// The default logger writes to stderr unconditionally.
	rc.Logger = nil
	if opts.Logger != nil {
		rc.Logger = opts.Logger
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: NewPipeline(&retryablehttp.RoundTripper{Client: rc}, opts.Request, opts.Response),
	}
}
