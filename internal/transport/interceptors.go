package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries a per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Headers sets the headers every API request carries.
type Headers struct {
	Platform string
}

// BeforeRequest sets Accept, platform, and a JSON Content-Type when the
// request has a body and no type yet.
func (h Headers) BeforeRequest(req *http.Request) (*http.Request, error) {
	req.Header.Set("Accept", "application/json")

	if h.Platform != "" {
		req.Header.Set("platform", h.Platform)
	}

	if req.Body != nil && req.Body != http.NoBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json;charset=utf-8")
	}

	return req, nil
}

// RequestID stamps each request with a fresh UUID unless the caller set
// one already. Replays keep the ID of the original attempt.
type RequestID struct{}

// BeforeRequest implements RequestInterceptor.
func (RequestID) BeforeRequest(req *http.Request) (*http.Request, error) {
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	return req, nil
}

type startKey struct{}

// Logging logs each request and response at debug level. Register it on
// both sides of the pipeline.
type Logging struct {
	Logger *slog.Logger
}

// BeforeRequest records the start time.
func (l Logging) BeforeRequest(req *http.Request) (*http.Request, error) {
	return req.WithContext(context.WithValue(req.Context(), startKey{}, time.Now())), nil
}

// AfterResponse logs the outcome.
func (l Logging) AfterResponse(req *http.Request, resp *http.Response, _ Replay) (*http.Response, error) {
	attrs := []any{
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", req.Header.Get(RequestIDHeader)),
	}

	if start, ok := req.Context().Value(startKey{}).(time.Time); ok {
		attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))
	}

	if Replayed(req.Context()) {
		attrs = append(attrs, slog.Bool("replayed", true))
	}

	l.Logger.Debug("api response", attrs...)

	return resp, nil
}
