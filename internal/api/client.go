// Package api is the typed client for the ioco REST API. Every call goes
// through the shared session-aware http.Client built by the transport
// package.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/alexjbarnes/ioco/internal/errors"
	"github.com/alexjbarnes/ioco/internal/models"
	"github.com/tidwall/gjson"
)

// TransientError wraps an error that is likely temporary and safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError, meaning the caller should retry after a backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// StatusError is a non-success answer from the API, either an HTTP error
// status or an error object inside a 2xx envelope.
type StatusError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API %s returned status %d", e.Endpoint, e.Code)
	}

	return fmt.Sprintf("API %s returned status %d: %s", e.Endpoint, e.Code, e.Message)
}

// Unwrap maps the status onto the sentinel errors so callers can use
// errors.Is without inspecting codes.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case e.Code >= 400 && e.Code < 500:
		return apperrors.ErrAPIRequest
	}

	return apperrors.ErrAPIResponse
}

const (
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "http://localhost:8080/api"

	// maxAPIResponseBytes caps response body reads to prevent a
	// misbehaving server from consuming unbounded memory.
	maxAPIResponseBytes = 1024 * 1024

	// dateLayout is the wire format of startDate/endDate query parameters.
	dateLayout = time.RFC3339
)

// Client talks to the ioco REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates an API client over httpClient, which should be the
// client returned by transport.New. If httpClient is nil,
// http.DefaultClient is used and no session handling takes place.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// errorMessage pulls a human readable message out of an error body. The
// API puts it in error.message; some proxies answer with a top level
// message instead.
func errorMessage(body []byte) string {
	for _, path := range []string{"error.message", "message", "error"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
			return sanitizeResponseBody([]byte(v.Str))
		}
	}

	return sanitizeResponseBody(body)
}

// send performs one request and returns the raw body of a 2xx response.
func (c *Client) send(ctx context.Context, method, endpoint string, query url.Values, body any) ([]byte, error) {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := fmt.Errorf("sending request to %s: %w", endpoint, err)
		if ctx.Err() != nil {
			return nil, wrapped
		}
		// Network errors (timeouts, connection refused, DNS failures)
		// are transient by nature.
		return nil, &TransientError{Err: wrapped}
	}
	defer resp.Body.Close()

	// Cap response reads at 1MB. API responses are small JSON payloads.
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Message: errorMessage(respBody)}
		if isTransientStatus(resp.StatusCode) {
			return nil, &TransientError{Err: statusErr}
		}

		return nil, statusErr
	}

	return respBody, nil
}

// do sends a request and decodes the data field of the response envelope
// into result. An error object inside the envelope is returned as a
// StatusError even when the HTTP status is 2xx.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body, result any) error {
	respBody, err := c.send(ctx, method, endpoint, query, body)
	if err != nil {
		return err
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	var env models.Envelope[json.RawMessage]
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("decoding response from %s: %w: %s", endpoint, apperrors.ErrAPIResponse, sanitizeResponseBody(respBody))
	}

	if env.Error != nil && env.Error.Message != "" {
		code := env.Error.Code
		if code == 0 {
			code = http.StatusBadRequest
		}

		return &StatusError{Endpoint: endpoint, Code: code, Message: sanitizeResponseBody([]byte(env.Error.Message))}
	}

	if result == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}

	return nil
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary server-side problem worth retrying.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

func dateRange(from, to time.Time) url.Values {
	q := url.Values{}
	q.Set("startDate", from.UTC().Format(dateLayout))
	q.Set("endDate", to.UTC().Format(dateLayout))

	return q
}
