// Package api is a thin typed client for the Proof of Putt REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// TokenSource supplies the bearer token attached to each request.
type TokenSource interface {
	Token() (string, bool)
}

// Response describes a successful call.
type Response struct {
	StatusCode int
	// NoContent is set for 204 responses and empty bodies.
	NoContent bool
}

// Client issues JSON requests against the API. It handles Bearer token
// authentication, error normalization and retry with exponential backoff
// on HTTP 429.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	maxRetries int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMaxRetries sets how many times a 429 response is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// NewClient creates a new API client. baseURL includes the API prefix
// (e.g. https://app.proofofputt.com/api).
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result any) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with an optional JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, result any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, result)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, path string, result any) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, result)
}

// Do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
// Every failure is returned as *Error.
func (c *Client) Do(
	ctx context.Context,
	method string,
	path string,
	body any,
	result any,
) (*Response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{
				Message: "Failed to encode request.",
				Method:  method,
				Path:    path,
			}
		}
		payload = data
	}

	retry := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Second),
		backoff.WithMaxInterval(30*time.Second),
		backoff.WithMaxElapsedTime(0),
	)

	var lastErr *Error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, status, header, respBody, err := c.roundTrip(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}

		if status == http.StatusTooManyRequests {
			lastErr = statusError(method, path, status)
			wait := retryAfter(header, retry)

			select {
			case <-ctx.Done():
				return nil, transportError(ctx, method, path, ctx.Err())
			case <-time.After(wait):
				continue
			}
		}

		if status < 200 || status >= 300 {
			return nil, decodeError(method, path, status, header, respBody)
		}

		// No content to parse (e.g. 204).
		if status == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
			resp.NoContent = true
			return resp, nil
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return nil, &Error{
					Status:  status,
					Message: "Failed to parse response from server.",
					Method:  method,
					Path:    path,
				}
			}
		}

		return resp, nil
	}

	return nil, lastErr
}

func (c *Client) roundTrip(
	ctx context.Context,
	method string,
	path string,
	payload []byte,
) (*Response, int, http.Header, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, nil, nil, &Error{
			Message: "Failed to create request.",
			Method:  method,
			Path:    path,
		}
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := c.tokens.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, nil, nil, transportError(ctx, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, nil, transportError(ctx, method, path, err)
	}

	return &Response{StatusCode: resp.StatusCode}, resp.StatusCode, resp.Header, respBody, nil
}

// decodeError turns a non-2xx response into *Error, preferring the
// server's own message.
func decodeError(method, path string, status int, header http.Header, body []byte) *Error {
	apiErr := statusError(method, path, status)

	if !isJSON(header) {
		return apiErr
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = "Failed to parse error response from server."
		return apiErr
	}

	switch {
	case payload.Message != "":
		apiErr.Message = payload.Message
	case payload.Error != "":
		apiErr.Message = payload.Error
	default:
		apiErr.Message = "Unknown server error."
	}

	return apiErr
}

// transportError wraps a failure that produced no HTTP response. Only a
// context error is kept as the cause.
func transportError(ctx context.Context, method, path string, err error) *Error {
	apiErr := &Error{
		Message: fmt.Sprintf("network error: %s %s: %v", method, path, err),
		Method:  method,
		Path:    path,
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		apiErr.cause = ctxErr
	}
	return apiErr
}

func isJSON(header http.Header) bool {
	return strings.Contains(header.Get("Content-Type"), "application/json")
}

// retryAfter reads the Retry-After header and computes a wait duration.
// Falls back to exponential backoff if the header is missing.
func retryAfter(header http.Header, fallback backoff.BackOff) time.Duration {
	if value := header.Get("Retry-After"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	return fallback.NextBackOff()
}
