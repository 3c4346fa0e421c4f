// Package fetch issues the HTTP calls of a run.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"schema-harvester/internal/types"
)

// Config configures the fetch client.
type Config struct {
	// Timeout for individual requests (default: 30s).
	Timeout time.Duration

	// RateLimit in requests per second. Zero means unlimited.
	RateLimit float64

	// RateBurst maximum burst size (default: 1).
	RateBurst int

	// RetryAttempts is the total number of attempts for list calls
	// (default: 1, no retry). Create calls are never retried.
	RetryAttempts int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// Result is the outcome of one call.
type Result struct {
	StatusCode int
	OK         bool
	// Body is the response body, guaranteed to be valid JSON.
	Body     []byte
	Attempts int
}

// Client is a rate-limited HTTP client for endpoint calls.
type Client struct {
	config      Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a new fetch client with the given configuration.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 1
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		rateLimiter: rate.NewLimiter(limit, config.RateBurst),
	}
}

// Fetch sends call to url. A non-2xx response with a JSON body is returned
// together with a *types.TransportError carrying the status code; every
// other failure returns a nil result.
func (c *Client) Fetch(ctx context.Context, call types.Call, url string, headers http.Header) (*Result, error) {
	attempts := 1
	if call.Mode == types.ModeList {
		attempts = c.config.RetryAttempts
	}

	var (
		result  *Result
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, &types.TransportError{URL: url, Err: fmt.Errorf("rate limiter: %w", err)}
		}

		result, lastErr = c.doOnce(ctx, call, url, headers)
		if result != nil {
			result.Attempts = attempt
		}
		if lastErr == nil || !isRetryable(ctx, lastErr) || attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, &types.TransportError{URL: url, Err: ctx.Err()}
		case <-time.After(c.config.RetryDelay):
		}
	}
	return result, lastErr
}

func (c *Client) doOnce(ctx context.Context, call types.Call, url string, headers http.Header) (*Result, error) {
	req, err := buildRequest(ctx, call, url, headers)
	if err != nil {
		return nil, &types.TransportError{URL: url, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.TransportError{URL: url, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.TransportError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if !json.Valid(body) {
		return nil, &types.TransportError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("response body is not JSON (%d bytes)", len(body))}
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		Body:       body,
	}
	if !result.OK {
		return result, &types.TransportError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", http.StatusText(resp.StatusCode))}
	}
	return result, nil
}

// buildRequest encodes the call body. List calls keep the JSON content
// type; create calls replace it with the multipart boundary type.
func buildRequest(ctx context.Context, call types.Call, url string, headers http.Header) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	if call.Body != nil {
		var err error
		body, contentType, err = call.Body.Encode()
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if _, ok := call.Body.(types.CreateRequest); ok {
		req.Header.Del("Content-Type")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// isRetryable reports whether a failed list call may be sent again:
// network failures, 429 and 5xx responses.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var trErr *types.TransportError
	if !errors.As(err, &trErr) {
		return false
	}
	return trErr.StatusCode == 0 || trErr.StatusCode == http.StatusTooManyRequests || trErr.StatusCode >= 500
}
