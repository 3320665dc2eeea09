// Package paper provides the HTTP client used to reach the download page and the builds API.
package paper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRequestTimeout is returned alongside ErrNetwork when a request times out
var ErrRequestTimeout = errors.New("request timeout")

// maxBodySize bounds how much of a response body is read into memory.
const maxBodySize = 8 * 1024 * 1024

// HTTPConfig holds configuration for outgoing requests.
type HTTPConfig struct {
	// Timeout is the timeout for each individual request (default: 30s)
	Timeout time.Duration
	// UserAgent is sent with every request
	UserAgent string
}

// DefaultHTTPConfig returns the default request configuration.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:   30 * time.Second,
		UserAgent: "paperbot/1.0",
	}
}

// HTTPClient wraps an http.Client with a request timeout, default headers
// and error classification. It performs exactly one attempt per call: a
// failed poll cycle simply waits for the next tick.
type HTTPClient struct {
	client *http.Client
	config HTTPConfig
	// defaultHeaders are headers applied to all requests
	defaultHeaders map[string]string
}

// NewHTTPClient creates a client using the default configuration.
func NewHTTPClient() *HTTPClient {
	return NewHTTPClientWithConfig(DefaultHTTPConfig())
}

// NewHTTPClientWithConfig creates a client with a custom configuration.
func NewHTTPClientWithConfig(config HTTPConfig) *HTTPClient {
	if config.Timeout <= 0 {
		config.Timeout = DefaultHTTPConfig().Timeout
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

// SetHTTPClient sets a custom underlying HTTP client (useful for testing).
func (c *HTTPClient) SetHTTPClient(client *http.Client) {
	c.client = client
}

// SetDefaultHeaders sets headers applied to every request.
func (c *HTTPClient) SetDefaultHeaders(headers map[string]string) {
	c.defaultHeaders = headers
}

// Config returns the current configuration.
func (c *HTTPClient) Config() HTTPConfig {
	return c.config
}

// Get performs a GET request. Transport failures are wrapped with
// ErrNetwork; the status code is left for the caller to interpret.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", ErrNetwork, url, err)
	}

	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for key, value := range c.defaultHeaders {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeoutError(err) {
			return nil, fmt.Errorf("%w: %w: %v", ErrNetwork, ErrRequestTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return resp, nil
}

// Fetch performs a GET request and returns the body of a 2xx response.
// Any other status is reported as ErrNetwork.
func (c *HTTPClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, fmt.Errorf("%w: %s returned status %d", ErrNetwork, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrNetwork, err)
	}
	return body, nil
}

// isSuccess reports whether statusCode is 2xx.
func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// isTimeoutError checks if an error is a timeout error.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	type timeoutError interface {
		Timeout() bool
	}
	var te timeoutError
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return false
}
