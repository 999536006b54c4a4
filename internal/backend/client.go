package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UnknownOlympus/aerodrome/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the airport backend API. Every method maps to one endpoint.
// Requests carry no client-side timeout; cancellation comes from the context
// and the transport.
type Client struct {
	client  HTTPClient       // HTTP client for making requests
	baseURL string           // Base URL of the backend, without the /api prefix
	log     *slog.Logger     // Logger for logging operations
	limiter *rate.Limiter    // Client-side request rate limiter
	metrics *metrics.Metrics // Request duration and error collectors
}

// request describes one backend call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	token  string
}

// NewClient creates a backend client using a default HTTP client.
func NewClient(baseURL string, rateLimit int, appMetrics *metrics.Metrics, log *slog.Logger) *Client {
	limit := rate.Inf
	if rateLimit > 0 {
		limit = rate.Limit(rateLimit)
	}

	return NewClientWithHTTP(&http.Client{}, baseURL, rate.NewLimiter(limit, max(rateLimit, 1)), appMetrics, log)
}

// NewClientWithHTTP allows injecting a custom HTTP client and limiter.
func NewClientWithHTTP(
	client HTTPClient,
	baseURL string,
	limiter *rate.Limiter,
	appMetrics *metrics.Metrics,
	log *slog.Logger,
) *Client {
	return &Client{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		limiter: limiter,
		metrics: appMetrics,
	}
}

// do executes the request and decodes a 2xx JSON body into out (if non-nil).
// Non-2xx responses are converted into *Error.
func (c *Client) do(ctx context.Context, call request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL, err := url.Parse(c.baseURL + call.path)
	if err != nil {
		return fmt.Errorf("failed to parse request URL: %w", err)
	}
	if call.query != nil {
		reqURL.RawQuery = call.query.Encode()
	}

	var body io.Reader
	if call.body != nil {
		payload, errMarshal := json.Marshal(call.body)
		if errMarshal != nil {
			return fmt.Errorf("failed to encode request body: %w", errMarshal)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, call.method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if call.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if call.token != "" {
		req.Header.Set("Authorization", "Bearer "+call.token)
	}

	c.log.DebugContext(ctx, "Backend request", "method", call.method, "url", reqURL.String())

	startTime := time.Now()
	resp, err := c.client.Do(req)
	c.metrics.RequestSeconds.WithLabelValues(call.path).Observe(time.Since(startTime).Seconds())
	if err != nil {
		c.metrics.APIErrors.WithLabelValues(call.path).Inc()
		return fmt.Errorf("failed to execute request to %s: %w", call.path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.metrics.APIErrors.WithLabelValues(call.path).Inc()
		c.log.WarnContext(ctx, "Backend API error", "endpoint", call.path, "status", resp.StatusCode, "body", string(respBody))
		return statusError(call.path, resp.StatusCode, respBody, call.token != "")
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return fmt.Errorf("%w: empty response from %s", ErrServer, call.path)
	}
	if err = json.Unmarshal(respBody, out); err != nil {
		c.log.ErrorContext(ctx, "Failed to parse backend response", "endpoint", call.path, "error", err)
		return fmt.Errorf("failed to decode response from %s: %w", call.path, err)
	}

	return nil
}
