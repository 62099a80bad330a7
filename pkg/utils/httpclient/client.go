// Package httpclient provides the HTTP client used by the LLM providers,
// with bounded retries and W3C trace-context propagation.
package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kart-io/studyrag/pkg/utils/json"
)

const retryBaseDelay = 500 * time.Millisecond

// Client wraps http.Client with retry-on-server-error semantics.
// Request bodies are buffered in memory so they can be replayed on
// retry; provider payloads are small enough for this to be safe.
type Client struct {
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a client with the given per-request timeout and
// retry budget. maxRetries is the number of retries after the first
// attempt; 0 means a single attempt.
func NewClient(timeout time.Duration, maxRetries int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

// retryable reports whether a response status warrants another attempt.
// 429 covers provider rate limiting, 5xx covers upstream failures.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoRequest executes the request, retrying retryable failures with a
// linear backoff. The request context cancels the wait between attempts.
func (c *Client) DoRequest(req *http.Request) (*http.Response, error) {
	c.injectTraceContext(req)

	var replay func() (io.ReadCloser, error)
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		_ = req.Body.Close()
		replay = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if replay != nil {
			var err error
			if req.Body, err = replay(); err != nil {
				return nil, err
			}
		}

		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case retryable(resp.StatusCode):
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server error, status code %d", resp.StatusCode)
		default:
			return resp, nil
		}

		if attempt < c.maxRetries {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Duration(attempt+1) * retryBaseDelay):
			}
		}
	}
	return nil, lastErr
}

// DoJSON executes the request and decodes a JSON response body into v.
// A 4xx response is returned as an error carrying the response body,
// since provider APIs put the failure reason there.
func (c *Client) DoJSON(req *http.Request, v interface{}) error {
	resp, err := c.DoRequest(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// injectTraceContext 将当前 Span 的 W3C Trace Context 头注入请求，
// 便于把一次查询在网关与 LLM 供应商之间串成同一条链路。
// 请求为 nil、无全局传播器或无活跃 Span 时静默跳过。
func (c *Client) injectTraceContext(req *http.Request) {
	if req == nil || req.Context() == nil {
		return
	}

	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		return
	}

	propagator.Inject(req.Context(), propagation.HeaderCarrier(req.Header))
}
