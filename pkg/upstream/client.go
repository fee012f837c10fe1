// Package upstream implements the authenticated HTTP client (spec §4.3)
// that every tool handler uses to call the upstream project-management
// and file-storage REST APIs. It owns bearer injection via the token
// manager, retry/backoff/error-classification, a local outbound rate
// limiter, and request tracing; handlers never retry or reinterpret
// upstream errors themselves (spec §7).
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
	"github.com/zohobridge/mcp-gateway/pkg/logger"
	"github.com/zohobridge/mcp-gateway/pkg/telemetry"
)

// TokenSource returns the current upstream access token, refreshing it
// as needed, and can discard a token upstream has rejected outright so
// the next Current call is forced to refresh. pkg/oauthmgr.Manager
// satisfies this.
type TokenSource interface {
	Current(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

const (
	defaultTimeout   = 10 * time.Second
	maxAttempts      = 3
	initialBackoff   = 500 * time.Millisecond
	maxRetryAfter    = 4 * time.Second
	jitterFraction   = 0.2
	outboundRPS      = 20
	outboundBurst    = 40
)

// Client is the authenticated upstream HTTP client.
type Client struct {
	http    *http.Client
	tokens  TokenSource
	limiter *rate.Limiter
	tracer  trace.Tracer
	metrics *telemetry.Metrics
}

// New constructs a Client. httpClient, if nil, defaults to one with
// defaultTimeout.
func New(tokens TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		http:    httpClient,
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(outboundRPS), outboundBurst),
		tracer:  otel.Tracer("github.com/zohobridge/mcp-gateway/pkg/upstream"),
	}
}

// SetMetrics attaches m so Do records retry counts and request latency.
// Optional: a Client with no metrics attached skips recording.
func (c *Client) SetMetrics(m *telemetry.Metrics) {
	c.metrics = m
}

// upstreamLabel derives the metrics label for req from its host, e.g.
// "projects.zoho.com".
func upstreamLabel(req Request) string {
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// Request describes one upstream call.
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
}

// Response is a decoded upstream response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Do issues req against the upstream API, injecting the bearer token,
// retrying transient failures, and classifying the outcome into the
// error taxonomy (spec §7). On success it returns the raw response body
// for the caller to decode.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "upstream.Do",
		trace.WithAttributes(attribute.String("http.method", req.Method), attribute.String("http.url", req.URL)))
	defer span.End()

	start := time.Now()
	resp, err := c.doWithRetry(ctx, req, false)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	if c.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		c.metrics.UpstreamRequests.WithLabelValues(upstreamLabel(req), outcome).Observe(time.Since(start).Seconds())
	}
	return resp, err
}

func (c *Client) doWithRetry(ctx context.Context, req Request, forcedRefreshDone bool) (*Response, error) {
	attempt := 0
	op := func() (*Response, error) {
		if attempt > 0 && c.metrics != nil {
			c.metrics.UpstreamRetries.WithLabelValues(upstreamLabel(req)).Inc()
		}
		attempt++

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(errors.NewTimeout("waiting for outbound rate limiter"))
		}

		resp, err := c.send(ctx, req)
		if err != nil {
			return nil, err // network errors are retryable by default
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, backoff.Permanent(errUnauthorizedRetry{})
		case resp.StatusCode >= 200 && resp.StatusCode < 400:
			return resp, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, backoff.Permanent(errors.New(errors.ErrNotFound, "upstream resource not found", nil))
		case resp.StatusCode == http.StatusConflict:
			return nil, backoff.Permanent(errors.New(errors.ErrConflict, "upstream reported a conflict", nil))
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, retryableUpstreamError(ctx, resp)
		case resp.StatusCode >= 500:
			return nil, retryableUpstreamError(ctx, resp)
		default:
			return nil, backoff.Permanent(errors.NewUpstreamRejected(
				"upstream rejected the request", resp.StatusCode, string(resp.Body)))
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = jitterFraction
	b.MaxInterval = maxRetryAfter

	result, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(maxAttempts))
	if err != nil {
		if isUnauthorizedRetry(err) {
			if forcedRefreshDone {
				return nil, errors.NewUnauthorised("upstream rejected the refreshed token")
			}
			logger.Warn("upstream: received 401, forcing a single token refresh and retry")
			if invalidateErr := c.tokens.Invalidate(ctx); invalidateErr != nil {
				return nil, invalidateErr
			}
			return c.doWithRetry(ctx, req, true)
		}
		return classifyTerminalError(err)
	}
	return result, nil
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	token, err := c.tokens.Current(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, errors.NewInternal("building upstream request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.NewUpstreamUnavailable("upstream request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.NewUpstreamUnavailable("reading upstream response", err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: respBody, Header: httpResp.Header}, nil
}

// errUnauthorizedRetry is a sentinel wrapped in backoff.Permanent to break
// out of the retry loop and signal doWithRetry's caller to retry once
// with a forced token refresh.
type errUnauthorizedRetry struct{}

func (errUnauthorizedRetry) Error() string { return "upstream: unauthorized, refresh required" }

func isUnauthorizedRetry(err error) bool {
	_, ok := err.(errUnauthorizedRetry)
	return ok
}

// retryableUpstreamError classifies a 429/5xx response as transient. For
// 429 it honors the upstream's Retry-After hint by waiting that long
// (capped at maxRetryAfter) before returning, so the next attempt never
// comes sooner than the upstream asked for; backoff/v5's own exponential
// interval is then waited on top of that (spec §4.3).
func retryableUpstreamError(ctx context.Context, resp *Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		if wait := retryAfter(resp); wait > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
		}
	}
	return errors.NewUpstreamUnavailable(
		fmt.Sprintf("upstream returned status %d", resp.StatusCode), nil)
}

func retryAfter(resp *Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		d := time.Duration(secs) * time.Second
		if d > maxRetryAfter {
			d = maxRetryAfter
		}
		return d
	}
	return 0
}

// classifyTerminalError normalises whatever backoff.Retry returns once it
// gives up: a backoff.Permanent error arrives here already unwrapped to
// its cause, so this only needs to recognise our own taxonomy and fall
// back to upstream-unavailable for anything else (retry exhaustion on a
// transient classification).
func classifyTerminalError(err error) (*Response, error) {
	if domainErr, ok := errors.As(err); ok {
		return nil, domainErr
	}
	return nil, errors.NewUpstreamUnavailable("upstream request failed after retries", err)
}
