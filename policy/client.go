// Package policy is the client for the remote safety-policy evaluation
// service.
//
// Each packed batch is sent as one Request; the service answers with a
// Verdict stating whether any configured policy was violated. Callers depend
// on the Evaluator interface so the HTTP client can be swapped for
// MockEvaluator in tests and dry runs.
//
// # Usage
//
//	client, err := policy.NewHTTPClient(policy.ClientConfig{
//	    Endpoint: "https://api.whitecircle.ai/v1",
//	    APIKey:   key,
//	})
//	if err != nil {
//	    return err
//	}
//	verdict, err := client.Evaluate(ctx, policy.NewRequest(id, b, policies, nil))
//
// The HTTP client is safe for concurrent use. Requests are rate limited and
// transient failures (429, 5xx, timeouts) are retried with exponential
// backoff.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Evaluator evaluates one request against the configured policies.
// Implementations must be safe for concurrent use.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*Verdict, error)
}

// Defaults for ClientConfig.
const (
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3
	DefaultBackoff    = 500 * time.Millisecond
	DefaultRateLimit  = 5.0

	// maxBackoff caps a single retry wait, including Retry-After hints.
	maxBackoff = 30 * time.Second

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	// Endpoint is the service base URL; requests go to Endpoint + "/check".
	Endpoint string

	// APIKey is sent as a bearer token.
	APIKey string

	// HTTPClient performs requests. Default: a client with DefaultTimeout.
	HTTPClient *http.Client

	// RateLimit is the sustained request rate per second. 0 uses the
	// default; negative disables limiting.
	RateLimit float64

	// MaxRetries is the number of retries after the first attempt.
	// Negative disables retries.
	MaxRetries int

	// Backoff is the initial retry delay, doubled on each retry.
	Backoff time.Duration

	// Logger receives retry and request diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// HTTPClient evaluates requests over HTTPS.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient creates a client from cfg.
func NewHTTPClient(cfg ClientConfig) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidRequest)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrUnauthorized)
	}

	c := &HTTPClient{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		http:       cfg.HTTPClient,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		logger:     cfg.Logger,
		sleep:      sleepContext,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultTimeout}
	}
	if c.maxRetries == 0 {
		c.maxRetries = DefaultMaxRetries
	} else if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.backoff <= 0 {
		c.backoff = DefaultBackoff
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	switch {
	case cfg.RateLimit == 0:
		c.limiter = rate.NewLimiter(rate.Limit(DefaultRateLimit), 1)
	case cfg.RateLimit > 0:
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	default:
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}

	return c, nil
}

// NewRequestID returns a fresh request id.
func NewRequestID() string {
	return uuid.NewString()
}

// Evaluate implements Evaluator. A missing req.ID is filled in.
func (c *HTTPClient) Evaluate(ctx context.Context, req Request) (*Verdict, error) {
	if req.ID == "" {
		req.ID = NewRequestID()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Op: "evaluate", RequestID: req.ID, Err: fmt.Errorf("%w: %w", ErrInvalidRequest, err)}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Op: "evaluate", RequestID: req.ID, Err: err}
		}

		verdict, retryAfter, err := c.do(ctx, req.ID, body)
		if err == nil {
			return verdict, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == c.maxRetries || ctx.Err() != nil {
			break
		}

		wait := c.backoffFor(attempt)
		if retryAfter > 0 {
			wait = min(retryAfter, maxBackoff)
		}
		c.logger.Warn("policy request failed, retrying",
			slog.String("request_id", req.ID),
			slog.Int("attempt", attempt+1),
			slog.Duration("wait", wait),
			slog.Any("error", err))

		if err := c.sleep(ctx, wait); err != nil {
			return nil, &Error{Op: "evaluate", RequestID: req.ID, Err: err}
		}
	}
	return nil, lastErr
}

// backoffFor returns the wait before retry attempt+1: the initial backoff
// doubled per attempt, capped at maxBackoff.
func (c *HTTPClient) backoffFor(attempt int) time.Duration {
	wait := c.backoff
	for range attempt {
		if wait >= maxBackoff {
			break
		}
		wait *= 2
	}
	return min(wait, maxBackoff)
}

// do performs one attempt. The returned duration is the server's
// Retry-After hint, if any.
func (c *HTTPClient) do(ctx context.Context, id string, body []byte) (*Verdict, time.Duration, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/check", bytes.NewReader(body))
	if err != nil {
		return nil, 0, &Error{Op: "evaluate", RequestID: id, Err: fmt.Errorf("%w: %w", ErrInvalidRequest, err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Request-ID", id)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, transportError(id, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("policy request",
		slog.String("request_id", id),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, retryAfter(resp.Header.Get("Retry-After")), statusError(id, resp.StatusCode, msg)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, 0, &Error{Op: "evaluate", RequestID: id, Status: resp.StatusCode,
			Err: fmt.Errorf("%w: %w", ErrMalformedResponse, err)}
	}
	if verdict.RequestID == "" {
		verdict.RequestID = id
	}
	return &verdict, 0, nil
}

func statusError(id string, status int, body []byte) error {
	var sentinel error
	retryable := false
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		sentinel = ErrUnauthorized
	case status == http.StatusRequestEntityTooLarge:
		sentinel = ErrPayloadTooLarge
	case status == http.StatusTooManyRequests:
		sentinel, retryable = ErrRateLimited, true
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		sentinel, retryable = ErrTimeout, true
	case status >= 500:
		sentinel, retryable = ErrUnavailable, true
	default:
		sentinel = ErrInvalidRequest
	}

	err := sentinel
	if msg := strings.TrimSpace(string(body)); msg != "" {
		err = fmt.Errorf("%w: %s", sentinel, msg)
	}
	return &Error{Op: "evaluate", RequestID: id, Status: status, Err: err, Retryable: retryable}
}

func transportError(id string, err error) error {
	if errors.Is(err, context.Canceled) {
		return &Error{Op: "evaluate", RequestID: id, Err: err}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Op: "evaluate", RequestID: id, Err: fmt.Errorf("%w: %w", ErrTimeout, err), Retryable: true}
	}
	return &Error{Op: "evaluate", RequestID: id, Err: fmt.Errorf("%w: %w", ErrUnavailable, err), Retryable: true}
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
