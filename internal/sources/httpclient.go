package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPClientConfig configures the shared HTTP client.
type HTTPClientConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RateLimit is the sustained request rate per second.
	RateLimit float64

	// BurstSize is the maximum request burst.
	BurstSize int

	// MaxRetries is the number of retry attempts after the first try.
	MaxRetries int

	// RetryDelay is the base delay between retries; a Retry-After header
	// overrides it.
	RetryDelay time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// AuthHeader and AuthValue set a static auth header on every request
	// (e.g. "Authorization" / "Bearer <token>").
	AuthHeader string
	AuthValue  string
}

// HTTPClient wraps http.Client with rate limiting and retries on 429 and
// 5xx responses. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a rate-limited HTTP client. The limiter gate runs
// before every attempt, including retries, so retry storms still respect the
// source's rate.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "OpenShelf-BibSync/1.0"
	}

	return &HTTPClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes a request, waiting on the rate limiter before each attempt
// and retrying on network errors, 429 (honoring Retry-After), and 5xx.
//
// Bodies are not preserved across retries unless the request carries
// GetBody, as requests built by http.NewRequest with a bytes.Reader do.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.AuthHeader != "" && c.config.AuthValue != "" {
		req.Header.Set(c.config.AuthHeader, c.config.AuthValue)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < c.config.MaxRetries {
				if err := sleepCtx(req.Context(), c.config.RetryDelay); err != nil {
					return nil, err
				}
				if err := rewindBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}
			return nil, lastErr
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		delay := c.retryDelay(resp)
		if resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		if attempt < c.config.MaxRetries {
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			if err := sleepCtx(req.Context(), delay); err != nil {
				return nil, err
			}
			if err := rewindBody(req); err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}
			continue
		}

		return nil, fmt.Errorf("max retries exhausted after %d attempts, last status: %d", c.config.MaxRetries+1, resp.StatusCode)
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

// retryableStatus reports whether a status code warrants a retry.
func retryableStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// retryDelay honors a Retry-After header, in seconds or HTTP-date form,
// falling back to the configured delay.
func (c *HTTPClient) retryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RetryDelay
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return c.config.RetryDelay
}

// sleepCtx waits for the given duration unless the context ends first.
func sleepCtx(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rewindBody restores a request body for retry when GetBody is available.
func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
