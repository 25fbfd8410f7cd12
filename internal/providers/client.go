// Package providers holds the upstream API clients. Each client normalizes
// one provider's response into a check bundle; none of them decide anything
// about the overall assessment.
package providers

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

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/metrics"
)

const maxBody = 8 << 20

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http status %d: %s", e.Provider, e.Code, e.Body)
}

// Client is a rate limited, circuit broken HTTP client for one provider.
type Client struct {
	name      string
	baseURL   string
	apiKey    string
	header    http.Header
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	retries   int
	retryBase time.Duration
}

func NewClient(name string, pc config.ProviderConfig) *Client {
	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	trip := pc.Breaker.ConsecutiveFailures
	if trip == 0 {
		trip = 5
	}

	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = pc.Breaker.OpenTimeout
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= trip
	}
	// Client errors say nothing about provider health.
	st.IsSuccessful = func(err error) bool {
		var se *StatusError
		if errors.As(err, &se) {
			return se.Code < 500 && se.Code != http.StatusTooManyRequests
		}
		return err == nil || errors.Is(err, context.Canceled)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("providers: breaker state change")
	}

	return &Client{
		name:      name,
		baseURL:   strings.TrimRight(pc.BaseURL, "/"),
		apiKey:    pc.APIKey,
		header:    http.Header{},
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(pc.RPS), max(pc.Burst, 1)),
		breaker:   gobreaker.NewCircuitBreaker(st),
		retries:   pc.Retries,
		retryBase: pc.RetryBase,
	}
}

func (c *Client) Name() string { return c.name }

// Get issues GET baseURL+path?query and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil)
}

// Post sends body as JSON to baseURL+path.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, b)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) ([]byte, error) {
	var out []byte
	err := retry(ctx, c.retries, c.retryBase, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.roundTrip(ctx, method, u, body)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				metrics.ProviderRequests.WithLabelValues(c.name, "open").Inc()
				return fmt.Errorf("%s: %w", c.name, err)
			}
			return err
		}
		out = res.([]byte)
		return nil
	})
	return out, err
}

func (c *Client) roundTrip(ctx context.Context, method, u string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ProviderLatency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(c.name, "error").Inc()
		return nil, fmt.Errorf("%s: http request: %w", c.name, err)
	}
	defer resp.Body.Close()
	metrics.ProviderRequests.WithLabelValues(c.name, statusClass(resp.StatusCode)).Inc()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(b)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{Provider: c.name, Code: resp.StatusCode, Body: snippet}
	}
	return b, nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var perm permanentError
	return !errors.As(err, &perm)
}

// permanentError marks a decoded, well-formed upstream answer that will not
// change on retry.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(format string, args ...any) error {
	return permanentError{err: fmt.Errorf(format, args...)}
}
