// Package shopee is the client for the seller platform's ads, account and
// live-streaming endpoints. All calls go through one circuit breaker and
// retry 429/5xx responses with backoff.
package shopee

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Config contains client configuration
type Config struct {
	SellerURL     string
	AccountURL    string
	CreatorURL    string
	Cookie        string
	CookieFile    string
	SPCCDS        string
	UserAgent     string
	Timeout       time.Duration
	CampaignLimit int
	Retry         RetryPolicy
	// BreakerFailures is the consecutive failure count that opens the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Location        *time.Location
}

// ErrorRecorder persists failures for later inspection.
type ErrorRecorder interface {
	Record(ctx context.Context, err error, info map[string]any)
}

// Client talks to the seller platform.
type Client struct {
	cfg      Config
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	logger   *zap.Logger
	recorder ErrorRecorder
	sleepFn  func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleepFunc overrides the wait between retries.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleepFn = fn }
}

// WithErrorRecorder records every failed call.
func WithErrorRecorder(r ErrorRecorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithNow overrides the time source used for report day bounds.
func WithNow(fn func() time.Time) Option {
	return func(c *Client) { c.now = fn }
}

// NewClient creates a platform client.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CampaignLimit <= 0 {
		cfg.CampaignLimit = 20
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	failures := cfg.BreakerFailures
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("shopee"),
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        "shopee",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
		sleepFn: sleepContext,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BreakerState reports the circuit breaker state as a string.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// BreakerOpen reports whether calls are currently being rejected.
func (c *Client) BreakerOpen() bool {
	return c.breaker.State() == gobreaker.StateOpen
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

// sellerURL builds an ads endpoint URL carrying the SPC_CDS pair.
func (c *Client) sellerURL(path string) string {
	q := url.Values{}
	q.Set("SPC_CDS", c.cfg.SPCCDS)
	q.Set("SPC_CDS_VER", "2")
	return strings.TrimRight(c.cfg.SellerURL, "/") + path + "?" + q.Encode()
}

func (c *Client) cookie() (string, error) {
	if c.cfg.CookieFile != "" {
		b, err := os.ReadFile(c.cfg.CookieFile)
		if err != nil {
			return "", fmt.Errorf("failed to read cookie file: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return c.cfg.Cookie, nil
}

// envelope is the common response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// call performs one logical request, decoding the envelope into env.
func (c *Client) call(ctx context.Context, op, method, rawURL string, body any, env *envelope) error {
	err := c.do(ctx, method, rawURL, body, env)
	if err != nil {
		c.logger.Warn("request failed", zap.String("op", op), zap.Error(err))
		if c.recorder != nil {
			c.recorder.Record(ctx, err, map[string]any{"function": op, "url": rawURL})
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	cookie, err := c.cookie()
	if err != nil {
		return err
	}

	backoff := NewBackoff(c.cfg.Retry)
	maxAttempts := 1 + c.cfg.Retry.MaxRetries
	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", uuid.NewString())
		if c.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", c.cfg.UserAgent)
		}
		if cookie != "" {
			req.Header.Set("Cookie", cookie)
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.http.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			return decodeResponse(resp, out)
		}

		lastErr = err
		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp = resp

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if attempt < maxAttempts-1 {
			if err := c.sleepFn(ctx, backoff.Next(resp)); err != nil {
				lastErr = err
				break
			}
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return mapError(lastResp, lastErr)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func mapError(resp *http.Response, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrRateLimited
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
	}
	return fmt.Errorf("upstream request failed: %w", err)
}
