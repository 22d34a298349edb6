package shopee

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy configures retries of 429 and 5xx responses.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Backoff implements exponential backoff with jitter for one request.
type Backoff struct {
	policy       RetryPolicy
	currentDelay time.Duration
	attempts     int
}

// NewBackoff creates a backoff calculator.
func NewBackoff(policy RetryPolicy) *Backoff {
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	return &Backoff{
		policy:       policy,
		currentDelay: policy.InitialDelay,
	}
}

// Next returns the next wait duration, preferring a Retry-After header.
func (b *Backoff) Next(resp *http.Response) time.Duration {
	b.attempts++

	if d, ok := retryAfter(resp); ok {
		if d > b.policy.MaxDelay {
			d = b.policy.MaxDelay
		}
		return d
	}

	delay := b.currentDelay
	if b.policy.Jitter > 0 {
		jitter := float64(delay) * b.policy.Jitter * (rand.Float64()*2 - 1)
		delay = time.Duration(float64(delay) + jitter)
	}

	b.currentDelay = time.Duration(float64(b.currentDelay) * b.policy.Multiplier)
	if b.currentDelay > b.policy.MaxDelay {
		b.currentDelay = b.policy.MaxDelay
	}

	return delay
}

// Attempts returns the number of waits handed out.
func (b *Backoff) Attempts() int {
	return b.attempts
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
	}
	return 0, false
}
