package shopee

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the session cookie is missing or expired.
	ErrUnauthorized = errors.New("shopee session unauthorized")
	// ErrRateLimited means the platform kept answering 429.
	ErrRateLimited = errors.New("shopee rate limit exceeded")
	// ErrUnavailable means the platform kept answering 5xx.
	ErrUnavailable = errors.New("shopee unavailable")
	// ErrCircuitOpen means recent failures tripped the breaker.
	ErrCircuitOpen = errors.New("shopee circuit breaker open")
)

// APIError is a non-zero code in a read response envelope.
type APIError struct {
	Op   string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: code %d: %s", e.Op, e.Code, e.Msg)
}
