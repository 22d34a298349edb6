// Package clock provides the time source used by the engine and scheduler.
package clock

import (
	"sync"
	"time"
	_ "time/tzdata"
)

// Clock abstracts time retrieval for testability.
type Clock interface {
	Now() time.Time
}

// Real implements Clock using the system time in a fixed location.
type Real struct {
	Location *time.Location
}

// Now returns the current time in the configured location.
func (r Real) Now() time.Time {
	if r.Location == nil {
		return time.Now()
	}
	return time.Now().In(r.Location)
}

// Today formats t as the calendar date used for day-boundary checks.
func Today(c Clock) string {
	return c.Now().Format(time.DateOnly)
}

// Millis returns t as epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Manual is a Clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a manual clock set to now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
