// Package clock abstracts the time source used to stamp messages so tests can
// control it.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time { return time.Now() }

// Monotonic wraps another Clock and guarantees strictly increasing readings:
// when the underlying clock has not advanced past the previous reading, the
// previous reading plus one nanosecond is returned instead.
type Monotonic struct {
	mu   sync.Mutex
	src  Clock
	last time.Time
}

// NewMonotonic wraps src. A nil src uses the system clock.
func NewMonotonic(src Clock) *Monotonic {
	if src == nil {
		src = System{}
	}

	return &Monotonic{src: src}
}

// Now implements Clock.
func (m *Monotonic) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.src.Now()
	if !now.After(m.last) {
		now = m.last.Add(time.Nanosecond)
	}
	m.last = now

	return now
}

// Manual is a Clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock reading start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now implements Clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = m.now.Add(d)
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = t
}
