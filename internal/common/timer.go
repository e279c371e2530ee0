// Package common provides small helpers shared across packages.
package common

import (
	"fmt"
	"time"
)

// Timer measures the duration of a named operation.
type Timer struct {
	clock    func() time.Time
	start    time.Time
	name     string
	duration time.Duration
	stopped  bool
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return NewTimerWithClock("", time.Now)
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	return NewTimerWithClock(name, time.Now)
}

// NewTimerWithClock creates a named timer reading time from clock.
func NewTimerWithClock(name string, clock func() time.Time) *Timer {
	if clock == nil {
		clock = time.Now
	}
	return &Timer{clock: clock, name: name, start: clock()}
}

// Elapsed returns the time since the timer started, or the recorded
// duration once stopped.
func (t *Timer) Elapsed() time.Duration {
	if t.stopped {
		return t.duration
	}
	return t.clock().Sub(t.start)
}

// Stop stops the timer and returns the elapsed duration. Later calls
// return the same value.
func (t *Timer) Stop() time.Duration {
	if !t.stopped {
		t.duration = t.clock().Sub(t.start)
		t.stopped = true
	}
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	d := t.Elapsed().Round(time.Millisecond)
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, d)
	}
	return d.String()
}
