// Package clock lets handlers and the worker take "now" from an injectable
// source.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now.
func NewSystem() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

type fixedClock struct{ now time.Time }

// NewFixed returns a clock frozen at t.
func NewFixed(t time.Time) Clock { return fixedClock{now: t} }

func (f fixedClock) Now() time.Time { return f.now }
