package progress

import (
	"fmt"
	"sync/atomic"
)

// Counter yields monotonically increasing values.
type Counter interface {
	// Next increments the counter and returns the new value.
	Next() int64
}

// AtomicCounter is a [Counter] backed by [atomic.Int64].
type AtomicCounter struct {
	n atomic.Int64
}

// NewCounter returns a counter whose current value is 1, so the first call to Next returns 2.
func NewCounter() *AtomicCounter {
	c := &AtomicCounter{}
	c.n.Store(1)
	return c
}

func (c *AtomicCounter) Next() int64 { return c.n.Add(1) }

// Value returns the current value without incrementing.
func (c *AtomicCounter) Value() int64 { return c.n.Load() }

// Scope selects how counters are shared between sessions.
type Scope string

const (
	ScopeSession Scope = "session" // a fresh counter per session
	ScopeGlobal  Scope = "global"  // one counter for the whole process
)

// CounterSource hands out the counter for a new session.
type CounterSource func() Counter

// NewCounterSource returns a [CounterSource] for scope.
func NewCounterSource(scope Scope) (CounterSource, error) {
	switch scope {
	case ScopeSession, "":
		return func() Counter { return NewCounter() }, nil
	case ScopeGlobal:
		shared := NewCounter()
		return func() Counter { return shared }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
}
