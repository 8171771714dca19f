package query

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultMutationTimeout bounds a mutation when none is configured.
const DefaultMutationTimeout = 30 * time.Second

// ErrPending is returned when a mutation is started while a previous call
// of the same mutation is still in flight.
var ErrPending = errors.New("query: mutation already pending")

// Callbacks receive the outcome of one Mutate call.
type Callbacks[Out any] struct {
	OnSuccess func(Out)
	OnError   func(error)
}

// Mutation wraps a state-changing remote call with a pending flag and a
// bounded timeout.
type Mutation[In, Out any] struct {
	fn      func(context.Context, In) (Out, error)
	timeout time.Duration

	mu      sync.Mutex
	pending bool
	status  Status
	err     error
}

// NewMutation creates a mutation. A non-positive timeout selects
// DefaultMutationTimeout.
func NewMutation[In, Out any](fn func(context.Context, In) (Out, error), timeout time.Duration) *Mutation[In, Out] {
	if timeout <= 0 {
		timeout = DefaultMutationTimeout
	}
	return &Mutation[In, Out]{fn: fn, timeout: timeout}
}

// Mutate runs the call and dispatches the matching callback. It returns the
// call's error, or ErrPending without calling out when already in flight.
func (m *Mutation[In, Out]) Mutate(ctx context.Context, in In, cb Callbacks[Out]) (Out, error) {
	var zero Out

	m.mu.Lock()
	if m.pending {
		m.mu.Unlock()
		return zero, ErrPending
	}
	m.pending = true
	m.status = StatusPending
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	out, err := m.fn(ctx, in)
	cancel()

	m.mu.Lock()
	m.pending = false
	m.err = err
	if err != nil {
		m.status = StatusError
	} else {
		m.status = StatusSuccess
	}
	m.mu.Unlock()

	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return zero, err
	}
	if cb.OnSuccess != nil {
		cb.OnSuccess(out)
	}
	return out, nil
}

// IsPending reports whether a call is in flight.
func (m *Mutation[In, Out]) IsPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Status returns the outcome of the most recent call.
func (m *Mutation[In, Out]) Status() (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.err
}
