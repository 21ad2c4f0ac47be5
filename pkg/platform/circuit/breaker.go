// Package circuit is a small consecutive-failure circuit breaker for calls to
// collaborators that can go away (external ledgers, remote audit sinks).
package circuit

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	// StateHalfOpen is an open breaker whose cooldown elapsed; probes pass.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// StateChange reports a transition caused by the last recorded outcome.
type StateChange struct {
	Opened bool
	Closed bool
}

type Breaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time
	onChange         func(name string, s State)

	failures  int
	successes int
	open      bool
	openedAt  time.Time
}

type Option func(*Breaker)

// WithFailureThreshold sets the consecutive failures that open the breaker.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the consecutive successes that close it again.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets how long an open breaker rejects calls before probing.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// OnStateChange is called, outside the lock, whenever the breaker opens or closes.
func OnStateChange(fn func(name string, s State)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 1,
		cooldown:         30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state()
}

func (b *Breaker) state() State {
	if !b.open {
		return StateClosed
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return StateOpen
}

// IsOpen reports whether the breaker is tripped, cooled down or not.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Allow reports whether a call may go to the primary right now.
func (b *Breaker) Allow() bool {
	return b.State() != StateOpen
}

// RecordFailure counts a failed call. useFallback is true while the breaker
// is open after this failure.
func (b *Breaker) RecordFailure() (useFallback bool, change StateChange) {
	b.mu.Lock()
	b.successes = 0
	if b.open {
		// A failed probe restarts the cooldown.
		b.openedAt = b.now()
		b.mu.Unlock()
		return true, change
	}
	b.failures++
	if b.failures >= b.failureThreshold {
		b.open = true
		b.openedAt = b.now()
		change.Opened = true
	}
	open := b.open
	b.mu.Unlock()

	if change.Opened {
		b.notify(StateOpen)
	}
	return open, change
}

// RecordSuccess counts a successful call. usePrimary is true once the breaker
// is closed.
func (b *Breaker) RecordSuccess() (usePrimary bool, change StateChange) {
	b.mu.Lock()
	b.failures = 0
	if !b.open {
		b.mu.Unlock()
		return true, change
	}
	b.successes++
	if b.successes >= b.successThreshold {
		b.open = false
		b.successes = 0
		change.Closed = true
	}
	closed := !b.open
	b.mu.Unlock()

	if change.Closed {
		b.notify(StateClosed)
	}
	return closed, change
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	wasOpen := b.open
	b.failures, b.successes, b.open = 0, 0, false
	b.mu.Unlock()
	if wasOpen {
		b.notify(StateClosed)
	}
}

func (b *Breaker) notify(s State) {
	if b.onChange != nil {
		b.onChange(b.name, s)
	}
}
