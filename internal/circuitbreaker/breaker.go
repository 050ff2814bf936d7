package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker guards a single delivery endpoint. It opens after threshold
// consecutive failures, rejects calls for the cooldown period, then lets
// a single probe through (half-open) before closing again.
type Breaker struct {
	mu        sync.Mutex
	state     state
	failures  int
	openedAt  time.Time
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
	onChange  func(state string) // optional, nil = disabled
}

func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// WithStateListener registers a callback invoked on every state
// transition. The callback must not block.
func (b *Breaker) WithStateListener(fn func(state string)) *Breaker {
	b.onChange = fn
	return b
}

func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.clock().Sub(b.openedAt) >= b.cooldown {
			b.transition(stateHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		// A probe is already in flight.
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != stateClosed {
		b.transition(stateClosed)
	}
	b.failures = 0
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.threshold {
		b.openedAt = b.clock()
		if b.state != stateOpen {
			b.transition(stateOpen)
		}
	}
}

// transition must be called with the lock held.
func (b *Breaker) transition(next state) {
	b.state = next
	if b.onChange != nil {
		b.onChange(next.String())
	}
}
