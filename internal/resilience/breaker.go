// Package resilience guards calls to outbound collaborators with circuit
// breakers. Calls are never retried; a failure goes straight back to the
// caller and only counts toward opening the breaker.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is the position of a circuit breaker.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits one probe call at a time.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without invoking the call when the breaker is open.
var ErrOpen = eris.New("resilience: circuit open")

// Settings controls every breaker in a Set.
type Settings struct {
	// FailureThreshold is the number of consecutive counted failures that
	// opens the breaker.
	FailureThreshold int
	// Cooldown is how long an open breaker waits before admitting a probe.
	Cooldown time.Duration
	// Counts decides whether an error counts as a collaborator failure.
	// Defaults to Trips.
	Counts func(err error) bool
	// OnTransition observes state changes.
	OnTransition func(c Collaborator, from, to State)
}

// NewSettings builds Settings from config values, falling back to 5
// failures and a 30s cooldown for non-positive inputs.
func NewSettings(failureThreshold, cooldownSecs int) Settings {
	s := Settings{FailureThreshold: 5, Cooldown: 30 * time.Second}
	if failureThreshold > 0 {
		s.FailureThreshold = failureThreshold
	}
	if cooldownSecs > 0 {
		s.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return s
}

// Breaker is the circuit breaker for one collaborator.
type Breaker struct {
	name     Collaborator
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

func newBreaker(name Collaborator, s Settings) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.Counts == nil {
		s.Counts = Trips
	}
	return &Breaker{name: name, settings: s, now: time.Now}
}

// Name returns the guarded collaborator.
func (b *Breaker) Name() Collaborator { return b.name }

// Call runs fn through b. The returned error is fn's own error, untouched,
// or ErrOpen if fn was never invoked.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}

	val, err := fn(ctx)
	b.record(err)
	if err != nil {
		return zero, err
	}
	return val, nil
}

// State reports the breaker's position. An open breaker whose cooldown has
// elapsed reports StateHalfOpen.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Failures returns the current run of consecutive counted failures.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.settings.Cooldown {
			return ErrOpen
		}
		b.moveTo(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.state == StateHalfOpen
	b.probing = false

	if !b.settings.Counts(err) {
		if wasProbe {
			if err == nil {
				b.failures = 0
				b.moveTo(StateClosed)
			}
			return
		}
		if err == nil {
			b.failures = 0
		}
		return
	}

	b.failures++
	if wasProbe || b.failures >= b.settings.FailureThreshold {
		b.openedAt = b.now()
		if b.state != StateOpen {
			b.moveTo(StateOpen)
		}
	}
}

func (b *Breaker) moveTo(to State) {
	from := b.state
	b.state = to
	if b.settings.OnTransition != nil && from != to {
		b.settings.OnTransition(b.name, from, to)
	}
}
