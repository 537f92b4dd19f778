package resilience

import (
	"sync"
)

// Collaborator names an outbound dependency of the vibe engine.
type Collaborator string

// The engine's collaborators, one breaker each.
const (
	Places     Collaborator = "places"
	Nearby     Collaborator = "nearby"
	Crime      Collaborator = "crime"
	Classifier Collaborator = "classifier"
)

// Collaborators lists every known collaborator in a stable order.
func Collaborators() []Collaborator {
	return []Collaborator{Places, Nearby, Crime, Classifier}
}

// Set holds one breaker per collaborator.
type Set struct {
	mu       sync.RWMutex
	breakers map[Collaborator]*Breaker
	settings Settings
}

// NewSet creates breakers for every known collaborator.
func NewSet(s Settings) *Set {
	set := &Set{
		breakers: make(map[Collaborator]*Breaker, 4),
		settings: s,
	}
	for _, c := range Collaborators() {
		set.breakers[c] = newBreaker(c, s)
	}
	return set
}

// For returns the breaker for c, creating one for a collaborator not in
// Collaborators.
func (s *Set) For(c Collaborator) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[c]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.breakers[c]; ok {
		return b
	}
	b = newBreaker(c, s.settings)
	s.breakers[c] = b
	return b
}

// States snapshots every breaker, keyed by collaborator name.
func (s *Set) States() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.breakers))
	for c, b := range s.breakers {
		out[string(c)] = b.State().String()
	}
	return out
}
