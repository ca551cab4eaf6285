package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	testEpoch = time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	errBoom   = errors.New("boom")
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(testEpoch)

	return NewManager(append([]Option{WithClock(clock)}, opts...)...), clock
}

func succeed(context.Context) (string, error) {
	return "ok", nil
}

func fail(context.Context) (string, error) {
	return "", errBoom
}

type recorder struct {
	mu     sync.Mutex
	events []TransitionEvent
}

func (r *recorder) OnTransition(_ context.Context, event TransitionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) Events() []TransitionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]TransitionEvent, len(r.events))
	copy(out, r.events)

	return out
}

// sequence returns a random source that cycles through values.
func sequence(values ...float64) func() float64 {
	var (
		mu sync.Mutex
		i  int
	)

	return func() float64 {
		mu.Lock()
		defer mu.Unlock()

		v := values[i%len(values)]
		i++

		return v
	}
}

// enterPartial puts the named circuit into partial admission with
// probability p.
func enterPartial(m *Manager, name string, p float64) {
	c := m.circuit(name, nil)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.transitionLocked(PhasePartialAdmission, ReasonAmbiguousErrorRate, m.clock.Now())
	c.admission = p
}

func phaseOf(m *Manager, name string) Phase {
	s, _ := m.State(name)

	return s.Phase
}

func reasons(history []Transition) []string {
	out := make([]string, 0, len(history))
	for _, t := range history {
		out = append(out, t.Reason)
	}

	return out
}
