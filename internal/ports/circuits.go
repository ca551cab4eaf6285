package ports

import (
	"time"

	"github.com/architeacher/adaptivebreaker/pkg/breaker"
)

// CircuitRegistry is the management surface of the breaker engine.
type CircuitRegistry interface {
	Names() []string
	State(name string) (breaker.State, bool)
	States() map[string]breaker.State
	Snapshot(name string) (breaker.Snapshot, bool)
	Reset(name string) error
	ForceOpen(name string, d time.Duration)
	ForceClose(name string) error
}

// SinkReporter reports the guard state of every notification sink.
type SinkReporter interface {
	SinkStates() map[string]string
}
