package notify

import (
	"errors"

	"github.com/sony/gobreaker/v2"

	"github.com/architeacher/adaptivebreaker/pkg/logger"
)

// guard wraps gobreaker to stop hammering a sink that keeps failing.
type guard struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// newGuard creates the guard of one sink. Returns nil if guarding is
// disabled in the configuration.
func newGuard(name string, cfg GuardConfig, log logger.Logger) *guard {
	if !cfg.Enabled {
		return nil
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("sink", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("notification sink guard changed state")
		},
	})

	return &guard{cb: cb}
}

func (g *guard) state() gobreaker.State {
	if g == nil {
		return gobreaker.StateClosed
	}

	return g.cb.State()
}

// run executes fn through the guard. A nil guard runs fn directly.
// Returns ErrSinkOpen while the guard is open and ErrSinkThrottled when it
// is half-open with every probe slot taken.
func (g *guard) run(fn func() error) error {
	if g == nil {
		return fn()
	}

	_, err := g.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return ErrSinkOpen
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrSinkThrottled
	default:
		return err
	}
}
