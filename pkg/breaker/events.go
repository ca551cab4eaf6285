package breaker

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Transition reasons.
const (
	ReasonFailureThreshold   = "failure_threshold"
	ReasonErrorPercentage    = "error_percentage"
	ReasonSleepWindowElapsed = "sleep_window_elapsed"
	ReasonProbeSucceeded     = "probe_succeeded"
	ReasonProbeFailed        = "probe_failed"
	ReasonAdmissionRecovered = "admission_recovered"
	ReasonAdmissionCollapsed = "admission_collapsed"
	ReasonAmbiguousErrorRate = "ambiguous_error_rate"
	ReasonForcedOpen         = "forced_open"
	ReasonForcedClose        = "forced_close"
	ReasonReset              = "reset"
)

// TransitionEvent is emitted to every registered Observer when a circuit
// changes phase.
type TransitionEvent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Observer receives transition events. OnTransition is called synchronously
// from the goroutine that caused the transition, after the circuit has been
// unlocked, so implementations should return quickly.
type Observer interface {
	OnTransition(ctx context.Context, event TransitionEvent)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ctx context.Context, event TransitionEvent)

func (f ObserverFunc) OnTransition(ctx context.Context, event TransitionEvent) {
	f(ctx, event)
}

func newEvent(name string, from, to Phase, reason string, now time.Time) TransitionEvent {
	return TransitionEvent{
		ID:        uuid.NewString(),
		Name:      name,
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: now,
	}
}
