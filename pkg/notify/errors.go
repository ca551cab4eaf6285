package notify

import "errors"

var (
	// ErrSinkOpen indicates the sink guard is open and the sink is skipped
	// until its timeout elapses.
	ErrSinkOpen = errors.New("notification sink is open")

	// ErrSinkThrottled indicates the sink guard is half-open and already has
	// its maximum number of probe deliveries in flight.
	ErrSinkThrottled = errors.New("notification sink is throttled")

	// ErrQueueFull indicates the event was dropped because the dispatcher
	// queue is at capacity.
	ErrQueueFull = errors.New("notification queue is full")

	// ErrDispatcherClosed indicates the dispatcher no longer accepts events.
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
)
