package notify

import "time"

const (
	DefaultQueueSize   = 256
	DefaultSendTimeout = 5 * time.Second
)

// Config holds the dispatcher configuration.
type Config struct {
	// QueueSize is the number of events buffered between the breaker engine
	// and the sinks. Events published to a full queue are dropped.
	QueueSize int

	// SendTimeout bounds a single delivery to a single sink.
	SendTimeout time.Duration

	// Guard configures the breaker placed in front of every sink.
	Guard GuardConfig
}

// GuardConfig holds the configuration of a sink guard.
type GuardConfig struct {
	// Enabled determines whether sinks are guarded at all.
	// When false, deliveries go straight to the sink.
	Enabled bool

	// MaxRequests is the maximum number of deliveries allowed through
	// while the guard is half-open. If MaxRequests is 0, the guard allows
	// only 1 delivery.
	MaxRequests uint

	// Interval is the cyclic period of the closed state after which the
	// guard clears its counts. If Interval is 0, counts are never cleared
	// while closed.
	Interval time.Duration

	// Timeout is the period of the open state, after which the guard
	// becomes half-open. If Timeout is 0, it defaults to 60 seconds.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failed deliveries that
	// opens the guard.
	FailureThreshold uint
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}

	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}

	if c.Guard.FailureThreshold == 0 {
		c.Guard.FailureThreshold = 1
	}

	return c
}
