package breaker

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
)

const (
	DefaultMaintenanceInterval    = 5 * time.Second
	DefaultMaintenanceConcurrency = 4
	DefaultBusinessHoursStart     = 9
	DefaultBusinessHoursEnd       = 17
)

type Option func(*Manager)

// WithDefaults sets the config every new circuit starts from.
func WithDefaults(cfg Config) Option {
	return func(m *Manager) {
		m.defaults = cfg
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithRandom replaces the uniform [0, 1) source used for admission draws.
// fn must be safe for concurrent use.
func WithRandom(fn func() float64) Option {
	return func(m *Manager) {
		m.random = fn
	}
}

func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

func WithMetrics(client metrics.Client) Option {
	return func(m *Manager) {
		m.metrics = client
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		m.tracer = tp.Tracer(tracerName)
	}
}

// WithObserver registers an observer at construction. It can be repeated.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observers = append(m.observers, o)
	}
}

func WithMaintenanceInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithBusinessHours sets the daily window, in whole hours, during which the
// self-healer tightens thresholds.
func WithBusinessHours(start, end int) Option {
	return func(m *Manager) {
		m.businessHours = BusinessHours{Start: start, End: end}
	}
}

// WithMaintenanceConcurrency bounds how many circuits one maintenance tick
// processes in parallel.
func WithMaintenanceConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}
