// Package notify delivers circuit transition events to external sinks.
//
// A Dispatcher is registered as a breaker.Observer. It queues events without
// blocking the engine and delivers them from a single worker, in order, to
// every sink. Each sink sits behind its own guard so one failing sink is
// skipped rather than retried on every event.
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/architeacher/adaptivebreaker/pkg/breaker"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
	"github.com/architeacher/adaptivebreaker/pkg/metrics/noop"
)

const (
	MetricDeliveries = "notify_deliveries"
	MetricDropped    = "notify_dropped"

	resultDelivered = "delivered"
	resultSkipped   = "skipped"
	resultFailed    = "failed"
)

// MetricDescriptors describes the instruments the Dispatcher reports.
func MetricDescriptors() map[string]metrics.Descriptor {
	return map[string]metrics.Descriptor{
		MetricDeliveries: {
			Description: "Notification deliveries per sink and result",
			Unit:        "{delivery}",
		},
		MetricDropped: {
			Description: "Transition events dropped before delivery",
			Unit:        "{event}",
		},
	}
}

type route struct {
	sink  Sink
	guard *guard
}

// Stats counts what the dispatcher did with the events it was given.
type Stats struct {
	Delivered uint64
	Failed    uint64
	Skipped   uint64
	Dropped   uint64
}

type Dispatcher struct {
	cfg     Config
	log     logger.Logger
	metrics metrics.Client
	routes  []route

	queue chan breaker.TransitionEvent

	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	done      chan struct{}

	delivered atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
	dropped   atomic.Uint64
}

type Option func(*Dispatcher)

func WithLogger(log logger.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

func WithMetrics(client metrics.Client) Option {
	return func(d *Dispatcher) {
		d.metrics = client
	}
}

// WithSink adds a sink. Sinks receive events in the order they were added.
func WithSink(sink Sink) Option {
	return func(d *Dispatcher) {
		d.routes = append(d.routes, route{sink: sink})
	}
}

func NewDispatcher(cfg Config, opts ...Option) *Dispatcher {
	cfg = cfg.withDefaults()

	d := &Dispatcher{
		cfg:     cfg,
		log:     logger.Nop(),
		metrics: noop.NewMetricsClient(),
		queue:   make(chan breaker.TransitionEvent, cfg.QueueSize),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	for i := range d.routes {
		d.routes[i].guard = newGuard(d.routes[i].sink.Name(), cfg.Guard, d.log)
	}

	return d
}

// Start launches the delivery worker. Calling it more than once has no
// further effect.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

// OnTransition implements breaker.Observer. It never blocks: events that do
// not fit in the queue are dropped and counted.
func (d *Dispatcher) OnTransition(ctx context.Context, event breaker.TransitionEvent) {
	if err := d.Publish(event); err != nil {
		log := d.log.WithContext(ctx)
		log.Warn().Err(err).Str("event_id", event.ID).Msg("transition event dropped")
	}
}

// Publish enqueues event for delivery.
func (d *Dispatcher) Publish(event breaker.TransitionEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- event:
		return nil
	default:
		d.dropped.Add(1)
		d.metrics.Inc(context.Background(), MetricDropped, 1, attribute.String("circuit", event.Name))

		return ErrQueueFull
	}
}

// Close stops accepting events and waits until the queued ones are
// delivered or ctx is done. Close starts the worker if Start was never
// called, so queued events are not lost.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.Start()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Skipped:   d.skipped.Load(),
		Dropped:   d.dropped.Load(),
	}
}

// SinkStates reports the guard state of every sink by name.
func (d *Dispatcher) SinkStates() map[string]string {
	out := make(map[string]string, len(d.routes))
	for _, r := range d.routes {
		out[r.sink.Name()] = r.guard.state().String()
	}

	return out
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for event := range d.queue {
		for _, r := range d.routes {
			d.deliver(r, event)
		}
	}
}

func (d *Dispatcher) deliver(r route, event breaker.TransitionEvent) {
	ctx := logger.WithCircuit(context.Background(), event.Name)

	err := r.guard.run(func() error {
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()

		return r.sink.Send(sendCtx, event)
	})

	result := resultDelivered
	log := d.log.WithContext(ctx)

	switch {
	case err == nil:
		d.delivered.Add(1)
	case errors.Is(err, ErrSinkOpen), errors.Is(err, ErrSinkThrottled):
		result = resultSkipped
		d.skipped.Add(1)
		log.Debug().Str("sink", r.sink.Name()).Err(err).Msg("notification skipped")
	default:
		result = resultFailed
		d.failed.Add(1)
		log.Error().Str("sink", r.sink.Name()).Err(err).Msg("notification failed")
	}

	d.metrics.Inc(ctx, MetricDeliveries, 1,
		attribute.String("sink", r.sink.Name()),
		attribute.String("result", result),
	)
}
