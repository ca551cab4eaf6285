package breaker

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
	metricsnoop "github.com/architeacher/adaptivebreaker/pkg/metrics/noop"
)

// Manager owns the named circuits of one process. The zero value is not
// usable, construct it with NewManager.
type Manager struct {
	defaults      Config
	clock         clockwork.Clock
	random        func() float64
	log           logger.Logger
	metrics       metrics.Client
	tracer        trace.Tracer
	interval      time.Duration
	businessHours BusinessHours
	concurrency   int

	mu       sync.RWMutex
	circuits map[string]*circuit

	observersMu sync.RWMutex
	observers   []Observer

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		defaults:      DefaultConfig(),
		clock:         clockwork.NewRealClock(),
		random:        rand.Float64,
		log:           logger.Nop(),
		metrics:       metricsnoop.NewMetricsClient(),
		tracer:        noop.NewTracerProvider().Tracer(tracerName),
		interval:      DefaultMaintenanceInterval,
		businessHours: BusinessHours{Start: DefaultBusinessHoursStart, End: DefaultBusinessHoursEnd},
		concurrency:   DefaultMaintenanceConcurrency,
		circuits:      make(map[string]*circuit),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// RegisterObserver adds o to the observers notified of every transition.
func (m *Manager) RegisterObserver(o Observer) {
	m.observersMu.Lock()
	defer m.observersMu.Unlock()

	m.observers = append(m.observers, o)
}

// circuit returns the named circuit, creating it from the defaults and
// overrides on first use.
func (m *Manager) circuit(name string, overrides []ConfigOverride) *circuit {
	m.mu.RLock()
	c, ok := m.circuits[name]
	m.mu.RUnlock()

	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok = m.circuits[name]; ok {
		return c
	}

	cfg := m.defaults
	for _, override := range overrides {
		override(&cfg)
	}

	c = newCircuit(name, cfg.normalized())
	m.circuits[name] = c

	m.log.Debug().Str(logger.FieldCircuit, name).Msg("circuit created")

	return c
}

func (m *Manager) lookup(name string) (*circuit, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.circuits[name]

	return c, ok
}

func (m *Manager) all() []*circuit {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*circuit, 0, len(m.circuits))
	for _, c := range m.circuits {
		out = append(out, c)
	}

	return out
}

// Names returns the known circuit names in lexical order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.circuits))
	for name := range m.circuits {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// State returns a copy of the named circuit's state.
func (m *Manager) State(name string) (State, bool) {
	c, ok := m.lookup(name)
	if !ok {
		return State{}, false
	}

	return c.state(m.clock.Now()), true
}

// States returns a copy of every circuit's state keyed by name.
func (m *Manager) States() map[string]State {
	now := m.clock.Now()
	circuits := m.all()

	out := make(map[string]State, len(circuits))
	for _, c := range circuits {
		out[c.name] = c.state(now)
	}

	return out
}

func (m *Manager) Snapshot(name string) (Snapshot, bool) {
	c, ok := m.lookup(name)
	if !ok {
		return Snapshot{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked(m.clock.Now()), true
}

// Reset restores the named circuit to a fresh closed state. Its config,
// including any adaptation, is kept.
func (m *Manager) Reset(name string) error {
	c, ok := m.lookup(name)
	if !ok {
		return ErrCircuitNotFound
	}

	now := m.clock.Now()

	c.mu.Lock()
	from := c.phase
	c.resetLocked()
	c.mu.Unlock()

	if from != PhaseClosed {
		m.emit(context.Background(), []TransitionEvent{newEvent(name, from, PhaseClosed, ReasonReset, now)})
	}

	return nil
}

// ForceOpen opens the named circuit for d, or for its sleep window when d is
// not positive. An already open circuit has its retry time extended if the
// new one is later. Unknown names are created from the defaults.
func (m *Manager) ForceOpen(name string, d time.Duration) {
	c := m.circuit(name, nil)
	now := m.clock.Now()

	c.mu.Lock()

	if d <= 0 {
		d = c.cfg.SleepWindow
	}

	var events []TransitionEvent

	if c.phase == PhaseOpen {
		if retryAt := now.Add(d); retryAt.After(c.retryAt) {
			c.retryAt = retryAt
			c.openWindow = d
		}
	} else {
		events = append(events, c.openLocked(d, ReasonForcedOpen, now))
	}

	c.mu.Unlock()

	m.emit(context.Background(), events)
}

// ForceClose closes the named circuit.
func (m *Manager) ForceClose(name string) error {
	c, ok := m.lookup(name)
	if !ok {
		return ErrCircuitNotFound
	}

	c.mu.Lock()

	var events []TransitionEvent
	if c.phase != PhaseClosed {
		events = append(events, c.transitionLocked(PhaseClosed, ReasonForcedClose, m.clock.Now()))
	}

	c.mu.Unlock()

	m.emit(context.Background(), events)

	return nil
}

// RecordResponseTime adds a latency sample to the named circuit.
func (m *Manager) RecordResponseTime(name string, d time.Duration) error {
	c, ok := m.lookup(name)
	if !ok {
		return ErrCircuitNotFound
	}

	m.metrics.Gauge(context.Background(), MetricHealthScore, c.record(d), attribute.String(AttrCircuit, name))

	return nil
}

// DetectPatterns runs a detection pass and returns the resulting patterns.
func (m *Manager) DetectPatterns(name string) ([]FailurePattern, error) {
	c, ok := m.lookup(name)
	if !ok {
		return nil, ErrCircuitNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.detectLocked(m.clock.Now())
	c.health = c.healthLocked()

	return slices.Clone(c.patterns), nil
}

// Retune adapts the named circuit's config and returns it. Circuits with
// adaptive scaling disabled are returned unchanged.
func (m *Manager) Retune(name string) (Config, error) {
	c, ok := m.lookup(name)
	if !ok {
		return Config{}, ErrCircuitNotFound
	}

	business := m.businessHours.contains(m.clock.Now().Hour())

	c.mu.Lock()
	defer c.mu.Unlock()

	c.retuneLocked(business)

	return c.cfg, nil
}

// ShouldAdmit runs one admission draw for a circuit in partial admission.
// Circuits in other phases draw nothing and admit only when closed.
func (m *Manager) ShouldAdmit(name string) (bool, error) {
	c, ok := m.lookup(name)
	if !ok {
		return false, ErrCircuitNotFound
	}

	return c.shouldAdmit(m.random), nil
}

// UpdateAdmission applies a call outcome to the admission probability of a
// circuit in partial admission, closing or opening it past the cutoffs.
// It is a no-op in every other phase.
func (m *Manager) UpdateAdmission(name string, success bool) error {
	c, ok := m.lookup(name)
	if !ok {
		return ErrCircuitNotFound
	}

	m.emit(context.Background(), c.updateAdmission(success, m.clock.Now()))

	return nil
}

// emit logs, counts and delivers events. It must be called without holding
// any circuit lock.
func (m *Manager) emit(ctx context.Context, events []TransitionEvent) {
	if len(events) == 0 {
		return
	}

	m.observersMu.RLock()
	observers := slices.Clone(m.observers)
	m.observersMu.RUnlock()

	for _, event := range events {
		ctx := logger.WithCircuit(ctx, event.Name)
		log := m.log.WithContext(ctx)

		entry := log.Info()
		if event.To == PhaseOpen {
			entry = log.Warn()
		}

		entry.
			Stringer(AttrFrom, event.From).
			Stringer(AttrTo, event.To).
			Str(AttrReason, event.Reason).
			Msg("circuit transition")

		m.metrics.Inc(ctx, MetricTransitions, 1,
			attribute.String(AttrCircuit, event.Name),
			attribute.String(AttrFrom, event.From.String()),
			attribute.String(AttrTo, event.To.String()),
		)

		for _, o := range observers {
			m.deliver(ctx, o, event)
		}
	}
}

func (m *Manager) deliver(ctx context.Context, o Observer, event TransitionEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().
				Str(logger.FieldCircuit, event.Name).
				Interface("panic", r).
				Msg("observer panicked")
		}
	}()

	o.OnTransition(ctx, event)
}
