package breaker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/architeacher/adaptivebreaker/pkg/logger"
)

// Start runs the maintenance loop every maintenance interval until ctx is
// done or Stop is called. Starting a running manager is a no-op; once the
// loop has ended it can be started again.
func (m *Manager) Start(ctx context.Context) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.cancel = cancel
	m.done = done

	ticker := m.clock.NewTicker(m.interval)

	go func() {
		defer func() {
			ticker.Stop()
			cancel()

			m.loopMu.Lock()
			if m.done == done {
				m.cancel, m.done = nil, nil
			}
			m.loopMu.Unlock()

			close(done)
		}()

		m.log.Info().Dur("interval", m.interval).Msg("circuit maintenance started")

		for {
			select {
			case <-ctx.Done():
				m.log.Info().Msg("circuit maintenance stopped")

				return
			case <-ticker.Chan():
				m.RunMaintenance(ctx)
			}
		}
	}()
}

// Stop halts the maintenance loop and waits for the running tick to finish.
// In-flight calls are not affected.
func (m *Manager) Stop() {
	m.loopMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.loopMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// RunMaintenance performs one maintenance pass over every circuit: open
// circuits whose retry time passed move to half-open, adaptive circuits are
// retuned and failure predictions are refreshed.
func (m *Manager) RunMaintenance(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(m.concurrency)

	business := m.businessHours.contains(m.clock.Now().Hour())

	for _, c := range m.all() {
		g.Go(func() error {
			m.maintain(ctx, c, business)

			return nil
		})
	}

	_ = g.Wait()
}

func (m *Manager) maintain(ctx context.Context, c *circuit, business bool) {
	ctx = logger.WithCircuit(ctx, c.name)
	log := m.log.WithContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("circuit maintenance failed")
		}
	}()

	events, retuned, health := c.tick(m.clock.Now(), business)

	if retuned {
		log.Debug().Msg("circuit retuned")
	}

	m.metrics.Gauge(ctx, MetricHealthScore, health, attribute.String(AttrCircuit, c.name))
	m.emit(ctx, events)
}

func (c *circuit) tick(now time.Time, business bool) ([]TransitionEvent, bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var events []TransitionEvent

	if c.phase == PhaseOpen && !now.Before(c.retryAt) {
		events = append(events, c.transitionLocked(PhaseHalfOpen, ReasonSleepWindowElapsed, now))
	}

	retuned := c.retuneLocked(business)

	if c.cfg.PatternLearningEnabled {
		c.refreshPredictionsLocked(now)
		c.detectLocked(now)
	}

	if event, ok := c.partialLocked(now); ok {
		events = append(events, event)
	}

	events = append(events, c.admissionCutoffLocked(now)...)
	c.health = c.healthLocked()

	return events, retuned, c.health
}
