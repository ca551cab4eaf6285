package breaker

import (
	"math"
	"sync"
	"time"

	"github.com/architeacher/adaptivebreaker/pkg/breaker/stats"
)

const (
	sampleCapacity  = 1000
	historyCapacity = 100
)

// FailureReason classifies a failed call.
type FailureReason string

const (
	FailureError   FailureReason = "error"
	FailureTimeout FailureReason = "timeout"
	FailurePanic   FailureReason = "panic"
)

// Counts holds the cumulative and consecutive outcome counters of a circuit.
// They are cleared only by Reset.
type Counts struct {
	Requests             uint64 `json:"requests"`
	TotalSuccesses       uint64 `json:"total_successes"`
	TotalFailures        uint64 `json:"total_failures"`
	ConsecutiveSuccesses uint64 `json:"consecutive_successes"`
	ConsecutiveFailures  uint64 `json:"consecutive_failures"`
}

func (c *Counts) onSuccess() {
	c.Requests++
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.Requests++
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// ErrorRate is the failure ratio in [0, 1].
func (c Counts) ErrorRate() float64 {
	return float64(c.TotalFailures) / float64(max(c.Requests, 1))
}

// Transition is one entry of a circuit's history.
type Transition struct {
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	Counts    Counts    `json:"counts"`
}

// history keeps the most recent transitions, evicting the oldest first.
type history struct {
	entries []Transition
}

func (h *history) append(t Transition) {
	if len(h.entries) == historyCapacity {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:historyCapacity-1]
	}

	h.entries = append(h.entries, t)
}

// ticket is handed to an admitted call and returned with its outcome.
type ticket struct {
	generation uint64
	probe      bool
}

type circuit struct {
	mu sync.Mutex

	name string
	base Config
	cfg  Config

	phase             Phase
	counts            Counts
	lastFailure       time.Time
	lastFailureReason FailureReason
	retryAt           time.Time
	openWindow        time.Duration
	probes            uint
	admission         float64

	samples  *stats.Ring
	history  history
	patterns []FailurePattern
	health   int

	// retiredAnchor is the last open of a periodic pattern that decayed away.
	retiredAnchor time.Time

	// generation changes on every phase change and reset; outcomes of calls
	// admitted under an older generation do not drive transitions.
	generation uint64
}

func newCircuit(name string, cfg Config) *circuit {
	c := &circuit{
		name:    name,
		base:    cfg,
		cfg:     cfg,
		samples: stats.NewRing(sampleCapacity),
	}
	c.health = c.healthLocked()

	return c
}

// resetLocked restores the runtime state of a fresh circuit, keeping cfg.
func (c *circuit) resetLocked() {
	c.phase = PhaseClosed
	c.counts = Counts{}
	c.lastFailure = time.Time{}
	c.lastFailureReason = ""
	c.retryAt = time.Time{}
	c.openWindow = 0
	c.probes = 0
	c.admission = 0
	c.samples.Reset()
	c.history = history{}
	c.patterns = nil
	c.retiredAnchor = time.Time{}
	c.generation++
	c.health = c.healthLocked()
}

func (c *circuit) transitionLocked(to Phase, reason string, now time.Time) TransitionEvent {
	from := c.phase

	c.phase = to
	c.generation++
	c.probes = 0

	if to != PhaseOpen {
		c.retryAt = time.Time{}
	}

	switch {
	case to == PhasePartialAdmission:
		c.admission = initialAdmission
	case from == PhasePartialAdmission:
		c.admission = 0
	}

	switch to {
	case PhaseHalfOpen:
		c.counts.ConsecutiveSuccesses = 0
	case PhaseClosed:
		c.openWindow = 0
	}

	c.history.append(Transition{
		From:      from,
		To:        to,
		Timestamp: now,
		Reason:    reason,
		Counts:    c.counts,
	})
	c.health = c.healthLocked()

	return newEvent(c.name, from, to, reason, now)
}

// openLocked moves the circuit to open for window.
func (c *circuit) openLocked(window time.Duration, reason string, now time.Time) TransitionEvent {
	c.openWindow = window
	c.retryAt = now.Add(window)

	return c.transitionLocked(PhaseOpen, reason, now)
}

// reopenWindow doubles the previous open window, capped at the sleep window
// ceiling unless the previous window was already beyond it.
func (c *circuit) reopenWindow() time.Duration {
	prev := c.openWindow
	if prev <= 0 {
		prev = c.cfg.SleepWindow
	}

	return growDuration(prev, 2, maxSleepWindow)
}

// tripLocked reports whether a closed circuit has to open, and why.
func (c *circuit) tripLocked() (string, bool) {
	if c.counts.Requests >= uint64(c.cfg.VolumeThreshold) {
		return ReasonErrorPercentage, c.counts.ErrorRate()*100 >= c.cfg.ErrorPercentageThreshold
	}

	return ReasonFailureThreshold, c.counts.ConsecutiveFailures >= uint64(c.cfg.FailureThreshold)
}

// admit decides whether a call may run and reserves a probe slot when
// half-open.
func (c *circuit) admit(now time.Time, draw func() float64) (ticket, time.Duration, []TransitionEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var events []TransitionEvent

	if c.phase == PhaseOpen {
		if now.Before(c.retryAt) {
			return ticket{}, 0, nil, c.rejectLocked(RejectOpen)
		}

		events = append(events, c.transitionLocked(PhaseHalfOpen, ReasonSleepWindowElapsed, now))
	}

	tk := ticket{generation: c.generation}

	switch c.phase {
	case PhaseHalfOpen:
		if c.probes >= c.cfg.HalfOpenProbeLimit {
			return ticket{}, 0, events, c.rejectLocked(RejectProbeLimit)
		}

		c.probes++
		tk.probe = true
	case PhasePartialAdmission:
		if !c.drawLocked(draw()) {
			return ticket{}, 0, events, c.rejectLocked(RejectProbabilistic)
		}
	}

	return tk, c.cfg.Timeout, events, nil
}

func (c *circuit) rejectLocked(reason RejectReason) error {
	return &CircuitOpenError{
		Name:    c.name,
		Phase:   c.phase,
		Reason:  reason,
		RetryAt: c.retryAt,
	}
}

// complete folds the outcome of an admitted call back into the circuit.
func (c *circuit) complete(tk ticket, failure FailureReason, elapsed time.Duration, now time.Time) []TransitionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := tk.generation == c.generation
	if tk.probe && current && c.probes > 0 {
		c.probes--
	}

	c.samples.Add(elapsed)

	if failure == "" {
		c.counts.onSuccess()
	} else {
		c.counts.onFailure()
		c.lastFailure = now
		c.lastFailureReason = failure
	}

	defer func() { c.health = c.healthLocked() }()

	if !current {
		return nil
	}

	if failure == "" {
		return c.onSuccessLocked(now)
	}

	return c.onFailureLocked(now)
}

func (c *circuit) onSuccessLocked(now time.Time) []TransitionEvent {
	switch c.phase {
	case PhaseHalfOpen:
		if c.counts.ConsecutiveSuccesses >= uint64(c.cfg.SuccessThreshold) {
			return []TransitionEvent{c.transitionLocked(PhaseClosed, ReasonProbeSucceeded, now)}
		}
	case PhasePartialAdmission:
		c.admission = nextAdmission(c.admission, true)

		return c.admissionCutoffLocked(now)
	}

	return nil
}

func (c *circuit) onFailureLocked(now time.Time) []TransitionEvent {
	var events []TransitionEvent

	switch c.phase {
	case PhaseClosed:
		if reason, trip := c.tripLocked(); trip {
			events = append(events, c.openLocked(c.cfg.SleepWindow, reason, now))
		}
	case PhaseHalfOpen:
		events = append(events, c.openLocked(c.reopenWindow(), ReasonProbeFailed, now))
	case PhasePartialAdmission:
		c.admission = nextAdmission(c.admission, false)
		events = append(events, c.admissionCutoffLocked(now)...)
	}

	if c.cfg.PatternLearningEnabled {
		c.detectLocked(now)
	}

	if len(events) == 0 {
		if event, ok := c.partialLocked(now); ok {
			events = append(events, event)
		}
	}

	return events
}

// partialLocked moves a closed circuit into partial admission when its
// error rate is ambiguous and its failures follow a periodic pattern.
func (c *circuit) partialLocked(now time.Time) (TransitionEvent, bool) {
	if c.phase != PhaseClosed || !c.cfg.ProbabilisticModeEnabled {
		return TransitionEvent{}, false
	}

	errPct := c.counts.ErrorRate() * 100
	if errPct <= 30 || errPct >= 70 || !c.hasPatternLocked(PatternPeriodic) {
		return TransitionEvent{}, false
	}

	return c.transitionLocked(PhasePartialAdmission, ReasonAmbiguousErrorRate, now), true
}

func (c *circuit) hasPatternLocked(kind PatternKind) bool {
	for _, p := range c.patterns {
		if p.Kind == kind {
			return true
		}
	}

	return false
}

func clampUnit(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
