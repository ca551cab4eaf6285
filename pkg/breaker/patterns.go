package breaker

import (
	"time"

	"github.com/architeacher/adaptivebreaker/pkg/breaker/stats"
)

// PatternKind names a recurring failure shape.
type PatternKind string

const (
	PatternPeriodic PatternKind = "periodic"
	PatternCascade  PatternKind = "cascade"
	PatternSpike    PatternKind = "spike"
)

const (
	periodicMinOpens      = 3
	periodicMaxVariation  = 0.2
	periodicConfidence    = 0.8
	cascadeMinFailures    = 5
	cascadeMaxLatency     = 100 * time.Millisecond
	cascadeConfidence     = 0.7
	spikeWindow           = 10
	spikeMinOpens         = 3
	spikeMinRequests      = 100
	spikeConfidence       = 0.6
	predictionDecay       = 0.8
	minPatternConfidence  = 0.1
	predictionHorizon     = 60 * time.Second
	unanchoredProbability = 0.5
)

// FailurePattern is a failure shape detected for a circuit.
type FailurePattern struct {
	Kind       PatternKind `json:"kind"`
	Confidence float64     `json:"confidence"`
	// PredictedAt is the expected time of the next failure, periodic only.
	PredictedAt time.Time `json:"predicted_at,omitzero"`
	Mitigation  string    `json:"mitigation"`

	anchor   time.Time
	interval time.Duration
}

// detectLocked replaces the pattern list with a fresh detection pass.
func (c *circuit) detectLocked(now time.Time) {
	var found []FailurePattern

	if p, ok := c.periodicLocked(); ok {
		found = append(found, p)
	}

	if c.counts.ConsecutiveFailures > cascadeMinFailures && c.samples.Mean() < cascadeMaxLatency {
		found = append(found, FailurePattern{
			Kind:       PatternCascade,
			Confidence: cascadeConfidence,
			Mitigation: "reduce half-open probes, the dependency fails fast",
		})
	}

	if c.counts.Requests > spikeMinRequests && c.recentOpensLocked(spikeWindow) > spikeMinOpens {
		found = append(found, FailurePattern{
			Kind:       PatternSpike,
			Confidence: spikeConfidence,
			Mitigation: "raise the operation timeout",
		})
	}

	c.patterns = found
}

// periodicLocked looks for regularly spaced open transitions. A pass that
// finds the same last open as the previous one keeps its decayed prediction.
func (c *circuit) periodicLocked() (FailurePattern, bool) {
	var opens []time.Time

	for _, t := range c.history.entries {
		if t.To == PhaseOpen {
			opens = append(opens, t.Timestamp)
		}
	}

	if len(opens) < periodicMinOpens {
		return FailurePattern{}, false
	}

	intervals := stats.Intervals(opens)
	mean := stats.Mean(intervals)

	if mean <= 0 || stats.StdDev(intervals) >= periodicMaxVariation*mean {
		return FailurePattern{}, false
	}

	last := opens[len(opens)-1]
	if last.Equal(c.retiredAnchor) {
		return FailurePattern{}, false
	}

	for _, prev := range c.patterns {
		if prev.Kind == PatternPeriodic && prev.anchor.Equal(last) {
			return prev, true
		}
	}

	interval := time.Duration(mean * float64(time.Second))

	return FailurePattern{
		Kind:        PatternPeriodic,
		Confidence:  periodicConfidence,
		PredictedAt: last.Add(interval),
		Mitigation:  "shed load ahead of the predicted failure",
		anchor:      last,
		interval:    interval,
	}, true
}

func (c *circuit) recentOpensLocked(window int) int {
	entries := c.history.entries
	if len(entries) > window {
		entries = entries[len(entries)-window:]
	}

	var n int
	for _, t := range entries {
		if t.To == PhaseOpen {
			n++
		}
	}

	return n
}

// refreshPredictionsLocked decays periodic predictions whose time passed
// without a newer failure and rolls them forward by their interval.
func (c *circuit) refreshPredictionsLocked(now time.Time) {
	kept := c.patterns[:0]

	for _, p := range c.patterns {
		if p.Kind == PatternPeriodic && !p.PredictedAt.IsZero() && now.After(p.PredictedAt) {
			if c.lastFailure.Before(p.PredictedAt) {
				p.Confidence *= predictionDecay
			}

			for p.interval > 0 && !p.PredictedAt.After(now) {
				p.PredictedAt = p.PredictedAt.Add(p.interval)
			}
		}

		if p.Confidence < minPatternConfidence {
			if p.Kind == PatternPeriodic {
				c.retiredAnchor = p.anchor
			}

			continue
		}

		kept = append(kept, p)
	}

	if len(kept) == 0 {
		kept = nil
	}

	c.patterns = kept
}

// failureProbabilityLocked estimates the chance of a failure within the next
// prediction horizon. A prediction whose time already passed counts as
// unanchored.
func (c *circuit) failureProbabilityLocked(now time.Time) float64 {
	var highest float64

	for _, p := range c.patterns {
		if p.Kind == PatternPeriodic && !p.PredictedAt.IsZero() {
			if until := p.PredictedAt.Sub(now); until >= 0 && until <= predictionHorizon {
				return p.Confidence
			}
		}

		highest = max(highest, p.Confidence)
	}

	return highest * unanchoredProbability
}
