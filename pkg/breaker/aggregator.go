package breaker

import (
	"math"
	"time"

	"github.com/architeacher/adaptivebreaker/pkg/breaker/stats"
)

// Snapshot is a read-only metrics view of a circuit, derived on demand.
type Snapshot struct {
	Requests           uint64        `json:"requests"`
	ErrorRate          float64       `json:"error_rate"`
	AverageLatency     time.Duration `json:"average_latency"`
	P50                time.Duration `json:"p50"`
	P95                time.Duration `json:"p95"`
	P99                time.Duration `json:"p99"`
	HealthScore        int           `json:"health_score"`
	FailureProbability float64       `json:"failure_probability"`
}

func (c *circuit) snapshotLocked(now time.Time) Snapshot {
	pct := stats.Summarize(c.samples.Values())

	return Snapshot{
		Requests:           c.counts.Requests,
		ErrorRate:          c.counts.ErrorRate(),
		AverageLatency:     c.samples.Mean(),
		P50:                pct.P50,
		P95:                pct.P95,
		P99:                pct.P99,
		HealthScore:        c.health,
		FailureProbability: c.failureProbabilityLocked(now),
	}
}

// healthLocked computes the composite health score:
//
//	0.4*(100-errorPct) + 0.3*latencyScore + 0.2*phaseScore + 0.1*patternScore
//
// latencyScore drops by one point per 100ms of average latency and
// patternScore by 20 points per detected pattern.
func (c *circuit) healthLocked() int {
	errPct := c.counts.ErrorRate() * 100
	avgMs := float64(c.samples.Mean()) / float64(time.Millisecond)

	latencyScore := math.Max(0, 100-avgMs/100)
	patternScore := math.Max(0, 100-20*float64(len(c.patterns)))

	score := 0.4*(100-errPct) + 0.3*latencyScore + 0.2*c.phase.score() + 0.1*patternScore

	return int(math.Min(math.Max(math.Round(score), 0), 100))
}

// record adds a response-time sample outside of a guarded call.
func (c *circuit) record(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples.Add(d)
	c.health = c.healthLocked()

	return c.health
}

func (c *circuit) healthScore() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.health
}
