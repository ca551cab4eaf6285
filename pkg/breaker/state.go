package breaker

import (
	"slices"
	"time"
)

// State is a read-only copy of a circuit.
type State struct {
	Name              string        `json:"name"`
	Phase             Phase         `json:"phase"`
	Config            Config        `json:"config"`
	Counts            Counts        `json:"counts"`
	LastFailure       time.Time     `json:"last_failure,omitzero"`
	LastFailureReason FailureReason `json:"last_failure_reason,omitempty"`
	RetryAt           time.Time     `json:"retry_at,omitzero"`
	// AdmissionProbability is meaningful only when HasAdmission is set,
	// which is the case in partial admission.
	AdmissionProbability float64          `json:"admission_probability"`
	HasAdmission         bool             `json:"has_admission"`
	HealthScore          int              `json:"health_score"`
	Patterns             []FailurePattern `json:"patterns"`
	History              []Transition     `json:"history"`
	Snapshot             Snapshot         `json:"snapshot"`
}

func (c *circuit) state(now time.Time) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	partial := c.phase == PhasePartialAdmission

	s := State{
		Name:              c.name,
		Phase:             c.phase,
		Config:            c.cfg,
		Counts:            c.counts,
		LastFailure:       c.lastFailure,
		LastFailureReason: c.lastFailureReason,
		RetryAt:           c.retryAt,
		HasAdmission:      partial,
		HealthScore:       c.health,
		Patterns:          slices.Clone(c.patterns),
		History:           slices.Clone(c.history.entries),
		Snapshot:          c.snapshotLocked(now),
	}

	if partial {
		s.AdmissionProbability = c.admission
	}

	return s
}
