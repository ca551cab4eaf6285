package breaker

import "time"

const (
	initialAdmission = 0.5

	admitGrowth  = 1.1
	denyDecay    = 0.9
	successBoost = 0.1
	failureDrop  = 0.15

	closeCutoff = 0.8
	openCutoff  = 0.2
)

// drawLocked admits iff draw < admission probability and then nudges the
// probability towards 1 on admit or towards 0 on deny.
func (c *circuit) drawLocked(draw float64) bool {
	admit := draw < c.admission

	if admit {
		c.admission = clampUnit(c.admission * admitGrowth)
	} else {
		c.admission = clampUnit(c.admission * denyDecay)
	}

	return admit
}

// nextAdmission applies the outcome-driven correction.
func nextAdmission(p float64, success bool) float64 {
	if success {
		return clampUnit(p + successBoost)
	}

	return clampUnit(p - failureDrop)
}

// admissionCutoffLocked closes or opens a partially admitting circuit once
// its probability leaves the (0.2, 0.8] band.
func (c *circuit) admissionCutoffLocked(now time.Time) []TransitionEvent {
	if c.phase != PhasePartialAdmission {
		return nil
	}

	switch {
	case c.admission > closeCutoff:
		return []TransitionEvent{c.transitionLocked(PhaseClosed, ReasonAdmissionRecovered, now)}
	case c.admission < openCutoff:
		return []TransitionEvent{c.openLocked(c.cfg.SleepWindow, ReasonAdmissionCollapsed, now)}
	}

	return nil
}

// shouldAdmit runs one admission draw. Circuits outside partial admission
// draw nothing and admit only when closed.
func (c *circuit) shouldAdmit(draw func() float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhasePartialAdmission {
		return c.phase == PhaseClosed
	}

	return c.drawLocked(draw())
}

// updateAdmission applies an outcome to the admission probability without
// touching the counters.
func (c *circuit) updateAdmission(success bool, now time.Time) []TransitionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhasePartialAdmission {
		return nil
	}

	c.admission = nextAdmission(c.admission, success)
	events := c.admissionCutoffLocked(now)
	c.health = c.healthLocked()

	return events
}
