package breaker

import "time"

// BusinessHours is a daily window of whole hours, [Start, End) on the clock's
// local time. A window with Start > End wraps past midnight.
type BusinessHours struct {
	Start int
	End   int
}

func (b BusinessHours) contains(hour int) bool {
	switch {
	case b.Start == b.End:
		return false
	case b.Start < b.End:
		return hour >= b.Start && hour < b.End
	default:
		return hour >= b.Start || hour < b.End
	}
}

// retune derives the adapted config from the baseline. It depends only on
// its arguments, so repeating it without new signals changes nothing.
func retune(current, base Config, businessHours bool, health int, patterns []FailurePattern) Config {
	next := current

	if businessHours {
		next.FailureThreshold = tightenUint(base.FailureThreshold, 2, minBusinessFailureThreshold)
		next.ErrorPercentageThreshold = tightenFloat(base.ErrorPercentageThreshold, 10, minBusinessErrorPercentage)
	} else {
		next.FailureThreshold = relaxUint(base.FailureThreshold, 2, maxOffHoursFailureThreshold)
		next.ErrorPercentageThreshold = relaxFloat(base.ErrorPercentageThreshold, 10, maxOffHoursErrorPercentage)
	}

	next.SleepWindow = base.SleepWindow

	switch {
	case health < 50:
		next.SleepWindow = growDuration(next.SleepWindow, 1.5, maxSleepWindow)
	case health > 80:
		next.SleepWindow = shrinkDuration(next.SleepWindow, 0.8, minSleepWindow)
	}

	next.Timeout = base.Timeout
	next.HalfOpenProbeLimit = base.HalfOpenProbeLimit

	for _, p := range patterns {
		switch p.Kind {
		case PatternSpike:
			next.Timeout = growDuration(base.Timeout, 1.5, maxTimeout)
		case PatternCascade:
			next.HalfOpenProbeLimit = tightenUint(base.HalfOpenProbeLimit, 1, minHalfOpenProbeLimit)
		}
	}

	if health < 20 {
		next.FailureThreshold = tightenUint(next.FailureThreshold, 1, minEmergencyFailureThreshold)
		next.SleepWindow = growDuration(next.SleepWindow, 2, maxSleepWindow)
	}

	return next
}

func tightenUint(v, delta, floor uint) uint {
	if v <= floor {
		return v
	}

	if v-floor < delta {
		return floor
	}

	return v - delta
}

func relaxUint(v, delta, ceiling uint) uint {
	if v >= ceiling {
		return v
	}

	return min(v+delta, ceiling)
}

func tightenFloat(v, delta, floor float64) float64 {
	if v <= floor {
		return v
	}

	return max(v-delta, floor)
}

func relaxFloat(v, delta, ceiling float64) float64 {
	if v >= ceiling {
		return v
	}

	return min(v+delta, ceiling)
}

func growDuration(d time.Duration, factor float64, ceiling time.Duration) time.Duration {
	if d >= ceiling {
		return d
	}

	return min(time.Duration(float64(d)*factor), ceiling)
}

func shrinkDuration(d time.Duration, factor float64, floor time.Duration) time.Duration {
	if d <= floor {
		return d
	}

	return max(time.Duration(float64(d)*factor), floor)
}

// retuneLocked applies retune and reports whether the config changed.
func (c *circuit) retuneLocked(businessHours bool) bool {
	if !c.cfg.AdaptiveScalingEnabled {
		return false
	}

	next := retune(c.cfg, c.base, businessHours, c.health, c.patterns)
	if next == c.cfg {
		return false
	}

	c.cfg = next

	return true
}
