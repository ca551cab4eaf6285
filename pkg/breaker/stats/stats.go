package stats

import (
	"math"
	"slices"
	"time"
)

// Percentiles holds the latency percentiles reported for a circuit.
type Percentiles struct {
	P50 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// Percentile returns the sample at index floor(n*p) of the sorted samples,
// clamped to the last element. The input slice is never reordered.
func Percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	return percentileSorted(sorted, p)
}

// Summarize computes P50, P95 and P99 with a single sort of a copy.
func Summarize(samples []time.Duration) Percentiles {
	if len(samples) == 0 {
		return Percentiles{}
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	return Percentiles{
		P50: percentileSorted(sorted, 0.50),
		P95: percentileSorted(sorted, 0.95),
		P99: percentileSorted(sorted, 0.99),
	}
}

func percentileSorted(sorted []time.Duration, p float64) time.Duration {
	if p <= 0 {
		return sorted[0]
	}

	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return sorted[idx]
}

// MeanDuration returns the arithmetic mean, or 0 for no samples.
func MeanDuration(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}

	var total float64
	for _, s := range samples {
		total += float64(s)
	}

	return time.Duration(total / float64(len(samples)))
}

// Mean returns the arithmetic mean of values, or 0 when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var total float64
	for _, v := range values {
		total += v
	}

	return total / float64(len(values))
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	mean := Mean(values)

	var sum float64
	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}

	return math.Sqrt(sum / float64(len(values)))
}

// Intervals returns the gaps between consecutive timestamps, in seconds.
// The timestamps are expected in chronological order.
func Intervals(ts []time.Time) []float64 {
	if len(ts) < 2 {
		return nil
	}

	out := make([]float64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		out = append(out, ts[i].Sub(ts[i-1]).Seconds())
	}

	return out
}
