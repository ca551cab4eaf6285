// Package stats holds the numeric building blocks of the breaker engine:
// a bounded sample buffer and the summary statistics derived from it.
package stats

import "time"

// Ring is a fixed-capacity buffer of durations. Once full, every Add
// overwrites the oldest sample. A Ring is not safe for concurrent use;
// callers serialise access with their own lock.
type Ring struct {
	samples []time.Duration
	next    int
	full    bool
	sum     time.Duration
}

// NewRing returns an empty ring holding at most capacity samples.
// A non-positive capacity is treated as 1.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}

	return &Ring{samples: make([]time.Duration, capacity)}
}

// Add appends d, evicting the oldest sample when the ring is full.
func (r *Ring) Add(d time.Duration) {
	if r.full {
		r.sum -= r.samples[r.next]
	}

	r.sum += d
	r.samples[r.next] = d
	r.next++

	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

// Len reports the number of stored samples.
func (r *Ring) Len() int {
	if r.full {
		return len(r.samples)
	}

	return r.next
}

// Cap reports the capacity of the ring.
func (r *Ring) Cap() int {
	return len(r.samples)
}

// Mean returns the average of the stored samples, or 0 when empty.
func (r *Ring) Mean() time.Duration {
	n := r.Len()
	if n == 0 {
		return 0
	}

	return r.sum / time.Duration(n)
}

// Values returns a copy of the stored samples, oldest first.
func (r *Ring) Values() []time.Duration {
	if !r.full {
		out := make([]time.Duration, r.next)
		copy(out, r.samples[:r.next])

		return out
	}

	out := make([]time.Duration, 0, len(r.samples))
	out = append(out, r.samples[r.next:]...)
	out = append(out, r.samples[:r.next]...)

	return out
}

// Reset drops every sample while keeping the capacity.
func (r *Ring) Reset() {
	clear(r.samples)
	r.sum = 0
	r.next = 0
	r.full = false
}
