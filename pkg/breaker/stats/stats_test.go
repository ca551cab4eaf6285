package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/architeacher/adaptivebreaker/pkg/breaker/stats"
)

func TestRing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		capacity int
		add      []time.Duration
		want     []time.Duration
	}{
		{
			name:     "partially filled keeps insertion order",
			capacity: 4,
			add:      []time.Duration{1, 2, 3},
			want:     []time.Duration{1, 2, 3},
		},
		{
			name:     "overflow evicts oldest first",
			capacity: 3,
			add:      []time.Duration{1, 2, 3, 4, 5},
			want:     []time.Duration{3, 4, 5},
		},
		{
			name:     "exactly full",
			capacity: 2,
			add:      []time.Duration{7, 8},
			want:     []time.Duration{7, 8},
		},
		{
			name:     "zero capacity holds one sample",
			capacity: 0,
			add:      []time.Duration{1, 2},
			want:     []time.Duration{2},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := stats.NewRing(tc.capacity)
			for _, d := range tc.add {
				r.Add(d)
			}

			require.Equal(t, tc.want, r.Values())
			require.Equal(t, len(tc.want), r.Len())
			require.Equal(t, stats.MeanDuration(tc.want), r.Mean())
		})
	}
}

func TestRing_Reset(t *testing.T) {
	t.Parallel()

	r := stats.NewRing(2)
	r.Add(1)
	r.Add(2)
	r.Add(3)
	r.Reset()

	require.Zero(t, r.Len())
	require.Zero(t, r.Mean())
	require.Empty(t, r.Values())
	require.Equal(t, 2, r.Cap())
}

func TestSummarize_HundredSamples(t *testing.T) {
	t.Parallel()

	samples := make([]time.Duration, 0, 100)
	// Reverse order to prove Summarize sorts a copy.
	for i := 100; i >= 1; i-- {
		samples = append(samples, time.Duration(i*10)*time.Millisecond)
	}

	first := samples[0]

	p := stats.Summarize(samples)

	require.Equal(t, 510*time.Millisecond, p.P50)
	require.Equal(t, 960*time.Millisecond, p.P95)
	require.Equal(t, 1000*time.Millisecond, p.P99)
	require.Equal(t, first, samples[0])
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		samples []time.Duration
		p       float64
		want    time.Duration
	}{
		{name: "empty", samples: nil, p: 0.5, want: 0},
		{name: "single", samples: []time.Duration{42}, p: 0.99, want: 42},
		{name: "upper bound clamps", samples: []time.Duration{1, 2, 3}, p: 1, want: 3},
		{name: "zero percentile is minimum", samples: []time.Duration{3, 1, 2}, p: 0, want: 1},
		{name: "median of four", samples: []time.Duration{4, 3, 2, 1}, p: 0.5, want: 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, stats.Percentile(tc.samples, tc.p))
		})
	}
}

func TestMeanAndStdDev(t *testing.T) {
	t.Parallel()

	require.Zero(t, stats.Mean(nil))
	require.Zero(t, stats.StdDev(nil))
	require.InDelta(t, 5.0, stats.Mean([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
	require.InDelta(t, 2.0, stats.StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
	require.Equal(t, 20*time.Millisecond, stats.MeanDuration([]time.Duration{10 * time.Millisecond, 30 * time.Millisecond}))
}

func TestIntervals(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.Nil(t, stats.Intervals([]time.Time{base}))
	require.Equal(t,
		[]float64{100, 100},
		stats.Intervals([]time.Time{base, base.Add(100 * time.Second), base.Add(200 * time.Second)}),
	)
}
