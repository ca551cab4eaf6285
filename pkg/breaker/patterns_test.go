package breaker

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// openAt trips the named circuit once at each offset from the test epoch,
// closing it again in between.
func openAt(t *testing.T, m *Manager, clock *clockwork.FakeClock, name string, offsets ...time.Duration) {
	t.Helper()

	for i, offset := range offsets {
		clock.Advance(testEpoch.Add(offset).Sub(clock.Now()))

		_, err := Execute(t.Context(), m, name, fail, WithFailureThreshold(1), WithVolumeThreshold(1000))
		require.ErrorIs(t, err, errBoom)
		require.Equal(t, PhaseOpen, phaseOf(m, name))

		if i < len(offsets)-1 {
			require.NoError(t, m.ForceClose(name))
		}
	}
}

func TestDetect_Periodic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		offsets       []time.Duration
		wantPeriodic  bool
		wantPredicted time.Time
	}{
		{
			name:          "evenly spaced opens",
			offsets:       []time.Duration{0, 100 * time.Second, 200 * time.Second},
			wantPeriodic:  true,
			wantPredicted: testEpoch.Add(300 * time.Second),
		},
		{
			name:          "slightly jittered opens",
			offsets:       []time.Duration{0, 95 * time.Second, 200 * time.Second, 300 * time.Second},
			wantPeriodic:  true,
			wantPredicted: testEpoch.Add(400 * time.Second),
		},
		{
			name:    "irregular opens",
			offsets: []time.Duration{0, 10 * time.Second, 200 * time.Second},
		},
		{
			name:    "too few opens",
			offsets: []time.Duration{0, 100 * time.Second},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, clock := newTestManager(t)
			openAt(t, m, clock, "tiles", tc.offsets...)

			patterns, err := m.DetectPatterns("tiles")
			require.NoError(t, err)

			if !tc.wantPeriodic {
				require.Empty(t, patterns)

				return
			}

			require.Len(t, patterns, 1)
			require.Equal(t, PatternPeriodic, patterns[0].Kind)
			require.InDelta(t, periodicConfidence, patterns[0].Confidence, 1e-9)
			require.Equal(t, tc.wantPredicted, patterns[0].PredictedAt)
			require.NotEmpty(t, patterns[0].Mitigation)

			state, _ := m.State("tiles")
			require.Len(t, state.Patterns, 1)
		})
	}
}

func TestDetect_Cascade(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		failures int
		latency  time.Duration
		want     []PatternKind
	}{
		{
			name:     "fast repeated failures",
			failures: 6,
			want:     []PatternKind{PatternCascade},
		},
		{
			name:     "not enough failures",
			failures: 5,
		},
		{
			name:     "slow failures",
			failures: 6,
			latency:  200 * time.Millisecond,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, _ := newTestManager(t)

			for range tc.failures {
				_, _ = Execute(t.Context(), m, "db", fail, WithFailureThreshold(100), WithVolumeThreshold(1000))
			}

			if tc.latency > 0 {
				for range 10 {
					require.NoError(t, m.RecordResponseTime("db", tc.latency))
				}
			}

			patterns, err := m.DetectPatterns("db")
			require.NoError(t, err)

			var kinds []PatternKind
			for _, p := range patterns {
				kinds = append(kinds, p.Kind)
			}

			require.Equal(t, tc.want, kinds)
		})
	}
}

func TestDetect_Spike(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t)

	for range 97 {
		_, _ = Execute(t.Context(), m, "feed", succeed, WithFailureThreshold(1), WithVolumeThreshold(1000))
	}

	openAt(t, m, clock, "feed", 0, 0, 0, 0)

	state, _ := m.State("feed")
	require.Equal(t, uint64(101), state.Counts.Requests)
	require.Len(t, state.Patterns, 1)
	require.Equal(t, PatternSpike, state.Patterns[0].Kind)
	require.InDelta(t, spikeConfidence, state.Patterns[0].Confidence, 1e-9)
}

func TestDetect_PatternLearningDisabled(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)

	for range 8 {
		_, _ = Execute(t.Context(), m, "quiet", fail,
			WithFailureThreshold(100), WithVolumeThreshold(1000), WithPatternLearning(false))
	}

	state, _ := m.State("quiet")
	require.Empty(t, state.Patterns)
}

func TestSnapshot_FailureProbability(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t)

	_, _ = Execute(t.Context(), m, "quiet", succeed)

	snap, _ := m.Snapshot("quiet")
	require.Zero(t, snap.FailureProbability)

	openAt(t, m, clock, "tiles", 0, 100*time.Second, 200*time.Second)

	snap, _ = m.Snapshot("tiles")
	require.InDelta(t, periodicConfidence*0.5, snap.FailureProbability, 1e-9)

	clock.Advance(50 * time.Second)

	snap, _ = m.Snapshot("tiles")
	require.InDelta(t, periodicConfidence, snap.FailureProbability, 1e-9)

	clock.Advance(60 * time.Second)

	snap, _ = m.Snapshot("tiles")
	require.InDelta(t, periodicConfidence*0.5, snap.FailureProbability, 1e-9)
}

func TestMaintenance_DecaysMissedPredictions(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t)
	openAt(t, m, clock, "tiles", 0, 100*time.Second, 200*time.Second)

	clock.Advance(101 * time.Second)
	m.RunMaintenance(t.Context())

	state, _ := m.State("tiles")
	require.Len(t, state.Patterns, 1)
	require.InDelta(t, 0.64, state.Patterns[0].Confidence, 1e-9)
	require.Equal(t, testEpoch.Add(400*time.Second), state.Patterns[0].PredictedAt)

	for tick := 2; tick <= 9; tick++ {
		clock.Advance(100 * time.Second)
		m.RunMaintenance(t.Context())

		state, _ = m.State("tiles")
		require.Len(t, state.Patterns, 1, "tick %d", tick)
		require.InDelta(t, math.Pow(0.8, float64(tick+1)), state.Patterns[0].Confidence, 1e-9)
	}

	for range 2 {
		clock.Advance(100 * time.Second)
		m.RunMaintenance(t.Context())

		state, _ = m.State("tiles")
		require.Empty(t, state.Patterns)
	}
}
