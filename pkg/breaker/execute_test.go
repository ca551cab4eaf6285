package breaker

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/architeacher/adaptivebreaker/pkg/logger"
)

func TestExecute_OpensAndRecoversThroughHalfOpen(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t)
	overrides := []ConfigOverride{
		WithFailureThreshold(3),
		WithVolumeThreshold(1),
		WithSuccessThreshold(1),
		WithSleepWindow(time.Second),
	}

	for range 3 {
		_, err := Execute(t.Context(), m, "payments", fail, overrides...)
		require.Error(t, err)
	}

	require.Equal(t, PhaseOpen, phaseOf(m, "payments"))

	clock.Advance(500 * time.Millisecond)

	_, err := Execute(t.Context(), m, "payments", succeed)
	require.ErrorIs(t, err, ErrCircuitOpen)

	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, RejectOpen, openErr.Reason)
	require.Equal(t, PhaseOpen, openErr.Phase)
	require.Equal(t, testEpoch.Add(time.Second), openErr.RetryAt)

	clock.Advance(500 * time.Millisecond)

	got, err := Execute(t.Context(), m, "payments", succeed)
	require.NoError(t, err)
	require.Equal(t, "ok", got)

	state, ok := m.State("payments")
	require.True(t, ok)
	require.Equal(t, PhaseClosed, state.Phase)
	require.True(t, state.RetryAt.IsZero())
	require.Equal(t,
		[]string{ReasonErrorPercentage, ReasonSleepWindowElapsed, ReasonProbeSucceeded},
		reasons(state.History),
	)
}

func TestExecute_TripRules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		overrides  []ConfigOverride
		calls      []bool
		wantReason string
	}{
		{
			name:       "consecutive failures under low volume",
			overrides:  []ConfigOverride{WithFailureThreshold(3), WithVolumeThreshold(100)},
			calls:      []bool{true, false, false, false},
			wantReason: ReasonFailureThreshold,
		},
		{
			name:      "error percentage once volume is reached",
			overrides: []ConfigOverride{WithVolumeThreshold(10), WithErrorPercentageThreshold(50)},
			calls: []bool{
				true, false, true, false, true,
				false, true, false, true, false,
			},
			wantReason: ReasonErrorPercentage,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, _ := newTestManager(t)

			for i, ok := range tc.calls {
				op := fail
				if ok {
					op = succeed
				}

				_, _ = Execute(t.Context(), m, "inventory", op, tc.overrides...)

				if i < len(tc.calls)-1 {
					require.Equal(t, PhaseClosed, phaseOf(m, "inventory"), "call %d", i+1)
				}
			}

			state, _ := m.State("inventory")
			require.Equal(t, PhaseOpen, state.Phase)
			require.Len(t, state.History, 1)
			require.Equal(t, tc.wantReason, state.History[0].Reason)
			require.Equal(t, uint64(len(tc.calls)), state.Counts.Requests)
		})
	}
}

func TestExecute_HalfOpenFailureDoublesWindow(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t)
	overrides := []ConfigOverride{
		WithFailureThreshold(1),
		WithVolumeThreshold(100),
		WithSleepWindow(10 * time.Second),
		WithAdaptiveScaling(false),
	}

	_, _ = Execute(t.Context(), m, "search", fail, overrides...)

	state, _ := m.State("search")
	require.Equal(t, testEpoch.Add(10*time.Second), state.RetryAt)

	for _, window := range []time.Duration{20 * time.Second, 40 * time.Second} {
		clock.Advance(state.RetryAt.Sub(clock.Now()))

		_, err := Execute(t.Context(), m, "search", fail)
		require.ErrorIs(t, err, errBoom)

		state, _ = m.State("search")
		require.Equal(t, PhaseOpen, state.Phase)
		require.Equal(t, clock.Now().Add(window), state.RetryAt)
	}
}

func TestExecute_HalfOpenProbeLimit(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t)
	overrides := []ConfigOverride{
		WithFailureThreshold(1),
		WithVolumeThreshold(100),
		WithSuccessThreshold(1),
		WithHalfOpenProbeLimit(1),
		WithSleepWindow(time.Second),
	}

	_, _ = Execute(t.Context(), m, "ledger", fail, overrides...)
	clock.Advance(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	result := make(chan error, 1)

	go func() {
		_, err := Execute(context.Background(), m, "ledger", func(context.Context) (string, error) {
			close(started)
			<-release

			return "ok", nil
		})
		result <- err
	}()

	<-started

	_, err := Execute(t.Context(), m, "ledger", succeed)

	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, RejectProbeLimit, openErr.Reason)
	require.Equal(t, PhaseHalfOpen, openErr.Phase)

	close(release)
	require.NoError(t, <-result)
	require.Equal(t, PhaseClosed, phaseOf(m, "ledger"))
}

func TestExecute_Timeout(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t)

	cancelled := make(chan struct{})
	result := make(chan error, 1)

	go func() {
		_, err := Execute(context.Background(), m, "slow", func(ctx context.Context) (string, error) {
			<-ctx.Done()
			close(cancelled)

			return "", ctx.Err()
		}, WithTimeout(2*time.Second))
		result <- err
	}()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(2 * time.Second)

	err := <-result
	require.ErrorIs(t, err, ErrOperationTimeout)

	var timeoutErr *OperationTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, "slow", timeoutErr.Name)
	require.Equal(t, 2*time.Second, timeoutErr.Timeout)

	<-cancelled

	state, _ := m.State("slow")
	require.Equal(t, uint64(1), state.Counts.TotalFailures)
	require.Equal(t, FailureTimeout, state.LastFailureReason)
	require.Equal(t, 2*time.Second, state.Snapshot.AverageLatency)
}

func TestExecute_LateSuccessAfterTimeoutIsDiscarded(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t)

	release := make(chan struct{})
	returned := make(chan struct{})
	result := make(chan error, 1)

	go func() {
		_, err := Execute(context.Background(), m, "reports", func(context.Context) (string, error) {
			defer close(returned)

			<-release

			return "late", nil
		}, WithTimeout(time.Second))
		result <- err
	}()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(time.Second)

	require.ErrorIs(t, <-result, ErrOperationTimeout)

	close(release)
	<-returned

	state, _ := m.State("reports")
	require.Zero(t, state.Counts.TotalSuccesses)
	require.Equal(t, uint64(1), state.Counts.TotalFailures)
	require.Equal(t, uint64(1), state.Counts.Requests)
	require.Equal(t, uint64(1), state.Counts.ConsecutiveFailures)
}

func TestExecute_LogsRejections(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	m, _ := newTestManager(t, WithLogger(logger.NewBufferedTestLogger(&buf)))
	m.ForceOpen("search", time.Minute)

	_, err := Execute(t.Context(), m, "search", succeed)
	require.ErrorIs(t, err, ErrCircuitOpen)

	require.Contains(t, buf.String(), `"message":"call rejected"`)
	require.Contains(t, buf.String(), `"circuit":"search"`)
}

func TestExecute_PassesErrorsThrough(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)

	type codedError struct{ error }

	want := &codedError{error: errBoom}

	_, err := Execute(t.Context(), m, "billing", func(context.Context) (int, error) {
		return 0, want
	})

	require.Same(t, want, err)

	state, _ := m.State("billing")
	require.Equal(t, FailureError, state.LastFailureReason)
	require.Equal(t, testEpoch, state.LastFailure)
}

func TestExecute_RepanicsAfterRecording(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)

	require.PanicsWithValue(t, "kaboom", func() {
		_, _ = Execute(t.Context(), m, "fragile", func(context.Context) (int, error) {
			panic("kaboom")
		})
	})

	state, _ := m.State("fragile")
	require.Equal(t, uint64(1), state.Counts.TotalFailures)
	require.Equal(t, FailurePanic, state.LastFailureReason)
}

func TestExecute_IgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}

	m, _ := newTestManager(t)

	ctx, cancel := context.WithCancel(context.WithValue(t.Context(), ctxKey{}, "tenant-a"))
	cancel()

	got, err := m.Execute(ctx, "profile", func(ctx context.Context) (any, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return ctx.Value(ctxKey{}), nil
	})

	require.NoError(t, err)
	require.Equal(t, "tenant-a", got)
}

func TestExecute_OverridesApplyOnCreationOnly(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)

	_, _ = Execute(t.Context(), m, "catalog", succeed, WithFailureThreshold(7))
	_, _ = Execute(t.Context(), m, "catalog", succeed, WithFailureThreshold(2))

	state, _ := m.State("catalog")
	require.Equal(t, uint(7), state.Config.FailureThreshold)
}

func TestExecute_Concurrent(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, WithDefaults(Config{
		FailureThreshold:         1000,
		VolumeThreshold:          10000,
		ErrorPercentageThreshold: 100,
	}))

	var wg sync.WaitGroup

	for w := range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 50 {
				op := succeed
				if (w+i)%2 == 0 {
					op = fail
				}

				_, _ = Execute(context.Background(), m, "shared", op)
			}
		}()
	}

	wg.Wait()

	state, _ := m.State("shared")
	require.Equal(t, PhaseClosed, state.Phase)
	require.Equal(t, uint64(1000), state.Counts.Requests)
	require.Equal(t, uint64(500), state.Counts.TotalFailures)
	require.InDelta(t, 0.5, state.Snapshot.ErrorRate, 1e-9)
}

func TestExecute_RejectsWithoutRunning(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	m.ForceOpen("mail", time.Minute)

	var ran bool

	_, err := Execute(t.Context(), m, "mail", func(context.Context) (string, error) {
		ran = true

		return "", nil
	})

	require.True(t, errors.Is(err, ErrCircuitOpen))
	require.False(t, ran)

	state, _ := m.State("mail")
	require.Zero(t, state.Counts.Requests)
}
