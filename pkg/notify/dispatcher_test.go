package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/architeacher/adaptivebreaker/pkg/breaker"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
)

type collector struct {
	name string
	err  error

	mu     sync.Mutex
	events []breaker.TransitionEvent
}

func (c *collector) Name() string {
	return c.name
}

func (c *collector) Send(_ context.Context, event breaker.TransitionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, event)

	return c.err
}

func (c *collector) Events() []breaker.TransitionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]breaker.TransitionEvent(nil), c.events...)
}

func event(name, reason string) breaker.TransitionEvent {
	return breaker.TransitionEvent{
		ID:        name + "-" + reason,
		Name:      name,
		From:      breaker.PhaseClosed,
		To:        breaker.PhaseOpen,
		Reason:    reason,
		Timestamp: time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC),
	}
}

func closeDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, d.Close(ctx))
}

func TestDispatcher_DeliversInOrderToEverySink(t *testing.T) {
	t.Parallel()

	first := &collector{name: "first"}
	second := &collector{name: "second"}

	d := NewDispatcher(Config{}, WithSink(first), WithSink(second))
	d.Start()

	for _, reason := range []string{"a", "b", "c"} {
		require.NoError(t, d.Publish(event("payments", reason)))
	}

	closeDispatcher(t, d)

	for _, sink := range []*collector{first, second} {
		var got []string
		for _, e := range sink.Events() {
			got = append(got, e.Reason)
		}

		require.Equal(t, []string{"a", "b", "c"}, got, sink.name)
	}

	require.Equal(t, Stats{Delivered: 6}, d.Stats())
}

func TestDispatcher_GuardsFailingSinks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		guard     GuardConfig
		wantCalls int
		wantStats Stats
		wantState string
		wantLogs  []string
	}{
		{
			name: "guarded sink is skipped once open",
			guard: GuardConfig{
				Enabled:          true,
				Timeout:          time.Hour,
				FailureThreshold: 2,
			},
			wantCalls: 2,
			wantStats: Stats{Delivered: 5, Failed: 2, Skipped: 3},
			wantState: "open",
			wantLogs:  []string{`"message":"notification failed"`, `"message":"notification skipped"`},
		},
		{
			name:      "unguarded sink is called every time",
			guard:     GuardConfig{Enabled: false},
			wantCalls: 5,
			wantStats: Stats{Delivered: 5, Failed: 5},
			wantState: "closed",
			wantLogs:  []string{`"message":"notification failed"`},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			broken := &collector{name: "broken", err: errors.New("pager down")}
			healthy := &collector{name: "healthy"}

			var logs safeBuffer

			d := NewDispatcher(Config{Guard: tc.guard},
				WithSink(broken),
				WithSink(healthy),
				WithLogger(logger.NewBufferedTestLogger(&logs)),
			)
			d.Start()

			for range 5 {
				require.NoError(t, d.Publish(event("search", "failure_threshold")))
			}

			closeDispatcher(t, d)

			require.Len(t, broken.Events(), tc.wantCalls)
			require.Len(t, healthy.Events(), 5)
			require.Equal(t, tc.wantStats, d.Stats())
			require.Equal(t, tc.wantState, d.SinkStates()["broken"])
			require.Equal(t, "closed", d.SinkStates()["healthy"])

			for _, want := range tc.wantLogs {
				require.Contains(t, string(logs.Bytes()), want)
			}
		})
	}
}

func TestDispatcher_DropsWhenQueueIsFull(t *testing.T) {
	t.Parallel()

	var logs safeBuffer

	sink := &collector{name: "audit"}
	d := NewDispatcher(Config{QueueSize: 1}, WithSink(sink), WithLogger(logger.NewBufferedTestLogger(&logs)))

	require.NoError(t, d.Publish(event("orders", "a")))
	require.ErrorIs(t, d.Publish(event("orders", "b")), ErrQueueFull)

	d.OnTransition(context.Background(), event("orders", "c"))

	closeDispatcher(t, d)

	require.Len(t, sink.Events(), 1)
	require.Equal(t, Stats{Delivered: 1, Dropped: 2}, d.Stats())
	require.Contains(t, string(logs.Bytes()), `"message":"transition event dropped"`)
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(Config{})
	closeDispatcher(t, d)
	closeDispatcher(t, d)

	require.ErrorIs(t, d.Publish(event("orders", "late")), ErrDispatcherClosed)
}

func TestDispatcher_ObservesManager(t *testing.T) {
	t.Parallel()

	sink := &collector{name: "audit"}
	d := NewDispatcher(Config{}, WithSink(sink))
	d.Start()

	m := breaker.NewManager(breaker.WithObserver(d))
	m.ForceOpen("inventory", time.Minute)
	require.NoError(t, m.ForceClose("inventory"))

	closeDispatcher(t, d)

	events := sink.Events()
	require.Len(t, events, 2)
	require.Equal(t, breaker.ReasonForcedOpen, events[0].Reason)
	require.Equal(t, breaker.ReasonForcedClose, events[1].Reason)
}

func TestWebhookSink(t *testing.T) {
	t.Parallel()

	retry := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	cases := []struct {
		name             string
		statuses         []int
		retry            RetryConfig
		wantErr          bool
		expectedAttempts int
	}{
		{
			name:             "accepted",
			statuses:         []int{http.StatusAccepted},
			expectedAttempts: 1,
		},
		{
			name:             "server error without retries",
			statuses:         []int{http.StatusBadGateway},
			wantErr:          true,
			expectedAttempts: 1,
		},
		{
			name:             "server error retried until exhausted",
			statuses:         []int{http.StatusBadGateway},
			retry:            retry,
			wantErr:          true,
			expectedAttempts: 3,
		},
		{
			name:             "recovers on retry",
			statuses:         []int{http.StatusServiceUnavailable, http.StatusOK},
			retry:            retry,
			expectedAttempts: 2,
		},
		{
			name:             "client error is not retried",
			statuses:         []int{http.StatusBadRequest},
			retry:            retry,
			wantErr:          true,
			expectedAttempts: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var (
				mu       sync.Mutex
				attempts int
				received breaker.TransitionEvent
				keys     []string
			)

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				defer mu.Unlock()

				keys = append(keys, r.Header.Get("Idempotency-Key"))
				_ = json.NewDecoder(r.Body).Decode(&received)

				status := tc.statuses[min(attempts, len(tc.statuses)-1)]
				attempts++

				w.WriteHeader(status)
			}))
			t.Cleanup(srv.Close)

			want := event("checkout", "probe_failed")
			sink := NewWebhookSink(srv.URL, WithHTTPClient(srv.Client()), WithRetry(tc.retry))

			err := sink.Send(t.Context(), want)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			mu.Lock()
			defer mu.Unlock()

			require.Equal(t, tc.expectedAttempts, attempts)

			for _, key := range keys {
				require.Equal(t, want.ID, key)
			}

			require.Equal(t, want.Name, received.Name)
			require.Equal(t, want.Reason, received.Reason)
			require.True(t, want.Timestamp.Equal(received.Timestamp))
		})
	}
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	var buf safeBuffer

	sink := NewLogSink(logger.NewBufferedTestLogger(&buf))
	require.NoError(t, sink.Send(context.Background(), event("payments", "failure_threshold")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "payments", line[logger.FieldCircuit])
	require.Equal(t, "open", line["to"])
	require.Equal(t, "circuit alert", line["message"])
}

type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)

	return len(p), nil
}

func (b *safeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]byte(nil), b.buf...)
}
