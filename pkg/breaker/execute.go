package breaker

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/architeacher/adaptivebreaker/pkg/logger"
)

type outcome[T any] struct {
	value    T
	err      error
	panicked bool
	panicVal any
}

// Execute runs op through the named circuit and returns its result.
//
// The circuit is created from the manager defaults and overrides on first
// use. op receives a context carrying the values of ctx that is cancelled
// only when the circuit timeout expires; cancelling ctx does not abort the
// call. Errors returned by op are passed through unchanged. A panic in op is
// recorded as a failure and re-raised.
func Execute[T any](
	ctx context.Context,
	m *Manager,
	name string,
	op func(context.Context) (T, error),
	overrides ...ConfigOverride,
) (T, error) {
	var zero T

	c := m.circuit(name, overrides)
	circuitAttr := attribute.String(AttrCircuit, name)

	ctx = logger.WithCircuit(ctx, name)
	ctx, span := m.tracer.Start(ctx, "breaker.execute", trace.WithAttributes(circuitAttr))
	defer span.End()

	tk, timeout, events, err := c.admit(m.clock.Now(), m.random)
	m.emit(ctx, events)

	if err != nil {
		var openErr *CircuitOpenError
		if errors.As(err, &openErr) {
			m.metrics.Inc(ctx, MetricRejections, 1, circuitAttr, attribute.String(AttrReason, string(openErr.Reason)))
			span.SetAttributes(attribute.String(AttrReason, string(openErr.Reason)))
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "rejected")

		log := m.log.WithContext(ctx)
		log.Debug().Err(err).Msg("call rejected")

		return zero, err
	}

	opCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	done := make(chan outcome[T], 1)
	start := m.clock.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{panicked: true, panicVal: r}
			}
		}()

		v, err := op(opCtx)
		done <- outcome[T]{value: v, err: err}
	}()

	timer := m.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		elapsed := m.clock.Since(start)

		switch {
		case res.panicked:
			m.finish(ctx, span, c, tk, FailurePanic, elapsed, nil)
			panic(res.panicVal)
		case res.err != nil:
			m.finish(ctx, span, c, tk, FailureError, elapsed, res.err)

			return zero, res.err
		default:
			m.finish(ctx, span, c, tk, "", elapsed, nil)

			return res.value, nil
		}
	case <-timer.Chan():
		cancel()

		err := &OperationTimeoutError{Name: name, Timeout: timeout}
		m.finish(ctx, span, c, tk, FailureTimeout, timeout, err)

		return zero, err
	}
}

// Execute is the untyped form of the package level Execute.
func (m *Manager) Execute(
	ctx context.Context,
	name string,
	op func(context.Context) (any, error),
	overrides ...ConfigOverride,
) (any, error) {
	return Execute(ctx, m, name, op, overrides...)
}

func (m *Manager) finish(
	ctx context.Context,
	span trace.Span,
	c *circuit,
	tk ticket,
	failure FailureReason,
	elapsed time.Duration,
	err error,
) {
	events := c.complete(tk, failure, elapsed, m.clock.Now())

	result := OutcomeSuccess
	if failure != "" {
		result = string(failure)
	}

	circuitAttr := attribute.String(AttrCircuit, c.name)

	m.metrics.Inc(ctx, MetricCalls, 1, circuitAttr, attribute.String(AttrOutcome, result))
	m.metrics.Record(ctx, MetricCallDuration, elapsed, circuitAttr, attribute.String(AttrOutcome, result))
	m.metrics.Gauge(ctx, MetricHealthScore, c.healthScore(), circuitAttr)

	span.SetAttributes(attribute.String(AttrOutcome, result))

	switch failure {
	case "":
	case FailurePanic:
		span.SetStatus(codes.Error, string(failure))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, string(failure))
	}

	m.emit(ctx, events)
}
