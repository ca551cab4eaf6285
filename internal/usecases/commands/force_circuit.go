package commands

import (
	"context"
	"fmt"
	"time"

	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/architeacher/adaptivebreaker/internal/ports"
	"github.com/architeacher/adaptivebreaker/pkg/breaker"
	"github.com/architeacher/adaptivebreaker/pkg/decorator"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
)

type (
	ForceOpenCircuitCommand struct {
		Name string

		// Duration of the forced open window. Zero uses the circuit's sleep window.
		Duration time.Duration
	}

	ForceOpenCircuitCommandHandler = decorator.CommandHandler[ForceOpenCircuitCommand, breaker.State]

	forceOpenCircuitCommandHandler struct {
		registry ports.CircuitRegistry
	}

	ForceCloseCircuitCommand struct {
		Name string
	}

	ForceCloseCircuitCommandHandler = decorator.CommandHandler[ForceCloseCircuitCommand, breaker.State]

	forceCloseCircuitCommandHandler struct {
		registry ports.CircuitRegistry
	}
)

func NewForceOpenCircuitCommandHandler(
	registry ports.CircuitRegistry,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ForceOpenCircuitCommandHandler {
	return decorator.ApplyCommandDecorators[ForceOpenCircuitCommand, breaker.State](
		forceOpenCircuitCommandHandler{registry: registry},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h forceOpenCircuitCommandHandler) Handle(_ context.Context, cmd ForceOpenCircuitCommand) (breaker.State, error) {
	if cmd.Name == "" {
		return breaker.State{}, fmt.Errorf("%w: empty circuit name", breaker.ErrInvalidConfig)
	}

	if cmd.Duration < 0 {
		return breaker.State{}, fmt.Errorf("%w: negative force-open duration %s", breaker.ErrInvalidConfig, cmd.Duration)
	}

	h.registry.ForceOpen(cmd.Name, cmd.Duration)

	state, _ := h.registry.State(cmd.Name)

	return state, nil
}

func NewForceCloseCircuitCommandHandler(
	registry ports.CircuitRegistry,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ForceCloseCircuitCommandHandler {
	return decorator.ApplyCommandDecorators[ForceCloseCircuitCommand, breaker.State](
		forceCloseCircuitCommandHandler{registry: registry},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h forceCloseCircuitCommandHandler) Handle(_ context.Context, cmd ForceCloseCircuitCommand) (breaker.State, error) {
	if err := h.registry.ForceClose(cmd.Name); err != nil {
		return breaker.State{}, err
	}

	state, _ := h.registry.State(cmd.Name)

	return state, nil
}
