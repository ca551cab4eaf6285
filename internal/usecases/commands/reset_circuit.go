package commands

import (
	"context"

	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/architeacher/adaptivebreaker/internal/ports"
	"github.com/architeacher/adaptivebreaker/pkg/breaker"
	"github.com/architeacher/adaptivebreaker/pkg/decorator"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
)

type (
	ResetCircuitCommand struct {
		Name string
	}

	ResetCircuitCommandHandler = decorator.CommandHandler[ResetCircuitCommand, breaker.State]

	resetCircuitCommandHandler struct {
		registry ports.CircuitRegistry
	}
)

func NewResetCircuitCommandHandler(
	registry ports.CircuitRegistry,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ResetCircuitCommandHandler {
	return decorator.ApplyCommandDecorators[ResetCircuitCommand, breaker.State](
		resetCircuitCommandHandler{registry: registry},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h resetCircuitCommandHandler) Handle(_ context.Context, cmd ResetCircuitCommand) (breaker.State, error) {
	if err := h.registry.Reset(cmd.Name); err != nil {
		return breaker.State{}, err
	}

	state, _ := h.registry.State(cmd.Name)

	return state, nil
}
