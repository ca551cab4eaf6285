package queries

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
	ListCircuitsQuery struct {
		// Phase, when set, keeps only circuits in that phase.
		Phase *breaker.Phase
	}

	ListCircuitsQueryHandler = decorator.QueryHandler[ListCircuitsQuery, []breaker.State]

	listCircuitsQueryHandler struct {
		registry ports.CircuitRegistry
	}
)

func NewListCircuitsQueryHandler(
	registry ports.CircuitRegistry,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ListCircuitsQueryHandler {
	return decorator.ApplyQueryDecorators[ListCircuitsQuery, []breaker.State](
		listCircuitsQueryHandler{registry: registry},
		log,
		metricsClient,
		tracerProvider,
	)
}

// Execute returns the circuits ordered by name.
func (h listCircuitsQueryHandler) Execute(_ context.Context, query ListCircuitsQuery) ([]breaker.State, error) {
	states := h.registry.States()
	result := make([]breaker.State, 0, len(states))

	for _, name := range h.registry.Names() {
		state, ok := states[name]
		if !ok {
			continue
		}

		if query.Phase != nil && state.Phase != *query.Phase {
			continue
		}

		result = append(result, state)
	}

	return result, nil
}
