package queries

import (
	"context"
	"fmt"

	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/architeacher/adaptivebreaker/internal/ports"
	"github.com/architeacher/adaptivebreaker/pkg/breaker"
	"github.com/architeacher/adaptivebreaker/pkg/decorator"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
)

type (
	GetCircuitQuery struct {
		Name string
	}

	GetCircuitQueryHandler = decorator.QueryHandler[GetCircuitQuery, breaker.State]

	getCircuitQueryHandler struct {
		registry ports.CircuitRegistry
	}

	GetSnapshotQuery struct {
		Name string
	}

	GetSnapshotQueryHandler = decorator.QueryHandler[GetSnapshotQuery, breaker.Snapshot]

	getSnapshotQueryHandler struct {
		registry ports.CircuitRegistry
	}
)

func NewGetCircuitQueryHandler(
	registry ports.CircuitRegistry,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) GetCircuitQueryHandler {
	return decorator.ApplyQueryDecorators[GetCircuitQuery, breaker.State](
		getCircuitQueryHandler{registry: registry},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h getCircuitQueryHandler) Execute(_ context.Context, query GetCircuitQuery) (breaker.State, error) {
	state, ok := h.registry.State(query.Name)
	if !ok {
		return breaker.State{}, fmt.Errorf("%w: %q", breaker.ErrCircuitNotFound, query.Name)
	}

	return state, nil
}

func NewGetSnapshotQueryHandler(
	registry ports.CircuitRegistry,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) GetSnapshotQueryHandler {
	return decorator.ApplyQueryDecorators[GetSnapshotQuery, breaker.Snapshot](
		getSnapshotQueryHandler{registry: registry},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h getSnapshotQueryHandler) Execute(_ context.Context, query GetSnapshotQuery) (breaker.Snapshot, error) {
	snapshot, ok := h.registry.Snapshot(query.Name)
	if !ok {
		return breaker.Snapshot{}, fmt.Errorf("%w: %q", breaker.ErrCircuitNotFound, query.Name)
	}

	return snapshot, nil
}
