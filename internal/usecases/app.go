package usecases

import (
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/architeacher/adaptivebreaker/internal/ports"
	"github.com/architeacher/adaptivebreaker/internal/usecases/commands"
	"github.com/architeacher/adaptivebreaker/internal/usecases/queries"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
)

type (
	Commands struct {
		ResetCircuit      commands.ResetCircuitCommandHandler
		ForceOpenCircuit  commands.ForceOpenCircuitCommandHandler
		ForceCloseCircuit commands.ForceCloseCircuitCommandHandler
	}

	Queries struct {
		ListCircuits queries.ListCircuitsQueryHandler
		GetCircuit   queries.GetCircuitQueryHandler
		GetSnapshot  queries.GetSnapshotQueryHandler
		FetchSinks   queries.FetchSinksQueryHandler
	}

	AdminApplication struct {
		Commands Commands
		Queries  Queries
	}
)

func NewAdminApplication(
	registry ports.CircuitRegistry,
	sinks ports.SinkReporter,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) *AdminApplication {
	return &AdminApplication{
		Commands: Commands{
			ResetCircuit:      commands.NewResetCircuitCommandHandler(registry, log, tracerProvider, metricsClient),
			ForceOpenCircuit:  commands.NewForceOpenCircuitCommandHandler(registry, log, tracerProvider, metricsClient),
			ForceCloseCircuit: commands.NewForceCloseCircuitCommandHandler(registry, log, tracerProvider, metricsClient),
		},
		Queries: Queries{
			ListCircuits: queries.NewListCircuitsQueryHandler(registry, log, tracerProvider, metricsClient),
			GetCircuit:   queries.NewGetCircuitQueryHandler(registry, log, tracerProvider, metricsClient),
			GetSnapshot:  queries.NewGetSnapshotQueryHandler(registry, log, tracerProvider, metricsClient),
			FetchSinks:   queries.NewFetchSinksQueryHandler(sinks, log, tracerProvider, metricsClient),
		},
	}
}
