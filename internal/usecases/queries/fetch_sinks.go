package queries

import (
	"context"

	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/architeacher/adaptivebreaker/internal/ports"
	"github.com/architeacher/adaptivebreaker/pkg/decorator"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
)

type (
	FetchSinksQuery struct{}

	FetchSinksQueryHandler = decorator.QueryHandler[FetchSinksQuery, map[string]string]

	fetchSinksQueryHandler struct {
		reporter ports.SinkReporter
	}
)

func NewFetchSinksQueryHandler(
	reporter ports.SinkReporter,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) FetchSinksQueryHandler {
	return decorator.ApplyQueryDecorators[FetchSinksQuery, map[string]string](
		fetchSinksQueryHandler{reporter: reporter},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h fetchSinksQueryHandler) Execute(_ context.Context, _ FetchSinksQuery) (map[string]string, error) {
	if h.reporter == nil {
		return map[string]string{}, nil
	}

	return h.reporter.SinkStates(), nil
}
