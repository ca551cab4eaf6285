package decorator

import (
	"context"

	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/architeacher/adaptivebreaker/pkg/breaker"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
)

type (
	Query  any
	Result any

	QueryHandler[Q Query, R Result] interface {
		Execute(ctx context.Context, query Q) (R, error)
	}
)

func ApplyQueryDecorators[Q Query, R Result](
	handler QueryHandler[Q, R],
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) QueryHandler[Q, R] {
	return queryLoggingDecorator[Q, R]{
		base: queryMetricsDecorator[Q, R]{
			base: queryTracingDecorator[Q, R]{
				base:           handler,
				tracerProvider: tracerProvider,
			},
			client: metricsClient,
		},
		logger: log,
	}
}

// ApplyGuardedQueryDecorators applies the standard decorators and runs the
// handler through the named circuit of manager.
func ApplyGuardedQueryDecorators[Q Query, R Result](
	handler QueryHandler[Q, R],
	manager *breaker.Manager,
	circuit string,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
	overrides ...breaker.ConfigOverride,
) QueryHandler[Q, R] {
	return ApplyQueryDecorators[Q, R](
		queryBreakerDecorator[Q, R]{
			base:      handler,
			manager:   manager,
			circuit:   circuit,
			overrides: overrides,
		},
		log,
		metricsClient,
		tracerProvider,
	)
}
