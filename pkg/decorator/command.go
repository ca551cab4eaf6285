package decorator

import (
	"context"
	"fmt"
	"strings"

	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/architeacher/adaptivebreaker/pkg/breaker"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
)

type (
	Command any

	CommandHandler[C Command, R any] interface {
		Handle(context.Context, C) (R, error)
	}
)

func ApplyCommandDecorators[C Command, R any](
	handler CommandHandler[C, R],
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) CommandHandler[C, R] {
	return commandLoggingDecorator[C, R]{
		base: commandMetricsDecorator[C, R]{
			base: commandTracingDecorator[C, R]{
				base:           handler,
				tracerProvider: tracerProvider,
			},
			client: metricsClient,
		},
		logger: log,
	}
}

// ApplyGuardedCommandDecorators applies the standard decorators and runs the
// handler through the named circuit of manager.
func ApplyGuardedCommandDecorators[C Command, R any](
	handler CommandHandler[C, R],
	manager *breaker.Manager,
	circuit string,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
	overrides ...breaker.ConfigOverride,
) CommandHandler[C, R] {
	return ApplyCommandDecorators[C, R](
		commandBreakerDecorator[C, R]{
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

func generateActionName(handler any) string {
	name := strings.TrimPrefix(fmt.Sprintf("%T", handler), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}

	return name
}
