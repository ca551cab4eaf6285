package runtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/architeacher/adaptivebreaker/internal/config"
	"github.com/architeacher/adaptivebreaker/internal/usecases"
	"github.com/architeacher/adaptivebreaker/pkg/breaker"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
	"github.com/architeacher/adaptivebreaker/pkg/notify"
)

type (
	infrastructureDep struct {
		adminHTTPServer *http.Server
		clock           clockwork.Clock
		logger          logger.Logger
		metricsClient   metrics.Client
		tracerProvider  otelTrace.TracerProvider
	}

	applications struct {
		admin *usecases.AdminApplication
	}

	cleanup struct {
		resource string
		fn       func(ctx context.Context) error
	}

	dependencies struct {
		config *config.ServiceConfig

		infra infrastructureDep

		manager    *breaker.Manager
		dispatcher *notify.Dispatcher

		apps applications

		// cleanups run in reverse registration order, so the engine stops
		// before the dispatcher drains and telemetry flushes last.
		cleanups []cleanup
	}

	DependencyOption func(*dependencies) error
)

func initializeDependencies(opts ...DependencyOption) (*dependencies, error) {
	deps := &dependencies{}

	allOpts := append(defaultOptions(), opts...)

	for _, opt := range allOpts {
		if err := opt(deps); err != nil {
			return nil, fmt.Errorf("failed to apply dependency option: %w", err)
		}
	}

	return deps, nil
}

func (d *dependencies) onCleanup(resource string, fn func(ctx context.Context) error) {
	d.cleanups = append(d.cleanups, cleanup{resource: resource, fn: fn})
}
