package runtime

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/architeacher/adaptivebreaker/internal/admin"
	"github.com/architeacher/adaptivebreaker/internal/config"
	"github.com/architeacher/adaptivebreaker/internal/infrastructure"
	"github.com/architeacher/adaptivebreaker/internal/usecases"
	"github.com/architeacher/adaptivebreaker/pkg/breaker"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
	"github.com/architeacher/adaptivebreaker/pkg/metrics/noop"
	"github.com/architeacher/adaptivebreaker/pkg/notify"
)

func defaultOptions() []DependencyOption {
	return []DependencyOption{
		WithConfig(),
		WithClock(),
		WithLogger(),
		WithTracing(),
		WithMetrics(),
		WithDispatcher(),
		WithManager(),
		WithApplication(),
		WithAdminHTTPServer(),
	}
}

func WithConfig() DependencyOption {
	return func(d *dependencies) error {
		cfg, err := config.Init()
		if err != nil {
			return fmt.Errorf("initializing configuration: %w", err)
		}

		d.config = cfg

		return nil
	}
}

func WithClock() DependencyOption {
	return func(d *dependencies) error {
		d.infra.clock = clockwork.NewRealClock()

		return nil
	}
}

func WithLogger() DependencyOption {
	return func(d *dependencies) error {
		d.infra.logger = logger.New(d.config.Logging.Level, d.config.Logging.Format)

		return nil
	}
}

func WithTracing() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Telemetry.Traces.Enabled {
			d.infra.tracerProvider = infrastructure.NewNoopTracerProvider()

			return nil
		}

		tp, shutdown, err := infrastructure.NewTracerProvider(d.config.App, d.config.Telemetry)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}

		d.infra.tracerProvider = tp
		d.onCleanup("tracer", shutdown)

		return nil
	}
}

func WithMetrics() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Telemetry.Metrics.Enabled {
			d.infra.metricsClient = noop.NewMetricsClient()

			return nil
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		descriptors := breaker.MetricDescriptors()
		for name, descriptor := range notify.MetricDescriptors() {
			descriptors[name] = descriptor
		}

		client, err := metrics.NewOTelClient(d.config.Telemetry.ServiceName, registry, descriptors)
		if err != nil {
			return fmt.Errorf("initializing metrics: %w", err)
		}

		d.infra.metricsClient = client
		d.onCleanup("metrics", client.Shutdown)

		return nil
	}
}

func WithDispatcher() DependencyOption {
	return func(d *dependencies) error {
		opts := []notify.Option{
			notify.WithLogger(d.infra.logger),
			notify.WithMetrics(d.infra.metricsClient),
		}

		if d.config.Notify.LogSink {
			opts = append(opts, notify.WithSink(notify.NewLogSink(d.infra.logger)))
		}

		if d.config.Notify.WebhookURL != "" {
			opts = append(opts, notify.WithSink(notify.NewWebhookSink(
				d.config.Notify.WebhookURL,
				notify.WithHTTPClient(&http.Client{Timeout: d.config.Notify.SendTimeout}),
				notify.WithRetry(d.config.WebhookRetry()),
			)))
		}

		d.dispatcher = notify.NewDispatcher(d.config.NotifyConfig(), opts...)
		d.onCleanup("dispatcher", d.dispatcher.Close)

		return nil
	}
}

func WithManager() DependencyOption {
	return func(d *dependencies) error {
		maintenance := d.config.Maintenance

		d.manager = breaker.NewManager(
			breaker.WithDefaults(d.config.BreakerConfig()),
			breaker.WithClock(d.infra.clock),
			breaker.WithLogger(d.infra.logger),
			breaker.WithMetrics(d.infra.metricsClient),
			breaker.WithTracerProvider(d.infra.tracerProvider),
			breaker.WithObserver(d.dispatcher),
			breaker.WithMaintenanceInterval(maintenance.Interval),
			breaker.WithMaintenanceConcurrency(maintenance.Concurrency),
			breaker.WithBusinessHours(maintenance.BusinessHoursStart, maintenance.BusinessHoursEnd),
		)

		d.onCleanup("breaker maintenance", func(context.Context) error {
			d.manager.Stop()

			return nil
		})

		return nil
	}
}

func WithApplication() DependencyOption {
	return func(d *dependencies) error {
		d.apps.admin = usecases.NewAdminApplication(
			d.manager,
			d.dispatcher,
			d.infra.logger,
			d.infra.tracerProvider,
			d.infra.metricsClient,
		)

		return nil
	}
}

func WithAdminHTTPServer() DependencyOption {
	return func(d *dependencies) error {
		cfg := d.config.AdminHTTPServer
		if !cfg.Enabled {
			return nil
		}

		router := admin.NewRouter(admin.RouterConfig{
			App:            d.apps.admin,
			MetricsHandler: d.infra.metricsClient.Handler(),
			Logger:         d.infra.logger,
			Clock:          d.infra.clock,
			TracerProvider: d.infra.tracerProvider,
			IdempotencyTTL: cfg.IdempotencyTTL,
		})

		d.infra.adminHTTPServer = &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		}

		d.onCleanup("admin http server", d.infra.adminHTTPServer.Shutdown)

		return nil
	}
}
