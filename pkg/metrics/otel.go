package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// OTelClient implements Client on top of an OTel SDK meter provider whose
// reader is the Prometheus exporter. Instruments are created lazily on
// first use and cached by name.
type OTelClient struct {
	provider    *sdkmetric.MeterProvider
	meter       metric.Meter
	handler     http.Handler
	descriptors map[string]Descriptor

	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64Gauge
}

// NewOTelClient builds a client registering its collectors on registry.
// A nil registry gets a fresh one. descriptors supplies the optional
// description and unit of known instrument names.
func NewOTelClient(serviceName string, registry *prometheus.Registry, descriptors map[string]Descriptor) (*OTelClient, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)

	if descriptors == nil {
		descriptors = map[string]Descriptor{}
	}

	return &OTelClient{
		provider:    provider,
		meter:       provider.Meter(serviceName),
		handler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		descriptors: descriptors,
		counters:    make(map[string]metric.Float64Counter),
		histograms:  make(map[string]metric.Float64Histogram),
		gauges:      make(map[string]metric.Float64Gauge),
	}, nil
}

func (c *OTelClient) Inc(ctx context.Context, key string, value any, attributes ...attribute.KeyValue) {
	v, err := ToFloat64(value)
	if err != nil {
		otel.Handle(fmt.Errorf("%s: %w", key, err))

		return
	}

	counter, err := c.counter(key)
	if err != nil {
		otel.Handle(err)

		return
	}

	counter.Add(ctx, v, metric.WithAttributes(attributes...))
}

func (c *OTelClient) Record(ctx context.Context, key string, value any, attributes ...attribute.KeyValue) {
	v, err := ToFloat64(value)
	if err != nil {
		otel.Handle(fmt.Errorf("%s: %w", key, err))

		return
	}

	histogram, err := c.histogram(key)
	if err != nil {
		otel.Handle(err)

		return
	}

	histogram.Record(ctx, v, metric.WithAttributes(attributes...))
}

func (c *OTelClient) Gauge(ctx context.Context, key string, value any, attributes ...attribute.KeyValue) {
	v, err := ToFloat64(value)
	if err != nil {
		otel.Handle(fmt.Errorf("%s: %w", key, err))

		return
	}

	gauge, err := c.gauge(key)
	if err != nil {
		otel.Handle(err)

		return
	}

	gauge.Record(ctx, v, metric.WithAttributes(attributes...))
}

func (c *OTelClient) Handler() http.Handler {
	return c.handler
}

// MeterProvider exposes the underlying provider for callers wiring their
// own instruments.
func (c *OTelClient) MeterProvider() metric.MeterProvider {
	return c.provider
}

func (c *OTelClient) Shutdown(ctx context.Context) error {
	if err := c.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down meter provider: %w", err)
	}

	return nil
}

func (c *OTelClient) counter(key string) (metric.Float64Counter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, ok := c.counters[key]; ok {
		return counter, nil
	}

	counter, err := RegisterFloat64Counter(c.meter, c.descriptors[key], key)
	if err != nil {
		return nil, err
	}

	c.counters[key] = counter

	return counter, nil
}

func (c *OTelClient) histogram(key string) (metric.Float64Histogram, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if histogram, ok := c.histograms[key]; ok {
		return histogram, nil
	}

	histogram, err := RegisterFloat64Histogram(c.meter, c.descriptors[key], key)
	if err != nil {
		return nil, err
	}

	c.histograms[key] = histogram

	return histogram, nil
}

func (c *OTelClient) gauge(key string) (metric.Float64Gauge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gauge, ok := c.gauges[key]; ok {
		return gauge, nil
	}

	gauge, err := RegisterFloat64Gauge(c.meter, c.descriptors[key], key)
	if err != nil {
		return nil, err
	}

	c.gauges[key] = gauge

	return gauge, nil
}
