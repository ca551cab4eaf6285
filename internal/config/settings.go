package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/adaptivebreaker/pkg/breaker"
	"github.com/architeacher/adaptivebreaker/pkg/notify"
)

var (
	ServiceVersion string
	CommitSHA      string
)

const (
	Development = 1 << iota
	Sandbox
	Staging
	Production
)

var ErrInvalidSettings = errors.New("invalid settings")

type (
	ServiceConfig struct {
		App             App             `json:"app"`
		Breaker         Breaker         `json:"breaker"`
		Maintenance     Maintenance     `json:"maintenance"`
		AdminHTTPServer AdminHTTPServer `json:"admin_http_server"`
		Notify          Notify          `json:"notify"`
		Logging         Logging         `json:"logging"`
		Telemetry       Telemetry       `json:"telemetry"`
	}

	App struct {
		ServiceName    string      `envconfig:"APP_SERVICE_NAME" default:"breakerd" json:"service_name"`
		ServiceVersion string      `envconfig:"APP_SERVICE_VERSION" default:"dev" json:"service_version"`
		CommitSHA      string      `envconfig:"APP_COMMIT_SHA" default:"" json:"commit_sha,omitempty"`
		Env            Environment `json:"environment"`
	}

	Environment struct {
		Name string `envconfig:"APP_ENVIRONMENT" default:"development" json:"env"`
	}

	// Breaker holds the defaults every circuit is created with.
	Breaker struct {
		FailureThreshold         uint          `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5" json:"failure_threshold"`
		SuccessThreshold         uint          `envconfig:"BREAKER_SUCCESS_THRESHOLD" default:"3" json:"success_threshold"`
		Timeout                  time.Duration `envconfig:"BREAKER_TIMEOUT" default:"10s" json:"timeout"`
		HalfOpenProbeLimit       uint          `envconfig:"BREAKER_HALF_OPEN_PROBE_LIMIT" default:"3" json:"half_open_probe_limit"`
		VolumeThreshold          uint          `envconfig:"BREAKER_VOLUME_THRESHOLD" default:"20" json:"volume_threshold"`
		ErrorPercentageThreshold float64       `envconfig:"BREAKER_ERROR_PERCENTAGE_THRESHOLD" default:"50" json:"error_percentage_threshold"`
		SleepWindow              time.Duration `envconfig:"BREAKER_SLEEP_WINDOW" default:"60s" json:"sleep_window"`
		AdaptiveScalingEnabled   bool          `envconfig:"BREAKER_ADAPTIVE_SCALING_ENABLED" default:"true" json:"adaptive_scaling_enabled"`
		ProbabilisticModeEnabled bool          `envconfig:"BREAKER_PROBABILISTIC_MODE_ENABLED" default:"false" json:"probabilistic_mode_enabled"`
		PatternLearningEnabled   bool          `envconfig:"BREAKER_PATTERN_LEARNING_ENABLED" default:"true" json:"pattern_learning_enabled"`
	}

	Maintenance struct {
		Interval           time.Duration `envconfig:"BREAKER_MAINTENANCE_INTERVAL" default:"5s" json:"interval"`
		Concurrency        int           `envconfig:"BREAKER_MAINTENANCE_CONCURRENCY" default:"4" json:"concurrency"`
		BusinessHoursStart int           `envconfig:"BREAKER_BUSINESS_HOURS_START" default:"9" json:"business_hours_start"`
		BusinessHoursEnd   int           `envconfig:"BREAKER_BUSINESS_HOURS_END" default:"17" json:"business_hours_end"`
	}

	AdminHTTPServer struct {
		Enabled         bool          `envconfig:"ADMIN_HTTP_SERVER_ENABLED" default:"true" json:"enabled"`
		Host            string        `envconfig:"ADMIN_HTTP_SERVER_HOST" default:"127.0.0.1" json:"host"`
		Port            uint          `envconfig:"ADMIN_HTTP_SERVER_PORT" default:"8089" json:"port"`
		ReadTimeout     time.Duration `envconfig:"ADMIN_HTTP_READ_TIMEOUT" default:"15s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"ADMIN_HTTP_WRITE_TIMEOUT" default:"15s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"ADMIN_HTTP_IDLE_TIMEOUT" default:"60s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"ADMIN_HTTP_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
		IdempotencyTTL  time.Duration `envconfig:"ADMIN_HTTP_IDEMPOTENCY_TTL" default:"10m" json:"idempotency_ttl"`
	}

	Notify struct {
		QueueSize   int           `envconfig:"NOTIFY_QUEUE_SIZE" default:"256" json:"queue_size"`
		SendTimeout time.Duration `envconfig:"NOTIFY_SEND_TIMEOUT" default:"5s" json:"send_timeout"`
		LogSink     bool          `envconfig:"NOTIFY_LOG_SINK_ENABLED" default:"true" json:"log_sink_enabled"`
		WebhookURL  string        `envconfig:"NOTIFY_WEBHOOK_URL" default:"" json:"webhook_url,omitempty"`
		Guard       NotifyGuard   `json:"guard"`
		Retry       NotifyRetry   `json:"retry"`
	}

	NotifyRetry struct {
		MaxRetries uint          `envconfig:"NOTIFY_WEBHOOK_MAX_RETRIES" default:"2" json:"max_retries"`
		BaseDelay  time.Duration `envconfig:"NOTIFY_WEBHOOK_BASE_DELAY" default:"200ms" json:"base_delay"`
		MaxDelay   time.Duration `envconfig:"NOTIFY_WEBHOOK_MAX_DELAY" default:"2s" json:"max_delay"`
		Multiplier float64       `envconfig:"NOTIFY_WEBHOOK_MULTIPLIER" default:"2" json:"multiplier"`
		Jitter     float64       `envconfig:"NOTIFY_WEBHOOK_JITTER" default:"0.2" json:"jitter"`
	}

	NotifyGuard struct {
		Enabled          bool          `envconfig:"NOTIFY_GUARD_ENABLED" default:"true" json:"enabled"`
		MaxRequests      uint          `envconfig:"NOTIFY_GUARD_MAX_REQUESTS" default:"1" json:"max_requests"`
		Interval         time.Duration `envconfig:"NOTIFY_GUARD_INTERVAL" default:"0s" json:"interval"`
		Timeout          time.Duration `envconfig:"NOTIFY_GUARD_TIMEOUT" default:"30s" json:"timeout"`
		FailureThreshold uint          `envconfig:"NOTIFY_GUARD_FAILURE_THRESHOLD" default:"3" json:"failure_threshold"`
	}

	Logging struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info" json:"level"`
		Format string `envconfig:"LOG_FORMAT" default:"json" json:"format"`
	}

	Telemetry struct {
		ServiceName  string `envconfig:"OTEL_SERVICE_NAME" default:"breakerd" json:"service_name"`
		ExporterType string `envconfig:"OTEL_EXPORTER" default:"grpc" json:"exporter_type"`

		OtelGRPCHost string `envconfig:"OTEL_HOST" default:"localhost" json:"otel_grpc_host"`
		OtelGRPCPort string `envconfig:"OTEL_PORT" default:"4317" json:"otel_grpc_port"`

		Metrics Metrics `json:"metrics"`
		Traces  Traces  `json:"traces"`
	}

	Metrics struct {
		Enabled bool `envconfig:"METRICS_ENABLED" default:"true" json:"enabled"`
	}

	Traces struct {
		Enabled      bool    `envconfig:"TRACES_ENABLED" default:"false" json:"enabled"`
		SamplerRatio float64 `envconfig:"TRACES_SAMPLER_RATIO" default:"1.0" json:"sampler_ratio"`
	}
)

func (c *ServiceConfig) GetEnvironment() int {
	switch c.App.Env.Name {
	case "production", "prod":
		return Production
	case "staging", "stg":
		return Staging
	case "sandbox", "sbx":
		return Sandbox
	default:
		return Development
	}
}

func (c *ServiceConfig) IsProduction() bool {
	return c.GetEnvironment() == Production
}

// BreakerConfig returns the default circuit configuration.
func (c *ServiceConfig) BreakerConfig() breaker.Config {
	return breaker.Config{
		FailureThreshold:         c.Breaker.FailureThreshold,
		SuccessThreshold:         c.Breaker.SuccessThreshold,
		Timeout:                  c.Breaker.Timeout,
		HalfOpenProbeLimit:       c.Breaker.HalfOpenProbeLimit,
		VolumeThreshold:          c.Breaker.VolumeThreshold,
		ErrorPercentageThreshold: c.Breaker.ErrorPercentageThreshold,
		SleepWindow:              c.Breaker.SleepWindow,
		AdaptiveScalingEnabled:   c.Breaker.AdaptiveScalingEnabled,
		ProbabilisticModeEnabled: c.Breaker.ProbabilisticModeEnabled,
		PatternLearningEnabled:   c.Breaker.PatternLearningEnabled,
	}
}

// WebhookRetry returns the backoff applied to webhook deliveries.
func (c *ServiceConfig) WebhookRetry() notify.RetryConfig {
	return notify.RetryConfig{
		MaxRetries: c.Notify.Retry.MaxRetries,
		BaseDelay:  c.Notify.Retry.BaseDelay,
		MaxDelay:   c.Notify.Retry.MaxDelay,
		Multiplier: c.Notify.Retry.Multiplier,
		Jitter:     c.Notify.Retry.Jitter,
	}
}

func (c *ServiceConfig) NotifyConfig() notify.Config {
	return notify.Config{
		QueueSize:   c.Notify.QueueSize,
		SendTimeout: c.Notify.SendTimeout,
		Guard: notify.GuardConfig{
			Enabled:          c.Notify.Guard.Enabled,
			MaxRequests:      c.Notify.Guard.MaxRequests,
			Interval:         c.Notify.Guard.Interval,
			Timeout:          c.Notify.Guard.Timeout,
			FailureThreshold: c.Notify.Guard.FailureThreshold,
		},
	}
}

// Validate checks the values envconfig cannot check on its own.
func (c *ServiceConfig) Validate() error {
	if err := c.BreakerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	start, end := c.Maintenance.BusinessHoursStart, c.Maintenance.BusinessHoursEnd
	if start < 0 || start > 23 || end < 0 || end > 24 {
		return fmt.Errorf("%w: business hours %d-%d out of range", ErrInvalidSettings, start, end)
	}

	if c.Maintenance.Interval <= 0 {
		return fmt.Errorf("%w: maintenance interval must be positive", ErrInvalidSettings)
	}

	if c.Maintenance.Concurrency <= 0 {
		return fmt.Errorf("%w: maintenance concurrency must be positive", ErrInvalidSettings)
	}

	if c.Telemetry.Traces.SamplerRatio < 0 || c.Telemetry.Traces.SamplerRatio > 1 {
		return fmt.Errorf("%w: trace sampler ratio must be in [0, 1]", ErrInvalidSettings)
	}

	return nil
}
