package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/architeacher/adaptivebreaker/pkg/breaker"
	"github.com/architeacher/adaptivebreaker/pkg/idempotency"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
)

// Sink delivers transition events to an external alerting or audit system.
type Sink interface {
	Name() string
	Send(ctx context.Context, event breaker.TransitionEvent) error
}

type funcSink struct {
	name string
	fn   func(context.Context, breaker.TransitionEvent) error
}

// SinkFunc adapts fn to a Sink called name.
func SinkFunc(name string, fn func(context.Context, breaker.TransitionEvent) error) Sink {
	return funcSink{name: name, fn: fn}
}

func (s funcSink) Name() string {
	return s.name
}

func (s funcSink) Send(ctx context.Context, event breaker.TransitionEvent) error {
	return s.fn(ctx, event)
}

// LogSink writes every event to the logger, as a warning when a circuit
// opens.
type LogSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) LogSink {
	return LogSink{log: log}
}

func (s LogSink) Name() string {
	return "log"
}

func (s LogSink) Send(ctx context.Context, event breaker.TransitionEvent) error {
	log := s.log.WithContext(ctx)

	entry := log.Info()
	if event.To == breaker.PhaseOpen {
		entry = log.Warn()
	}

	entry.
		Str("event_id", event.ID).
		Str(logger.FieldCircuit, event.Name).
		Stringer("from", event.From).
		Stringer("to", event.To).
		Str("reason", event.Reason).
		Time("at", event.Timestamp).
		Msg("circuit alert")

	return nil
}

// WebhookSink posts every event as JSON to a URL. The event ID travels as
// the Idempotency-Key header so the receiver can drop retried deliveries.
type WebhookSink struct {
	url    string
	client *http.Client
	retry  RetryConfig
}

// RetryConfig controls the exponential backoff between webhook attempts.
// Server errors and transport failures are retried, client errors are not.
type RetryConfig struct {
	MaxRetries uint
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64
}

type WebhookOption func(*WebhookSink)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(s *WebhookSink) {
		if client != nil {
			s.client = client
		}
	}
}

func WithRetry(cfg RetryConfig) WebhookOption {
	return func(s *WebhookSink) {
		s.retry = cfg
	}
}

func NewWebhookSink(url string, opts ...WebhookOption) *WebhookSink {
	s := &WebhookSink{
		url:    url,
		client: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *WebhookSink) Name() string {
	return "webhook"
}

func (s *WebhookSink) Send(ctx context.Context, event breaker.TransitionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	if s.retry.MaxRetries == 0 {
		return s.post(ctx, event.ID, body)
	}

	expBackoff := backoff.NewExponentialBackOff()
	if s.retry.BaseDelay > 0 {
		expBackoff.InitialInterval = s.retry.BaseDelay
	}

	if s.retry.MaxDelay > 0 {
		expBackoff.MaxInterval = s.retry.MaxDelay
	}

	if s.retry.Multiplier > 0 {
		expBackoff.Multiplier = s.retry.Multiplier
	}

	expBackoff.RandomizationFactor = s.retry.Jitter

	operation := func() (struct{}, error) {
		err := s.post(ctx, event.ID, body)

		var statusErr *webhookStatusError
		if errors.As(err, &statusErr) && statusErr.status < http.StatusInternalServerError {
			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, err
	}

	_, err = backoff.Retry(
		ctx,
		operation,
		backoff.WithMaxTries(s.retry.MaxRetries+1),
		backoff.WithBackOff(expBackoff),
	)

	return err
}

func (s *WebhookSink) post(ctx context.Context, key string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("building webhook request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotency.HeaderName, key)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &webhookStatusError{status: resp.StatusCode}
	}

	return nil
}

type webhookStatusError struct {
	status int
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("webhook responded with status %d", e.status)
}
