package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	JSONLoggingFormat = "json"

	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarn    = "warn"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
	LogLevelFatal   = "fatal"
	LogLevelPanic   = "panic"

	ContextKeyCircuit contextKey = "circuit"
	ContextKeyCallID  contextKey = "callID"

	FieldCircuit = "circuit"
	FieldCallID  = "call_id"
	FieldTraceID = "trace_id"
	FieldSpanID  = "span_id"
)

type Logger struct {
	zerolog.Logger
}

func New(level, format string) Logger {
	return NewWithWriter(level, format, os.Stdout)
}

func NewWithWriter(level, format string, w io.Writer) Logger {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})

	if format == JSONLoggingFormat {
		logger = zerolog.New(w)
	}

	logger = logger.Level(ParseLevel(level)).With().Timestamp().Logger()

	return Logger{
		Logger: logger,
	}
}

// ParseLevel maps a textual level onto zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelWarn, LogLevelWarning:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelFatal:
		return zerolog.FatalLevel
	case LogLevelPanic:
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return Logger{Logger: zerolog.Nop()}
}

// ForCircuit returns a child logger tagged with the circuit name.
func (l Logger) ForCircuit(name string) zerolog.Logger {
	return l.Logger.With().Str(FieldCircuit, name).Logger()
}

// WithCircuit stores the circuit name on ctx for later log enrichment.
func WithCircuit(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ContextKeyCircuit, name)
}

// WithCallID stores a call identifier on ctx for later log enrichment.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyCallID, id)
}

func (l Logger) WithContext(ctx context.Context) zerolog.Logger {
	logger := l.Logger

	if circuit, ok := ctx.Value(ContextKeyCircuit).(string); ok && circuit != "" {
		logger = logger.With().Str(FieldCircuit, circuit).Logger()
	}

	if callID, ok := ctx.Value(ContextKeyCallID).(string); ok && callID != "" {
		logger = logger.With().Str(FieldCallID, callID).Logger()
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		logger = logger.With().
			Str(FieldTraceID, span.SpanContext().TraceID().String()).
			Str(FieldSpanID, span.SpanContext().SpanID().String()).
			Logger()
	}

	return logger
}
