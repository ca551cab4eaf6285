package admin

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/architeacher/adaptivebreaker/internal/usecases"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
)

const defaultIdempotencyTTL = 10 * time.Minute

// RouterConfig holds dependencies for the admin router.
type RouterConfig struct {
	App            *usecases.AdminApplication
	MetricsHandler http.Handler
	Logger         logger.Logger
	Clock          clockwork.Clock
	TracerProvider otelTrace.TracerProvider
	IdempotencyTTL time.Duration
}

// NewRouter creates the router of the management endpoints. It is meant to
// be served on an internal port only.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}

	if cfg.TracerProvider == nil {
		cfg.TracerProvider = noop.NewTracerProvider()
	}

	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = http.NotFoundHandler()
	}

	handler := NewHandler(cfg.App, cfg.Clock)
	replays := newReplayStore(cfg.Clock, cfg.IdempotencyTTL)

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(AccessLogger(cfg.Logger))
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", handler.Liveness)
	router.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	router.Get("/notify/sinks", handler.ListSinks)

	router.Route("/circuits", func(r chi.Router) {
		r.Get("/", handler.ListCircuits)

		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", handler.GetCircuit)
			r.Get("/snapshot", handler.GetSnapshot)

			r.Group(func(r chi.Router) {
				r.Use(Idempotency(replays, cfg.Logger))

				r.Post("/reset", handler.ResetCircuit)
				r.Post("/force-open", handler.ForceOpenCircuit)
				r.Post("/force-close", handler.ForceCloseCircuit)
			})
		})
	})

	return otelhttp.NewHandler(router, "admin",
		otelhttp.WithTracerProvider(cfg.TracerProvider),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
