package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"supplyledger/internal/idempotency"
	"supplyledger/internal/platform/metrics"
	"supplyledger/internal/platform/middleware"
	authmw "supplyledger/pkg/platform/middleware/auth"
)

// Registrar mounts a module's routes on the authenticated /v1 router.
type Registrar interface {
	Register(r chi.Router)
}

// Dependencies carries everything the router needs; main builds it.
type Dependencies struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Validator      authmw.JWTValidator
	Idempotency    *idempotency.Middleware
	RequestTimeout time.Duration
	Modules        []Registrar
	Events         EventReader
	Checks         []HealthCheck
}

// NewRouter wires all public endpoints. Everything under /v1 requires a
// caller token; /healthz and /metrics do not.
func NewRouter(d Dependencies) http.Handler {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger))
	if d.Metrics != nil {
		r.Use(middleware.LatencyMiddleware(d.Metrics))
	}

	r.Get("/healthz", newHealthHandler(d.Checks, d.Logger).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(middleware.Timeout(timeout))
		v1.Use(middleware.RequestTime)
		v1.Use(middleware.ContentTypeJSON)
		v1.Use(authmw.RequireAuth(d.Validator, d.Logger))
		if d.Idempotency != nil {
			v1.Use(d.Idempotency.Handler)
		}
		for _, m := range d.Modules {
			m.Register(v1)
		}
		if d.Events != nil {
			newEventsHandler(d.Events, d.Logger).Register(v1)
		}
	})
	return r
}
