package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tckt/internal/platform/health"
	"tckt/internal/registry/handler"
	"tckt/pkg/platform/middleware/request"
	"tckt/pkg/platform/middleware/requesttime"
	"tckt/pkg/platform/validation"
)

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Registry       *handler.Handler
	Health         *health.Handler
	Gatherer       prometheus.Gatherer
	Metrics        *request.Metrics
	Logger         *slog.Logger
	RequestTimeout time.Duration
	// Clock stamps request time; nil uses time.Now.
	Clock func() time.Time
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.LatencyMiddleware(cfg.Metrics))

	cfg.Health.Register(r)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.RequestTimeout))
		r.Use(requesttime.Middleware(cfg.Clock))
		r.Use(request.BodyLimit(validation.MaxBodySize))
		r.Use(request.ContentTypeJSON)
		cfg.Registry.Register(r)
	})

	return r
}
