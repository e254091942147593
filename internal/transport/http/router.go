package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grunnlag/pkg/platform/httputil"
	"grunnlag/pkg/platform/middleware/requesttime"
)

const readinessTimeout = 2 * time.Second

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Registrar mounts routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// Config wires the router.
type Config struct {
	Gatherer prometheus.Gatherer
	// Checks are run by /readyz, keyed by dependency name.
	Checks   map[string]Check
	Handlers []Registrar
	Logger   *slog.Logger
}

// NewRouter builds the HTTP surface: liveness, readiness, metrics and any
// domain handlers.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requesttime.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(cfg.Checks, logger))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	for _, h := range cfg.Handlers {
		h.Register(r)
	}
	return r
}

func readiness(checks map[string]Check, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		failures := make(map[string]string)
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failures[name] = err.Error()
				logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
			}
		}
		if len(failures) > 0 {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":   "unavailable",
				"failures": failures,
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
