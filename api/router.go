package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/api/handlers"
	"github.com/inkwell-ai/mediaflow/internal/metrics"
	"github.com/inkwell-ai/mediaflow/media"
	"github.com/inkwell-ai/mediaflow/media/budget"
	"github.com/inkwell-ai/mediaflow/media/chain"
	"github.com/inkwell-ai/mediaflow/media/health"
)

// Deps are the collaborators the router wires handlers to.
type Deps struct {
	Engine   *media.Engine
	Builder  *chain.Builder
	Registry *media.Registry
	Monitor  *health.Monitor
	Gate     *budget.Gate
	// DefaultProviders is the configured rotation applied when a request
	// names no providers.
	DefaultProviders []media.EnabledProvider
	// ChainDefaults overrides chain.DefaultConfig limits; zero values are
	// ignored.
	ChainDefaults chain.Config
	Collector     *metrics.Collector
	Version       string
	Logger        *zap.Logger
}

// NewRouter builds the HTTP routing table.
func NewRouter(deps Deps) *mux.Router {
	gen := handlers.NewGenerateHandler(deps.Engine, deps.Builder, deps.DefaultProviders, deps.ChainDefaults, deps.Logger)
	admin := handlers.NewAdminHandler(deps.Registry, deps.Monitor, deps.Gate, deps.Version, deps.Logger)

	r := mux.NewRouter()
	r.Use(metricsMiddleware(deps.Collector))

	r.HandleFunc("/healthz", admin.Healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/generate", gen.Generate).Methods(http.MethodPost)
	apiRouter.HandleFunc("/chain", gen.Chain).Methods(http.MethodPost)
	// Task refs can contain slashes (operation names, kind-prefixed ids).
	apiRouter.HandleFunc("/tasks/{provider}/{ref:.+}", gen.TaskStatus).Methods(http.MethodGet)

	apiRouter.HandleFunc("/providers", admin.Providers).Methods(http.MethodGet)
	apiRouter.HandleFunc("/providers/health", admin.ProviderHealth).Methods(http.MethodGet)
	apiRouter.HandleFunc("/quarantine", admin.Quarantine).Methods(http.MethodGet)
	apiRouter.HandleFunc("/quarantine/{id}", admin.ReleaseQuarantine).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/budget", admin.Budget).Methods(http.MethodGet)
	apiRouter.HandleFunc("/content/{id}/approve", admin.ApproveContent).Methods(http.MethodPost)
	apiRouter.HandleFunc("/content/{id}/reject", admin.RejectContent).Methods(http.MethodPost)
	apiRouter.HandleFunc("/records", admin.Records).Methods(http.MethodGet)

	return r
}

// metricsMiddleware records request counts and latency per route. The
// route template is used instead of the raw path to keep label
// cardinality bounded.
func metricsMiddleware(collector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if collector == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					path = tpl
				}
			}
			collector.RecordHTTPRequest(r.Method, path, rw.StatusCode, time.Since(start))
		})
	}
}
