// Package router configures HTTP routes for the catalog's HTTP API.
//
// Routes configured:
//   - GET /datasets - List the datasets with a manifest
//   - GET /datasets/latest?dataset=<name> - Retrieve the latest manifest
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Manifests older than the stale threshold carry an X-Silverline-Stale
// header so consumers can tell when the refiner stopped publishing.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/silverline/pkg/httpx"
	"github.com/HatiCode/silverline/pkg/storage"
)

var datasetNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// Options tunes the catalog handlers.
type Options struct {
	// StaleAfter marks manifests older than this as stale; zero disables it.
	StaleAfter time.Duration

	// RequestTimeout bounds each store lookup.
	RequestTimeout time.Duration

	// Health is called by /healthz; nil always reports healthy.
	Health func(context.Context) error

	// Registry serves /metrics and holds the lookup counter. Nil creates a
	// private registry.
	Registry *prometheus.Registry
}

type handlers struct {
	store   storage.Store
	opts    Options
	logger  *slog.Logger
	lookups *prometheus.CounterVec
	now     func() time.Time
}

// SetupRoutes configures the catalog endpoints wrapped in the recovery and
// logging middlewares.
func SetupRoutes(store storage.Store, opts Options, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Second
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	h := &handlers{
		store:  store,
		opts:   opts,
		logger: logger,
		lookups: promauto.With(opts.Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "silverline_catalog_lookups_total",
			Help: "Manifest lookups by result",
		}, []string{"result"}),
		now: time.Now,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", httpx.HealthHandler(opts.Health))
	mux.HandleFunc("GET /datasets", h.listDatasets)
	mux.HandleFunc("GET /datasets/latest", h.latestManifest)
	mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))

	return httpx.Chain(mux, httpx.RecoveryMiddleware(logger), httpx.LoggingMiddleware(logger))
}

// listDatasets handles GET /datasets.
func (h *handlers) listDatasets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	names, err := h.store.Datasets(ctx)
	if err != nil {
		h.logger.Error("failed to list datasets", "error", err)
		httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if names == nil {
		names = []string{}
	}

	if err := httpx.WriteJSON(w, http.StatusOK, map[string]any{"datasets": names}); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

// latestManifest handles GET /datasets/latest?dataset=<name>.
func (h *handlers) latestManifest(w http.ResponseWriter, r *http.Request) {
	dataset := r.URL.Query().Get("dataset")
	if dataset == "" {
		h.lookups.WithLabelValues("bad_request").Inc()
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "dataset parameter required")
		return
	}
	if !datasetNameRegex.MatchString(dataset) {
		h.lookups.WithLabelValues("bad_request").Inc()
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid dataset name format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	m, found, err := h.store.GetLatest(ctx, dataset)
	if err != nil {
		h.lookups.WithLabelValues("error").Inc()
		h.logger.Error("failed to get manifest", "dataset", dataset, "error", err)
		httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		h.lookups.WithLabelValues("not_found").Inc()
		httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("manifest not found for dataset %q", dataset))
		return
	}

	h.lookups.WithLabelValues("found").Inc()
	if h.opts.StaleAfter > 0 && h.now().Sub(m.GeneratedAt) > h.opts.StaleAfter {
		w.Header().Set("X-Silverline-Stale", "true")
	}

	if err := httpx.WriteJSON(w, http.StatusOK, m); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
