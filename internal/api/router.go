package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crismap/server/internal/dataset"
	"github.com/crismap/server/internal/locations"
	"github.com/crismap/server/internal/performance"
	"github.com/crismap/server/internal/render"
	"github.com/crismap/server/internal/zones"
)

// RouterConfig holds everything the HTTP surface serves
type RouterConfig struct {
	Zones     *zones.Store
	Locations *locations.Registry
	Dataset   *dataset.Service
	Sync      *render.Sync
	Hub       *SceneHub
	Profiler  *performance.Profiler
	// Gatherer backs /metrics; nil serves the default registry
	Gatherer prometheus.Gatherer

	AllowedOrigins  []string
	Production      bool
	RateLimit       int64
	RateLimitWindow time.Duration
	Logger          *zap.Logger
}

// NewRouter wires every route. API routes are rate limited per client IP; the
// WebSocket, health and metrics endpoints are not.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit, window := cfg.RateLimit, cfg.RateLimitWindow
	if limit <= 0 {
		limit = 300
	}
	if window <= 0 {
		window = time.Minute
	}
	rateLimit := RateLimitMiddleware(limit, window, logger)

	mux := http.NewServeMux()
	SetupZoneRoutes(mux, NewZoneHandlers(cfg.Zones, logger), rateLimit)
	SetupLocationRoutes(mux, NewLocationHandlers(cfg.Locations, logger), rateLimit)
	SetupDatasetRoutes(mux, NewDatasetHandlers(cfg.Dataset, logger), rateLimit)
	SetupRenderRoutes(mux, NewRenderHandlers(cfg.Sync, cfg.Hub, logger), rateLimit)

	mux.HandleFunc("/ws", cfg.Hub.HandleWebSocket)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"service":    "crismap-server",
			"zones":      len(cfg.Zones.Zones()),
			"rendered":   len(cfg.Sync.Rendered()),
			"ws_clients": cfg.Hub.ClientCount(),
		})
	})

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/debug/performance", func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Profiler.IsEnabled() {
			sendError(w, http.StatusNotFound, "ProfilingDisabled", "Profiling is disabled")
			return
		}
		report, err := cfg.Profiler.JSONReport()
		if err != nil {
			logger.Error("Failed to build performance report", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to build performance report")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(report)
	})

	return CORSMiddleware(cfg.AllowedOrigins)(SecurityHeadersMiddleware(cfg.Production)(mux))
}
