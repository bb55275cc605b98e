package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/crismap/server/internal/api"
	"github.com/crismap/server/internal/config"
	"github.com/crismap/server/internal/dataset"
	"github.com/crismap/server/internal/locations"
	"github.com/crismap/server/internal/logging"
	"github.com/crismap/server/internal/performance"
	"github.com/crismap/server/internal/render"
	"github.com/crismap/server/internal/zones"
)

const shutdownTimeout = 30 * time.Second

// main starts the CRIS map server: zone and location APIs, the membrane scene
// WebSocket, health checks and metrics.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "crismap-server")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	profiler, err := performance.NewProfiler(cfg.Server.Profiling, registry)
	if err != nil {
		return err
	}

	kv, closeKV, err := openKV(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeKV()

	shipped, err := dataset.LoadShipped(cfg.Zones.DefaultsPath)
	if err != nil {
		logger.Warn("Starting without the default dataset", zap.String("path", cfg.Zones.DefaultsPath), zap.Error(err))
		shipped = &dataset.Shipped{}
	}

	mode, err := zones.ParseStyleMode(cfg.Zones.StyleMode)
	if err != nil {
		return err
	}
	store := zones.NewStore(zones.StoreConfig{
		KV:         kv,
		Key:        cfg.Zones.StorageKey,
		Normalizer: zones.NewNormalizer(mode),
		Defaults:   shipped.ZoneDefaults(),
		Logger:     logger,
		Profiler:   profiler,
	})

	scene := render.NewScene()
	if _, err := render.RegisterPatterns(scene, cfg.Zones.PatternURL); err != nil {
		return err
	}
	renderSync := render.NewSync(scene, cfg.Zones.MembranesVisible, logger, profiler)
	hub := api.NewSceneHub(scene, renderSync, cfg.Server.AllowedOrigins, logger)
	go hub.Run(ctx)

	api.BindScene(store, renderSync, hub)
	loaded := store.Load(ctx)

	locationRegistry := locations.NewRegistry(locations.RegistryConfig{
		KV:      kv,
		Zones:   store,
		Shipped: shipped.ForRegistry(),
		Logger:  logger,
	})
	locationRegistry.Load(ctx)

	logger.Info("Zones loaded",
		zap.Int("zones", len(loaded)),
		zap.Int("rendered", len(renderSync.Rendered())),
		zap.Int("locations", len(locationRegistry.All())),
		zap.String("style_mode", mode.String()))

	handler := api.NewRouter(api.RouterConfig{
		Zones:           store,
		Locations:       locationRegistry,
		Dataset:         dataset.NewService(store, locationRegistry, logger),
		Sync:            renderSync,
		Hub:             hub,
		Profiler:        profiler,
		Gatherer:        registry,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Production:      cfg.Server.IsProduction(),
		RateLimit:       cfg.RateLimit.Requests,
		RateLimitWindow: cfg.RateLimit.Window,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("CRIS map server starting",
			zap.String("addr", server.Addr),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("environment", cfg.Server.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
