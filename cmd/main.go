package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/aerodrome/internal/backend"
	"github.com/UnknownOlympus/aerodrome/internal/cities"
	"github.com/UnknownOlympus/aerodrome/internal/config"
	"github.com/UnknownOlympus/aerodrome/internal/coordinator"
	"github.com/UnknownOlympus/aerodrome/internal/detail"
	"github.com/UnknownOlympus/aerodrome/internal/directory"
	"github.com/UnknownOlympus/aerodrome/internal/geolocation"
	"github.com/UnknownOlympus/aerodrome/internal/httpapi"
	"github.com/UnknownOlympus/aerodrome/internal/metrics"
	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/UnknownOlympus/aerodrome/internal/proximity"
	"github.com/UnknownOlympus/aerodrome/internal/session"
	"github.com/UnknownOlympus/aerodrome/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Open the store that keeps the auth token and the last selected city.
	store, err := storage.New(ctx, storage.Config{
		Type:     storage.Type(cfg.Storage.Type),
		Path:     cfg.Storage.Path,
		RedisURL: cfg.Storage.RedisURL,
		Postgres: storage.PostgresConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Name:     cfg.Database.Name,
		},
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer store.Close()

	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.RateLimit, appMetrics, logger)

	// Create the locator using factory pattern based on configuration.
	var static *models.Coordinates
	if cfg.Locator.Latitude != nil && cfg.Locator.Longitude != nil {
		static = &models.Coordinates{Latitude: *cfg.Locator.Latitude, Longitude: *cfg.Locator.Longitude}
	}
	locator, err := geolocation.NewLocator(geolocation.LocatorConfig{
		Type:   geolocation.LocatorType(cfg.Locator.Type),
		APIKey: cfg.Locator.APIKey,
		Static: static,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to create locator: %v", err)
	}
	logger.InfoContext(ctx, "Locator initialized", "type", cfg.Locator.Type)

	resolver, err := geolocation.NewResolver(locator, geolocation.Fallback{
		City:        cfg.Fallback.City,
		Coordinates: models.Coordinates{Latitude: cfg.Fallback.Latitude, Longitude: cfg.Fallback.Longitude},
	}, cfg.GeolocationTimeout, appMetrics, logger)
	if err != nil {
		log.Fatalf("Invalid fallback origin: %v", err)
	}

	catalog, err := cities.LoadCatalog(cfg.CitiesFile)
	if err != nil {
		log.Fatalf("Failed to load city catalog: %v", err)
	}

	coord := coordinator.New(coordinator.Deps{
		Resolver:  resolver,
		Cities:    cities.NewIndex(catalog, client, logger),
		Pager:     directory.NewPager(client, cfg.PageSize, appMetrics, logger),
		Proximity: proximity.NewEngine(client, cfg.NearestLimit, appMetrics, logger),
		Detail:    detail.NewEnricher(client, cfg.NearestLimit, appMetrics, logger),
		Session:   session.NewStore(client, store, cfg.NoticeWindow, appMetrics, logger),
		Geocoder:  client,
		Reviews:   client,
		Slot:      store,
		Metrics:   appMetrics,
		Logger:    logger,
	})

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	go func() {
		if err := coord.Start(ctx); err != nil {
			logger.InfoContext(ctx, "Startup interrupted", "error", err)
		}
	}()

	router := httpapi.NewRouter(coord, cfg.AllowedOrigins, logger)

	// Serve health checks, metrics and the control API until the context is canceled.
	startMonitoringServer(ctx, logger, reg, store, router, cfg.Port)

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
}

// startMonitoringServer starts an HTTP server that provides health check and metrics endpoints
// next to the control API. It blocks until ctx is canceled and then shuts the server down.
//
// Parameters:
// - ctx: A context.Context for managing cancellation and timeouts.
// - log: A logger for logging server events and errors.
// - reg: A registry with Prometheus collectors.
// - store: The state store, pinged by the health check.
// - api: The control API handler mounted under /api/.
// - port: The port number on which the server will listen.
func startMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	store storage.Store,
	api http.Handler,
	port int,
) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, req *http.Request) {
		log.DebugContext(req.Context(), "Performing health checks...")
		status, body := http.StatusOK, "OK"
		if err := store.Ping(req.Context()); err != nil {
			status, body = http.StatusServiceUnavailable, "store ping failed"
		}
		writer.WriteHeader(status)
		_, err := writer.Write([]byte(body))
		if err != nil {
			log.ErrorContext(req.Context(), "failed to write reply", "error", err)
		}

		log.DebugContext(req.Context(), "Health checks completed", "status", status)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/api/", api)

	log.InfoContext(ctx, "Starting monitoring server", "port", port)
	readTimeout := 5
	writeTimeout := 30
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutdown signal received. Stopping application...")
		shutdownTimeout := 5
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Monitoring server shutdown failed", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(ctx, "Monitoring server failed", "error", err)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				ReplaceAttr: dropTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelError,
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}

func dropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
