package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/click-weather/internal/adapter/http"
	"github.com/couchcryptid/click-weather/internal/adapter/mapbox"
	"github.com/couchcryptid/click-weather/internal/adapter/weatherapi"
	wsadapter "github.com/couchcryptid/click-weather/internal/adapter/websocket"
	"github.com/couchcryptid/click-weather/internal/config"
	"github.com/couchcryptid/click-weather/internal/domain"
	"github.com/couchcryptid/click-weather/internal/lookup"
	"github.com/couchcryptid/click-weather/internal/observability"
	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracer, err := observability.InitTracer(ctx)
		if err != nil {
			logger.Error("failed to init tracer", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error("tracer shutdown error", "error", err)
			}
		}()
	}

	weather := weatherapi.NewClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherTimeout, logger)

	// Place-name enrichment is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		cached, err := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		if err != nil {
			logger.Error("failed to create geocoder", "error", err)
			os.Exit(1)
		}
		geocoder = cached
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	svc := lookup.NewService(weather, geocoder, logger, metrics)

	opts := domain.MapOptions{
		Center: domain.Coordinate{Lat: cfg.MapCenter.Lat, Lng: cfg.MapCenter.Lng},
		Zoom:   cfg.MapZoom,
		MapID:  cfg.MapID,
	}
	sessions := wsadapter.NewHandler(svc, opts, cfg.GatePollInterval, logger, metrics)

	page, err := httpadapter.NewPage(httpadapter.PageData{
		MapsAPIKey: cfg.MapsAPIKey,
		WSPath:     httpadapter.WSPath,
	})
	if err != nil {
		logger.Error("failed to render map page", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, weather, page, sessions, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	sessions.Close()

	logger.Info("shutdown complete")
}
