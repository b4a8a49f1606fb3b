package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	TracingEnabled  bool

	// Map surface configuration handed to the browser page.
	MapsAPIKey string `validate:"required"`
	MapID      string `validate:"required"`
	MapCenter  LatLng
	MapZoom    int `validate:"gte=0,lte=22"`

	// Availability gate cadence for each browser session.
	GatePollInterval time.Duration `validate:"gt=0"`

	// Weather provider configuration.
	WeatherAPIKey  string        `validate:"required"`
	WeatherAPIURL  string        `validate:"required,url"`
	WeatherTimeout time.Duration `validate:"gt=0"`

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// LatLng is the initial map center.
type LatLng struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lng float64 `validate:"gte=-180,lte=180"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	weatherTimeout, err := parsePositiveDuration("WEATHER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	pollInterval, err := parsePositiveDuration("GATE_POLL_INTERVAL", "100ms")
	if err != nil {
		return nil, err
	}

	centerLat, err := parseFloat("MAP_CENTER_LAT", "35.6895")
	if err != nil {
		return nil, err
	}
	centerLng, err := parseFloat("MAP_CENTER_LNG", "139.6917")
	if err != nil {
		return nil, err
	}

	zoom, err := strconv.Atoi(sharedcfg.EnvOrDefault("MAP_ZOOM", "7"))
	if err != nil {
		return nil, errors.New("invalid MAP_ZOOM")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		TracingEnabled:  os.Getenv("TRACING_ENABLED") == "true",

		MapsAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
		MapID:      sharedcfg.EnvOrDefault("MAP_ID", "3ec330ce2c81c825cf118a5e"),
		MapCenter:  LatLng{Lat: centerLat, Lng: centerLng},
		MapZoom:    zoom,

		GatePollInterval: pollInterval,

		WeatherAPIKey:  os.Getenv("WEATHER_API_KEY"),
		WeatherAPIURL:  sharedcfg.EnvOrDefault("WEATHER_API_URL", "https://api.weatherapi.com/v1/current.json"),
		WeatherTimeout: weatherTimeout,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if cfg.MapsAPIKey == "" {
		return nil, errors.New("GOOGLE_MAPS_API_KEY is required")
	}
	if cfg.WeatherAPIKey == "" {
		return nil, errors.New("WEATHER_API_KEY is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
