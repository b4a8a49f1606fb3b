package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMapsKey     = "maps-test-key"
	testWeatherKey  = "weather-test-key"
	testMapboxToken = "pk.test-token"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_MAPS_API_KEY", testMapsKey)
	t.Setenv("WEATHER_API_KEY", testWeatherKey)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.TracingEnabled)
	assert.Equal(t, testMapsKey, cfg.MapsAPIKey)
	assert.Equal(t, "3ec330ce2c81c825cf118a5e", cfg.MapID)
	assert.Equal(t, LatLng{Lat: 35.6895, Lng: 139.6917}, cfg.MapCenter)
	assert.Equal(t, 7, cfg.MapZoom)
	assert.Equal(t, 100*time.Millisecond, cfg.GatePollInterval)
	assert.Equal(t, testWeatherKey, cfg.WeatherAPIKey)
	assert.Equal(t, "https://api.weatherapi.com/v1/current.json", cfg.WeatherAPIURL)
	assert.Equal(t, 5*time.Second, cfg.WeatherTimeout)
	assert.False(t, cfg.MapboxEnabled)
	assert.Empty(t, cfg.MapboxToken)
	assert.Equal(t, 5*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 1000, cfg.MapboxCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("MAP_ID", "custom-style")
	t.Setenv("MAP_CENTER_LAT", "51.5072")
	t.Setenv("MAP_CENTER_LNG", "-0.1276")
	t.Setenv("MAP_ZOOM", "11")
	t.Setenv("GATE_POLL_INTERVAL", "250ms")
	t.Setenv("WEATHER_API_URL", "http://localhost:9999/v1/current.json")
	t.Setenv("WEATHER_TIMEOUT", "2s")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_TIMEOUT", "10s")
	t.Setenv("MAPBOX_CACHE_SIZE", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, "custom-style", cfg.MapID)
	assert.Equal(t, LatLng{Lat: 51.5072, Lng: -0.1276}, cfg.MapCenter)
	assert.Equal(t, 11, cfg.MapZoom)
	assert.Equal(t, 250*time.Millisecond, cfg.GatePollInterval)
	assert.Equal(t, "http://localhost:9999/v1/current.json", cfg.WeatherAPIURL)
	assert.Equal(t, 2*time.Second, cfg.WeatherTimeout)
	assert.True(t, cfg.MapboxEnabled)
	assert.Equal(t, testMapboxToken, cfg.MapboxToken)
	assert.Equal(t, 10*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 500, cfg.MapboxCacheSize)
}

func TestLoad_MissingMapsKey(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", testWeatherKey)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_MAPS_API_KEY")
}

func TestLoad_MissingWeatherKey(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", testMapsKey)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEATHER_API_KEY")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidWeatherTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("WEATHER_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEATHER_TIMEOUT")
}

func TestLoad_InvalidGatePollInterval(t *testing.T) {
	setRequired(t)
	t.Setenv("GATE_POLL_INTERVAL", "0s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATE_POLL_INTERVAL")
}

func TestLoad_InvalidMapCenter(t *testing.T) {
	setRequired(t)
	t.Setenv("MAP_CENTER_LAT", "north")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAP_CENTER_LAT")
}

func TestLoad_MapCenterOutOfRange(t *testing.T) {
	setRequired(t)
	t.Setenv("MAP_CENTER_LAT", "91")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Lat")
}

func TestLoad_ZoomOutOfRange(t *testing.T) {
	setRequired(t)
	t.Setenv("MAP_ZOOM", "30")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MapZoom")
}

func TestLoad_InvalidWeatherURL(t *testing.T) {
	setRequired(t)
	t.Setenv("WEATHER_API_URL", "not a url")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WeatherAPIURL")
}

func TestLoad_MapboxEnabledWithoutToken(t *testing.T) {
	setRequired(t)
	t.Setenv("MAPBOX_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TOKEN")
}

func TestLoad_MapboxExplicitlyDisabled(t *testing.T) {
	setRequired(t)
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}
