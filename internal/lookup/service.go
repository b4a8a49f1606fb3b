// Package lookup composes the weather provider with optional place-name
// enrichment into the domain.WeatherLookup the selection controller uses.
package lookup

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/click-weather/internal/domain"
	"github.com/couchcryptid/click-weather/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/couchcryptid/click-weather/internal/lookup"

// Service implements domain.WeatherLookup. Geocoder may be nil.
type Service struct {
	weather  domain.WeatherLookup
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

// NewService creates a lookup service. Pass a nil geocoder to disable enrichment.
func NewService(weather domain.WeatherLookup, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		weather:  weather,
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
	}
}

// FetchWeather fetches current conditions at a coordinate and, when a
// geocoder is configured, attaches the place name.
func (s *Service) FetchWeather(ctx context.Context, at domain.Coordinate) (domain.WeatherReport, error) {
	ctx, span := s.tracer.Start(ctx, "weather.lookup", trace.WithAttributes(
		attribute.Float64("lat", at.Lat),
		attribute.Float64("lng", at.Lng),
	))
	defer span.End()

	start := time.Now()
	report, err := s.weather.FetchWeather(ctx, at)
	if err != nil {
		s.metrics.Lookups.WithLabelValues("error").Inc()
		s.metrics.LookupDuration.Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.WeatherReport{}, err
	}

	report = domain.EnrichWithPlaceName(ctx, report, at, s.geocoder, s.logger)

	s.metrics.Lookups.WithLabelValues("success").Inc()
	s.metrics.LookupDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("condition", report.Condition))

	s.logger.Debug("weather lookup complete",
		"lat", at.Lat,
		"lng", at.Lng,
		"condition", report.Condition,
		"temp_c", report.TemperatureC,
		"place", report.PlaceName,
	)
	return report, nil
}
