package domain

import (
	"context"
	"log/slog"
)

// EnrichWithPlaceName attaches a place name for c to the report. If geocoder
// is nil or geocoding fails, the report is returned unchanged (graceful
// degradation).
func EnrichWithPlaceName(ctx context.Context, report WeatherReport, c Coordinate, geocoder Geocoder, logger *slog.Logger) WeatherReport {
	if geocoder == nil {
		return report
	}

	result, err := geocoder.ReverseGeocode(ctx, c.Lat, c.Lng)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", c.Lat,
			"lng", c.Lng,
			"error", err,
		)
		return report
	}

	switch {
	case result.FormattedAddress != "":
		report.PlaceName = result.FormattedAddress
	case result.PlaceName != "":
		report.PlaceName = result.PlaceName
	}
	return report
}
