package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse means the provider body could not be decoded.
	ErrMalformedResponse = errors.New("malformed weather response")
	// ErrMissingField means a required field was absent from the provider body.
	ErrMissingField = errors.New("missing weather field")
	// ErrProviderStatus means the provider answered with a non-200 status.
	ErrProviderStatus = errors.New("weather provider error status")
	// ErrProviderUnavailable means the provider is failing fast after repeated errors.
	ErrProviderUnavailable = errors.New("weather provider unavailable")
)

// WeatherReport is the display record for one lookup.
type WeatherReport struct {
	Condition    string  `json:"condition"`
	TemperatureC float64 `json:"temperature_c"`
	PlaceName    string  `json:"place_name,omitempty"`
}

// LookupError reports a failed weather lookup for a coordinate.
type LookupError struct {
	Coordinate Coordinate
	Cause      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("weather lookup at %s: %v", e.Coordinate, e.Cause)
}

func (e *LookupError) Unwrap() error { return e.Cause }

// NewLookupError wraps cause for coordinate c.
func NewLookupError(c Coordinate, cause error) *LookupError {
	return &LookupError{Coordinate: c, Cause: cause}
}

// WeatherLookup fetches current weather for a coordinate. Implementations make
// a single attempt per call and never cache.
type WeatherLookup interface {
	FetchWeather(ctx context.Context, at Coordinate) (WeatherReport, error)
}
