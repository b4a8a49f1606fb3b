package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Coordinate is a WGS-84 latitude/longitude pair picked on the map.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String formats the coordinate with two decimals, e.g. "35.69, 139.69".
func (c Coordinate) String() string {
	return fmt.Sprintf("%.2f, %.2f", c.Lat, c.Lng)
}

// LatLng is the optional position object attached to a click event.
type LatLng struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

// ClickEvent is a raw click emitted by the map surface.
type ClickEvent struct {
	LatLng *LatLng `json:"latLng"`
}

// ExtractCoordinate returns the clicked coordinate and whether one was present.
func ExtractCoordinate(ev ClickEvent) (Coordinate, bool) {
	if ev.LatLng == nil {
		return Coordinate{}, false
	}
	if err := validate.Struct(ev.LatLng); err != nil {
		return Coordinate{}, false
	}
	return Coordinate{Lat: *ev.LatLng.Lat, Lng: *ev.LatLng.Lng}, true
}
