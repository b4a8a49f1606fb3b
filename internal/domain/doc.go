// Package domain models the click-to-weather core: coordinates picked on the
// map, the weather report shown for them, and the map surface primitives the
// selection controller drives.
//
// # Coordinates
//
// Click events arrive from the browser with an optional latLng object. A
// missing object, a missing field, or a value outside the WGS-84 range
// (latitude -90..90, longitude -180..180) means the click carries no
// coordinate. [ExtractCoordinate] makes that explicit instead of letting a
// zero value through; the controller ignores such clicks.
//
// # Weather reports
//
// The provider is WeatherAPI.com current.json. Only two fields are required:
//
//	current.condition.text  →  WeatherReport.Condition, e.g. "Clear"
//	current.temp_c          →  WeatherReport.TemperatureC, e.g. 18.5
//
// Either one missing fails the lookup with [ErrMissingField]. A report may
// additionally carry a place name from reverse geocoding; geocoding failures
// never fail the lookup.
//
// # Popup content
//
// [RenderPopup] produces escaped HTML for the popup. Coordinates are printed
// with two decimals ("35.69, 139.69"); temperatures use the shortest exact
// representation ("18.5").
package domain
