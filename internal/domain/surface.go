package domain

import "context"

// MarkerHandle identifies a marker placed on the map surface.
type MarkerHandle string

// PopupHandle identifies an open popup on the map surface.
type PopupHandle string

// PopupContent is HTML that is already safe to render.
type PopupContent string

// MapOptions configures map construction.
type MapOptions struct {
	Center Coordinate `json:"center"`
	Zoom   int        `json:"zoom"`
	MapID  string     `json:"mapId"`
}

// MapSurface is the rendering side of the map. The selection controller is
// its only writer; it never destroys the surface itself.
type MapSurface interface {
	PlaceMarker(ctx context.Context, at Coordinate) (MarkerHandle, error)
	RemoveMarker(ctx context.Context, m MarkerHandle) error
	OpenPopup(ctx context.Context, at Coordinate, content PopupContent) (PopupHandle, error)
	ClosePopup(ctx context.Context, p PopupHandle) error
}
