// Package websocket drives a browser-hosted map over a WebSocket connection.
// The browser page renders the map and reports clicks; the server owns the
// availability gate and the selection state for each connection.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/click-weather/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Message types exchanged with the browser page.
const (
	TypeReady = "ready"
	TypeClick = "click"

	TypeMapInit      = "map.init"
	TypeMarkerAdd    = "marker.add"
	TypeMarkerRemove = "marker.remove"
	TypePopupOpen    = "popup.open"
	TypePopupClose   = "popup.close"
)

const writeWait = 5 * time.Second

// ErrSessionClosed is returned by writes after the connection has gone away.
var ErrSessionClosed = errors.New("map session closed")

// Message is the envelope for every frame in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type markerPayload struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type popupPayload struct {
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Content string  `json:"content"`
}

type handlePayload struct {
	ID string `json:"id"`
}

// Session is the server-side view of one browser map. It implements
// domain.MapSurface by sending rendering commands to the page.
type Session struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	closed  atomic.Bool

	// capable is set once the page reports the maps library loaded.
	capable atomic.Bool
	// initialized is set once the map has been constructed.
	initialized atomic.Bool
}

func newSession(conn *websocket.Conn, logger *slog.Logger) *Session {
	return &Session{conn: conn, logger: logger}
}

// CapabilityReady reports whether the page has loaded the maps library.
// It is the probe for the session's availability gate.
func (s *Session) CapabilityReady() bool {
	return s.capable.Load()
}

// Initialized reports whether the map has been constructed.
func (s *Session) Initialized() bool {
	return s.initialized.Load()
}

// InitMap constructs the map in the page.
func (s *Session) InitMap(ctx context.Context, opts domain.MapOptions) error {
	if err := s.write(ctx, TypeMapInit, opts); err != nil {
		return err
	}
	s.initialized.Store(true)
	return nil
}

func (s *Session) PlaceMarker(ctx context.Context, at domain.Coordinate) (domain.MarkerHandle, error) {
	id := uuid.NewString()
	if err := s.write(ctx, TypeMarkerAdd, markerPayload{ID: id, Lat: at.Lat, Lng: at.Lng}); err != nil {
		return "", err
	}
	return domain.MarkerHandle(id), nil
}

func (s *Session) RemoveMarker(ctx context.Context, m domain.MarkerHandle) error {
	return s.write(ctx, TypeMarkerRemove, handlePayload{ID: string(m)})
}

func (s *Session) OpenPopup(ctx context.Context, at domain.Coordinate, content domain.PopupContent) (domain.PopupHandle, error) {
	id := uuid.NewString()
	p := popupPayload{ID: id, Lat: at.Lat, Lng: at.Lng, Content: string(content)}
	if err := s.write(ctx, TypePopupOpen, p); err != nil {
		return "", err
	}
	return domain.PopupHandle(id), nil
}

func (s *Session) ClosePopup(ctx context.Context, p domain.PopupHandle) error {
	return s.write(ctx, TypePopupClose, handlePayload{ID: string(p)})
}

// write sends one frame. gorilla/websocket allows a single concurrent writer.
func (s *Session) write(ctx context.Context, msgType string, payload any) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(outbound{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", msgType, err)
	}
	s.logger.Debug("sent", "type", msgType)
	return nil
}

func (s *Session) close() error {
	s.closed.Store(true)
	return s.conn.Close()
}

// decodeClick reads a click payload. A payload that does not decode is treated
// as a click without a position.
func decodeClick(payload json.RawMessage) domain.ClickEvent {
	var ev domain.ClickEvent
	if len(payload) == 0 {
		return ev
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return domain.ClickEvent{}
	}
	return ev
}
