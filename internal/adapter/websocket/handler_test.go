package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/click-weather/internal/domain"
	"github.com/couchcryptid/click-weather/internal/observability"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOpts = domain.MapOptions{
	Center: domain.Coordinate{Lat: 35.6895, Lng: 139.6917},
	Zoom:   7,
	MapID:  "test-map",
}

type stubLookup struct {
	mu    sync.Mutex
	calls []domain.Coordinate
	err   error
}

func (s *stubLookup) FetchWeather(_ context.Context, at domain.Coordinate) (domain.WeatherReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, at)
	if s.err != nil {
		return domain.WeatherReport{}, s.err
	}
	return domain.WeatherReport{Condition: "Clear", TemperatureC: 18.5}, nil
}

func newTestServer(t *testing.T, lookup domain.WeatherLookup) (*httptest.Server, *Handler, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	h := NewHandler(lookup, testOpts, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return srv, h, m
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func receive(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func receiveType(t *testing.T, conn *websocket.Conn, want string) Message {
	t.Helper()
	msg := receive(t, conn)
	require.Equal(t, want, msg.Type, "payload: %s", msg.Payload)
	return msg
}

func clickAt(lat, lng float64) string {
	b, _ := json.Marshal(map[string]any{
		"type":    TypeClick,
		"payload": map[string]any{"latLng": map[string]float64{"lat": lat, "lng": lng}},
	})
	return string(b)
}

func initMap(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, `{"type":"ready"}`)
	msg := receiveType(t, conn, TypeMapInit)

	var opts domain.MapOptions
	require.NoError(t, json.Unmarshal(msg.Payload, &opts))
	assert.Equal(t, testOpts, opts)
}

func TestHandler_ClickShowsWeather(t *testing.T) {
	lookup := &stubLookup{}
	srv, _, _ := newTestServer(t, lookup)
	conn := dial(t, srv)
	initMap(t, conn)

	send(t, conn, clickAt(35.6895, 139.6917))

	var marker markerPayload
	require.NoError(t, json.Unmarshal(receiveType(t, conn, TypeMarkerAdd).Payload, &marker))
	assert.NotEmpty(t, marker.ID)
	assert.Equal(t, 35.6895, marker.Lat)
	assert.Equal(t, 139.6917, marker.Lng)

	var popup popupPayload
	require.NoError(t, json.Unmarshal(receiveType(t, conn, TypePopupOpen).Payload, &popup))
	assert.NotEqual(t, marker.ID, popup.ID)
	assert.Equal(t, 35.6895, popup.Lat)
	assert.Contains(t, popup.Content, "Location: 35.69, 139.69")
	assert.Contains(t, popup.Content, "Condition: Clear")
	assert.Contains(t, popup.Content, "Temperature: 18.5°C")
}

func TestHandler_SecondClickReplacesSelection(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubLookup{})
	conn := dial(t, srv)
	initMap(t, conn)

	send(t, conn, clickAt(35.6895, 139.6917))
	var first markerPayload
	require.NoError(t, json.Unmarshal(receiveType(t, conn, TypeMarkerAdd).Payload, &first))
	var firstPopup popupPayload
	require.NoError(t, json.Unmarshal(receiveType(t, conn, TypePopupOpen).Payload, &firstPopup))

	send(t, conn, clickAt(34.6937, 135.5023))

	var closed handlePayload
	require.NoError(t, json.Unmarshal(receiveType(t, conn, TypePopupClose).Payload, &closed))
	assert.Equal(t, firstPopup.ID, closed.ID)

	var removed handlePayload
	require.NoError(t, json.Unmarshal(receiveType(t, conn, TypeMarkerRemove).Payload, &removed))
	assert.Equal(t, first.ID, removed.ID)

	var second markerPayload
	require.NoError(t, json.Unmarshal(receiveType(t, conn, TypeMarkerAdd).Payload, &second))
	assert.Equal(t, 34.6937, second.Lat)
	receiveType(t, conn, TypePopupOpen)
}

func TestHandler_ClickBeforeInitDropped(t *testing.T) {
	lookup := &stubLookup{}
	srv, _, _ := newTestServer(t, lookup)
	conn := dial(t, srv)

	send(t, conn, clickAt(1, 1))
	initMap(t, conn)
	send(t, conn, clickAt(2, 2))

	var marker markerPayload
	require.NoError(t, json.Unmarshal(receiveType(t, conn, TypeMarkerAdd).Payload, &marker))
	assert.Equal(t, 2.0, marker.Lat)
}

func TestHandler_ClickWithoutPositionIgnored(t *testing.T) {
	srv, _, m := newTestServer(t, &stubLookup{})
	conn := dial(t, srv)
	initMap(t, conn)

	send(t, conn, `{"type":"click","payload":{"latLng":null}}`)
	send(t, conn, `{"type":"click"}`)
	send(t, conn, `{"type":"click","payload":{"latLng":{"lat":"north"}}}`)
	send(t, conn, clickAt(3, 3))

	var marker markerPayload
	require.NoError(t, json.Unmarshal(receiveType(t, conn, TypeMarkerAdd).Payload, &marker))
	assert.Equal(t, 3.0, marker.Lat)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Clicks.WithLabelValues("malformed")))
}

func TestHandler_LookupFailureKeepsMarker(t *testing.T) {
	lookup := &stubLookup{err: domain.NewLookupError(domain.Coordinate{}, errors.New("provider down"))}
	srv, _, m := newTestServer(t, lookup)
	conn := dial(t, srv)
	initMap(t, conn)

	send(t, conn, clickAt(35.6895, 139.6917))
	receiveType(t, conn, TypeMarkerAdd)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Clicks.WithLabelValues("accepted")) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "no popup after a failed lookup")
}

func TestHandler_NoMapUntilReady(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubLookup{})
	conn := dial(t, srv)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "map must not be initialized before the page reports ready")
}

func TestHandler_SessionsAreIndependent(t *testing.T) {
	srv, h, m := newTestServer(t, &stubLookup{})
	a := dial(t, srv)
	b := dial(t, srv)

	assert.Eventually(t, func() bool {
		return h.Sessions() == 2 && testutil.ToFloat64(m.LiveSessions) == 2
	}, time.Second, 10*time.Millisecond)

	initMap(t, a)
	initMap(t, b)

	send(t, a, clickAt(1, 1))
	receiveType(t, a, TypeMarkerAdd)
	receiveType(t, a, TypePopupOpen)

	send(t, b, clickAt(2, 2))
	var marker markerPayload
	require.NoError(t, json.Unmarshal(receiveType(t, b, TypeMarkerAdd).Payload, &marker))
	assert.Equal(t, 2.0, marker.Lat, "session b has no selection to retire")
}

func TestHandler_DisconnectEndsSession(t *testing.T) {
	srv, h, m := newTestServer(t, &stubLookup{})
	conn := dial(t, srv)
	initMap(t, conn)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return h.Sessions() == 0 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(m.LiveSessions) == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.StaleResults))
}

func TestHandler_UnknownAndUndecodableFramesIgnored(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubLookup{})
	conn := dial(t, srv)

	send(t, conn, `not json`)
	send(t, conn, `{"type":"zoom"}`)
	initMap(t, conn)
}

func TestDecodeClick(t *testing.T) {
	ev := decodeClick(json.RawMessage(`{"latLng":{"lat":10,"lng":20}}`))
	c, ok := domain.ExtractCoordinate(ev)
	require.True(t, ok)
	assert.Equal(t, domain.Coordinate{Lat: 10, Lng: 20}, c)

	_, ok = domain.ExtractCoordinate(decodeClick(nil))
	assert.False(t, ok)

	_, ok = domain.ExtractCoordinate(decodeClick(json.RawMessage(`[]`)))
	assert.False(t, ok)
}
