package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/click-weather/internal/domain"
	"github.com/couchcryptid/click-weather/internal/gate"
	"github.com/couchcryptid/click-weather/internal/observability"
	"github.com/couchcryptid/click-weather/internal/selection"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const maxMessageSize = 4096

// Handler upgrades browser connections and runs one map session per connection.
type Handler struct {
	lookup       domain.WeatherLookup
	opts         domain.MapOptions
	pollInterval time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewHandler creates a Handler. Every session gets its own availability gate
// polling at pollInterval and its own selection controller backed by lookup.
func NewHandler(lookup domain.WeatherLookup, opts domain.MapOptions, pollInterval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{
		lookup:       lookup,
		opts:         opts,
		pollInterval: pollInterval,
		clock:        clockwork.NewRealClock(),
		logger:       logger,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: make(map[*Session]struct{}),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	logger := h.logger.With("session", uuid.NewString())
	sess := newSession(conn, logger)
	h.track(sess)
	defer h.untrack(sess)

	h.metrics.LiveSessions.Inc()
	defer h.metrics.LiveSessions.Dec()
	logger.Info("map session opened", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	ctrl := selection.NewController(sess, h.lookup, logger, h.metrics)

	g := gate.New(sess.CapabilityReady, gate.WithClock(h.clock), gate.WithInterval(h.pollInterval))
	g.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.activate(ctx, sess, g, ctrl, logger)
	}()

	h.readLoop(ctx, sess, ctrl, logger)

	g.Stop()
	cancel()
	wg.Wait()
	_ = sess.close()
	logger.Info("map session closed")
}

// activate waits for the gate, constructs the map and runs the controller
// until the session ends. If the session ends first the map is never built.
func (h *Handler) activate(ctx context.Context, sess *Session, g *gate.Gate, ctrl *selection.Controller, logger *slog.Logger) {
	start := h.clock.Now()
	select {
	case <-g.Done():
	case <-ctx.Done():
		logger.Debug("session ended before maps library loaded")
		return
	}
	h.metrics.GateWaitDuration.Observe(h.clock.Since(start).Seconds())

	if err := sess.InitMap(ctx, h.opts); err != nil {
		logger.Error("map init failed", "error", err)
		return
	}
	logger.Info("map initialized",
		"center", h.opts.Center.String(),
		"zoom", h.opts.Zoom,
	)
	ctrl.Run(ctx)
}

func (h *Handler) readLoop(ctx context.Context, sess *Session, ctrl *selection.Controller, logger *slog.Logger) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("read failed", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("discarding undecodable frame", "error", err)
			continue
		}

		switch msg.Type {
		case TypeReady:
			sess.capable.Store(true)
		case TypeClick:
			if !sess.Initialized() {
				logger.Debug("click before map init dropped")
				continue
			}
			if err := ctrl.Click(ctx, decodeClick(msg.Payload)); err != nil {
				logger.Warn("click not delivered", "error", err)
				return
			}
		default:
			logger.Debug("ignoring unknown message type", "type", msg.Type)
		}
	}
}

// Close disconnects every live session.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sess := range h.sessions {
		_ = sess.close()
	}
}

// Sessions returns the number of connected sessions.
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Handler) track(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Handler) untrack(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}
