// Package selection owns the single live marker/popup pair on a map surface.
//
// A Controller serialises every state change through one goroutine (Run):
// click events and lookup completions are both delivered to it as messages,
// so the live Selection needs no locks. Lookups run in their own goroutines
// and may finish in any order; a result is applied only if its generation
// still matches the live Selection, otherwise it is discarded as stale.
package selection

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/click-weather/internal/domain"
	"github.com/couchcryptid/click-weather/internal/observability"
)

// Phase is the controller state.
type Phase int

const (
	// PhaseEmpty means no live selection.
	PhaseEmpty Phase = iota
	// PhaseSelecting means the marker is placed and the lookup is in flight.
	PhaseSelecting
	// PhaseSelected means the marker is placed and the popup shows the report.
	PhaseSelected
	// PhaseFailed means the marker is placed but the lookup failed; no popup.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseSelecting:
		return "selecting"
	case PhaseSelected:
		return "selected"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of the live selection.
type State struct {
	Phase      Phase
	Coordinate domain.Coordinate
	Marker     domain.MarkerHandle
	Popup      domain.PopupHandle
}

// ErrStopped is returned when the controller loop is no longer running.
var ErrStopped = errors.New("selection controller stopped")

const queueSize = 64

type selection struct {
	gen    uint64
	coord  domain.Coordinate
	marker domain.MarkerHandle
	popup  domain.PopupHandle
	phase  Phase
}

type message interface{ isMessage() }

type clickMsg struct{ ev domain.ClickEvent }

type resultMsg struct {
	gen    uint64
	coord  domain.Coordinate
	report domain.WeatherReport
	err    error
}

type stateMsg struct{ reply chan State }

func (clickMsg) isMessage()  {}
func (resultMsg) isMessage() {}
func (stateMsg) isMessage()  {}

// Controller drives one map surface from click events.
type Controller struct {
	surface domain.MapSurface
	lookup  domain.WeatherLookup
	logger  *slog.Logger
	metrics *observability.Metrics

	msgs    chan message
	stopped chan struct{}

	// Owned by the Run goroutine.
	live *selection
	gen  uint64
}

// NewController creates a Controller. Call Run to start processing.
func NewController(surface domain.MapSurface, lookup domain.WeatherLookup, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{
		surface: surface,
		lookup:  lookup,
		logger:  logger,
		metrics: metrics,
		msgs:    make(chan message, queueSize),
		stopped: make(chan struct{}),
	}
}

// Click queues a click event. Events are handled in the order they are queued.
func (c *Controller) Click(ctx context.Context, ev domain.ClickEvent) error {
	return c.send(ctx, clickMsg{ev: ev})
}

// State returns the live selection as seen after every previously queued event.
func (c *Controller) State(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	if err := c.send(ctx, stateMsg{reply: reply}); err != nil {
		return State{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-c.stopped:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (c *Controller) send(ctx context.Context, m message) error {
	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}
	select {
	case c.msgs <- m:
		return nil
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled. In-flight lookups are not
// cancelled by newer clicks; they share ctx and end with it.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.stopped)
	defer c.retire(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.msgs:
			switch m := m.(type) {
			case clickMsg:
				c.handleClick(ctx, m.ev)
			case resultMsg:
				c.handleResult(ctx, m)
			case stateMsg:
				m.reply <- c.snapshot()
			}
		}
	}
}

func (c *Controller) handleClick(ctx context.Context, ev domain.ClickEvent) {
	coord, ok := domain.ExtractCoordinate(ev)
	if !ok {
		c.metrics.Clicks.WithLabelValues("malformed").Inc()
		return
	}
	c.metrics.Clicks.WithLabelValues("accepted").Inc()

	c.retire(ctx)

	marker, err := c.surface.PlaceMarker(ctx, coord)
	if err != nil {
		c.logger.Warn("place marker failed", "lat", coord.Lat, "lng", coord.Lng, "error", err)
		return
	}

	c.gen++
	c.live = &selection{gen: c.gen, coord: coord, marker: marker, phase: PhaseSelecting}
	c.logger.Debug("selection started", "lat", coord.Lat, "lng", coord.Lng, "generation", c.gen)

	go c.runLookup(ctx, c.gen, coord)
}

func (c *Controller) runLookup(ctx context.Context, gen uint64, coord domain.Coordinate) {
	report, err := c.lookup.FetchWeather(ctx, coord)
	select {
	case c.msgs <- resultMsg{gen: gen, coord: coord, report: report, err: err}:
	case <-ctx.Done():
	}
}

func (c *Controller) handleResult(ctx context.Context, r resultMsg) {
	if c.live == nil || c.live.gen != r.gen {
		c.metrics.StaleResults.Inc()
		c.logger.Debug("discarding stale lookup result", "lat", r.coord.Lat, "lng", r.coord.Lng, "generation", r.gen)
		return
	}

	if r.err != nil {
		c.logger.Warn("weather lookup failed", "lat", r.coord.Lat, "lng", r.coord.Lng, "error", r.err)
		c.live.phase = PhaseFailed
		return
	}

	content, err := domain.RenderPopup(r.coord, r.report)
	if err != nil {
		c.logger.Error("render popup failed", "error", err)
		c.live.phase = PhaseFailed
		return
	}

	popup, err := c.surface.OpenPopup(ctx, r.coord, content)
	if err != nil {
		c.logger.Warn("open popup failed", "lat", r.coord.Lat, "lng", r.coord.Lng, "error", err)
		c.live.phase = PhaseFailed
		return
	}
	c.live.popup = popup
	c.live.phase = PhaseSelected
}

// retire removes the live marker and closes its popup, leaving no live selection.
func (c *Controller) retire(ctx context.Context) {
	if c.live == nil {
		return
	}
	prev := c.live
	c.live = nil

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if prev.popup != "" {
		if err := c.surface.ClosePopup(ctx, prev.popup); err != nil {
			c.logger.Warn("close popup failed", "popup", prev.popup, "error", err)
		}
	}
	if err := c.surface.RemoveMarker(ctx, prev.marker); err != nil {
		c.logger.Warn("remove marker failed", "marker", prev.marker, "error", err)
	}
}

func (c *Controller) snapshot() State {
	if c.live == nil {
		return State{Phase: PhaseEmpty}
	}
	return State{
		Phase:      c.live.phase,
		Coordinate: c.live.coord,
		Marker:     c.live.marker,
		Popup:      c.live.popup,
	}
}
