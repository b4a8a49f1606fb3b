// Package gate waits for an externally loaded capability to become available.
//
// A Gate polls a probe on a fixed cadence and resolves exactly once, the
// first time the probe reports true. It never fails and has no timeout: if
// the capability never loads, Done never closes. Stop abandons polling for a
// caller that is going away; it does not resolve the gate.
package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the polling cadence used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Probe reports whether the capability is available.
type Probe func() bool

// Gate is a single-shot readiness signal fed by polling.
type Gate struct {
	probe    Probe
	clock    clockwork.Clock
	interval time.Duration

	ready     atomic.Bool
	done      chan struct{}
	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the time source, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithInterval sets the polling cadence. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.interval = d
		}
	}
}

// New creates a Gate for probe. Polling begins with Start.
func New(probe Probe, opts ...Option) *Gate {
	g := &Gate{
		probe:    probe,
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WaitUntilReady starts polling probe every interval on clock and returns a
// channel that is closed once the probe first reports true.
func WaitUntilReady(clock clockwork.Clock, interval time.Duration, probe Probe) <-chan struct{} {
	g := New(probe, WithClock(clock), WithInterval(interval))
	g.Start()
	return g.Done()
}

// Start begins polling in the background. Calling it again has no effect.
func (g *Gate) Start() {
	g.startOnce.Do(func() {
		go g.poll()
	})
}

// Done is closed when the gate resolves.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Ready reports whether the gate has resolved. Once true it stays true.
func (g *Gate) Ready() bool {
	return g.ready.Load()
}

// Stop ends polling without resolving the gate.
func (g *Gate) Stop() {
	g.stopOnce.Do(func() {
		close(g.stop)
	})
}

// CheckReadiness returns nil once the gate has resolved.
func (g *Gate) CheckReadiness(_ context.Context) error {
	if !g.Ready() {
		return errors.New("capability not available yet")
	}
	return nil
}

func (g *Gate) poll() {
	ticker := g.clock.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.Chan():
			if g.probe() {
				g.ready.Store(true)
				close(g.done)
				return
			}
		}
	}
}
