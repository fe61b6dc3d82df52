// Package engine turns raw rising edges on meter lines into validated pulse
// counts. It is split into two strictly separated execution contexts:
//
//   - OnEdge runs in the GPIO event context. It only re-arms the channel's
//     debounce timer and bumps atomic diagnostic counters. It never takes the
//     counter lock, never allocates, never does I/O.
//   - The timer callback runs one debounce window later on its own goroutine.
//     It re-samples the line, and only a level still HIGH commits an
//     increment to the counter store.
//
// Arming a new timer for a channel cancels the pending one, so the latest
// edge wins. Two genuine pulses closer together than the window are merged
// into one count; this bounds the countable rate to one pulse per window and
// is the intended noise-suppression trade-off, not a bug.
package engine

import (
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/basilic/energy-counter/internal/counter"
	"github.com/basilic/energy-counter/internal/gpio"
)

// DefaultWindow is the debounce window for classic electromechanical meters.
const DefaultWindow = 20 * time.Millisecond

// disarmed is the arming duration for freshly created timers; they are
// stopped immediately, this only guards against a fire before the Stop.
const disarmed = 24 * time.Hour

// Notification reports one validated pulse to observability consumers.
type Notification struct {
	Channel int
	Value   uint32
}

// ChannelDiagnostics are the non-authoritative per-channel event counts.
type ChannelDiagnostics struct {
	Edges     uint64 // raw edges seen by OnEdge
	Validated uint64 // pulses that survived the debounce window
	Rejected  uint64 // candidates discarded because the level dropped
}

// Engine owns the debounce timers and the validation path for all channels.
type Engine struct {
	inputs   gpio.Inputs
	counters *counter.Store
	window   time.Duration
	timers   []*time.Timer

	notifications chan Notification

	edges     []atomic.Uint64
	validated []atomic.Uint64
	rejected  []atomic.Uint64
	dropped   atomic.Uint64
	badEdges  atomic.Uint64
}

// New creates an Engine for every channel of the counter store. Timers are
// created disarmed, one per channel, and live for the engine's lifetime.
func New(inputs gpio.Inputs, counters *counter.Store, window time.Duration, notifyBuffer int) (*Engine, error) {
	if window <= 0 {
		return nil, errors.New("engine: debounce window must be positive")
	}
	n := counters.Len()
	if n == 0 {
		return nil, errors.New("engine: no channels configured")
	}

	e := &Engine{
		inputs:        inputs,
		counters:      counters,
		window:        window,
		timers:        make([]*time.Timer, n),
		notifications: make(chan Notification, notifyBuffer),
		edges:         make([]atomic.Uint64, n),
		validated:     make([]atomic.Uint64, n),
		rejected:      make([]atomic.Uint64, n),
	}

	for i := 0; i < n; i++ {
		channel := i
		t := time.AfterFunc(disarmed, func() { e.validate(channel) })
		if !t.Stop() {
			return nil, errors.New("engine: timer fired during setup")
		}
		e.timers[i] = t
	}
	return e, nil
}

// Start registers the edge callback with the inputs. Called exactly once.
// A line request failure aborts startup: a channel silently unable to count
// is worse than a visible failure.
func (e *Engine) Start() error {
	return e.inputs.Watch(e.OnEdge)
}

// OnEdge handles one rising edge. Safe for the GPIO event context: it
// re-arms the channel's debounce timer and touches nothing else. Re-arming
// cancels a pending validation, so the latest edge wins.
func (e *Engine) OnEdge(channel int) {
	if channel < 0 || channel >= len(e.timers) {
		e.badEdges.Add(1)
		return
	}
	e.edges[channel].Add(1)
	t := e.timers[channel]
	t.Stop()
	t.Reset(e.window)
}

// validate runs one debounce window after the last edge, on the timer's
// goroutine. The counter lock is held only for the increment itself.
func (e *Engine) validate(channel int) {
	high, err := e.inputs.Level(channel)
	if err != nil {
		log.Printf("engine: re-sample channel %d: %v", channel, err)
		e.rejected[channel].Add(1)
		return
	}
	if !high {
		// Level dropped within the window: bounce or glitch.
		e.rejected[channel].Add(1)
		return
	}

	value := e.counters.Increment(channel)
	e.validated[channel].Add(1)

	select {
	case e.notifications <- Notification{Channel: channel, Value: value}:
	default:
		e.dropped.Add(1)
	}
}

// Notifications returns the observability channel. One entry per validated
// pulse; entries are dropped (and counted) when the consumer lags.
func (e *Engine) Notifications() <-chan Notification {
	return e.notifications
}

// Diagnostics returns a copy of the per-channel diagnostic counters.
func (e *Engine) Diagnostics() []ChannelDiagnostics {
	out := make([]ChannelDiagnostics, len(e.timers))
	for i := range out {
		out[i] = ChannelDiagnostics{
			Edges:     e.edges[i].Load(),
			Validated: e.validated[i].Load(),
			Rejected:  e.rejected[i].Load(),
		}
	}
	return out
}

// DroppedNotifications returns how many notifications were discarded because
// the observability channel was full.
func (e *Engine) DroppedNotifications() uint64 {
	return e.dropped.Load()
}

// Stop disarms all debounce timers. Edges arriving after Stop re-arm them,
// so callers must close the inputs first during shutdown.
func (e *Engine) Stop() {
	for _, t := range e.timers {
		t.Stop()
	}
}
