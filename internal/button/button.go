// Package button implements the boot-button long-press detector as an
// explicit state machine driven by periodic sampling. A confirmed long press
// arms configuration mode for the next boot. The machine is independent of
// the counting core.
package button

import (
	"context"
	"log"
	"time"

	"github.com/basilic/energy-counter/internal/gpio"
)

// DefaultHold is how long the button must be held to confirm.
const DefaultHold = 3 * time.Second

// DefaultSampleInterval is how often the line is polled.
const DefaultSampleInterval = 50 * time.Millisecond

// State of the press detector.
type State int

const (
	// Idle: button released.
	Idle State = iota
	// Pressed: button down, hold duration not yet reached.
	Pressed
	// LongPressConfirmed: terminal until the button is released.
	LongPressConfirmed
)

// Machine is the pure press/hold/release state machine. Time is always
// injected, so the machine has no clock of its own.
type Machine struct {
	hold      time.Duration
	state     State
	pressedAt time.Time
}

// NewMachine creates an Idle machine confirming after hold.
func NewMachine(hold time.Duration) *Machine {
	return &Machine{hold: hold}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Sample advances the machine with one observation. It returns true exactly
// once per press, at the moment the hold duration is confirmed.
func (m *Machine) Sample(down bool, now time.Time) bool {
	switch m.state {
	case Idle:
		if down {
			m.state = Pressed
			m.pressedAt = now
		}
	case Pressed:
		if !down {
			m.state = Idle
			return false
		}
		if now.Sub(m.pressedAt) >= m.hold {
			m.state = LongPressConfirmed
			return true
		}
	case LongPressConfirmed:
		if !down {
			m.state = Idle
		}
	}
	return false
}

// Monitor samples a button line periodically and invokes onConfirm for each
// confirmed long press.
type Monitor struct {
	btn       gpio.Button
	machine   *Machine
	interval  time.Duration
	onConfirm func()
}

// NewMonitor creates a Monitor.
func NewMonitor(btn gpio.Button, hold, interval time.Duration, onConfirm func()) *Monitor {
	return &Monitor{
		btn:       btn,
		machine:   NewMachine(hold),
		interval:  interval,
		onConfirm: onConfirm,
	}
}

// Run polls until the context is cancelled. Read errors are logged and the
// sample skipped; a flaky line must not trigger configuration mode.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			down, err := m.btn.Pressed()
			if err != nil {
				log.Printf("button: read: %v", err)
				continue
			}
			if m.machine.Sample(down, time.Now()) {
				log.Printf("button: long press confirmed")
				m.onConfirm()
			}
		}
	}
}
