package gpio

import (
	"errors"
	"sync"
)

// FakeInputs is a test double for meter lines. Tests fire edges with Edge and
// script the re-sampled level per channel with SetLevel.
type FakeInputs struct {
	mu     sync.Mutex
	fn     EdgeFunc
	levels []bool

	// LevelError, if set, will be returned by Level().
	LevelError error

	// Closed tracks if Close was called.
	Closed bool

	// WatchError, if set, will be returned by Watch().
	WatchError error
}

// NewFakeInputs creates a FakeInputs with n channels, all LOW.
func NewFakeInputs(n int) *FakeInputs {
	return &FakeInputs{levels: make([]bool, n)}
}

// Watch registers the edge callback.
func (f *FakeInputs) Watch(fn EdgeFunc) error {
	if f.WatchError != nil {
		return f.WatchError
	}
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
	return nil
}

// Edge fires a rising edge on the given channel, invoking the registered
// callback synchronously on the caller's goroutine.
func (f *FakeInputs) Edge(channel int) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(channel)
	}
}

// SetLevel scripts the level returned by Level for a channel.
func (f *FakeInputs) SetLevel(channel int, high bool) {
	f.mu.Lock()
	f.levels[channel] = high
	f.mu.Unlock()
}

// Pulse fires an edge and leaves the level HIGH, the shape of a genuine pulse.
func (f *FakeInputs) Pulse(channel int) {
	f.SetLevel(channel, true)
	f.Edge(channel)
}

// Level returns the scripted level.
func (f *FakeInputs) Level(channel int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LevelError != nil {
		return false, f.LevelError
	}
	if channel < 0 || channel >= len(f.levels) {
		return false, errors.New("no such channel")
	}
	return f.levels[channel], nil
}

// Close marks the inputs as closed.
func (f *FakeInputs) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeButton is a test double for the boot button.
type FakeButton struct {
	mu   sync.Mutex
	down bool

	// PressedError, if set, will be returned by Pressed().
	PressedError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeButton creates a released FakeButton.
func NewFakeButton() *FakeButton {
	return &FakeButton{}
}

// SetPressed scripts the button state.
func (f *FakeButton) SetPressed(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

// Pressed returns the scripted state.
func (f *FakeButton) Pressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PressedError != nil {
		return false, f.PressedError
	}
	return f.down, nil
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
