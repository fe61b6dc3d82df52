//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealInputs is not available on non-Linux platforms.
type RealInputs struct{}

// NewRealInputs returns an error on non-Linux platforms.
func NewRealInputs(chipName string, pins []int) (*RealInputs, error) {
	return nil, errUnsupported
}

// Watch is not implemented on non-Linux platforms.
func (r *RealInputs) Watch(fn EdgeFunc) error { return errUnsupported }

// Level is not implemented on non-Linux platforms.
func (r *RealInputs) Level(channel int) (bool, error) { return false, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (r *RealInputs) Close() error { return nil }

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(chipName string, pin int) (*RealButton, error) {
	return nil, errUnsupported
}

// Pressed is not implemented on non-Linux platforms.
func (b *RealButton) Pressed() (bool, error) { return false, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (b *RealButton) Close() error { return nil }
