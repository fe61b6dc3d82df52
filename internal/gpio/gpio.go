// Package gpio provides the meter input lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// EdgeFunc is invoked for every rising edge on a meter line. It runs in the
// GPIO event context: implementations of Inputs call it from their event
// goroutine, so it must be non-blocking and must not acquire locks shared
// with slow paths.
type EdgeFunc func(channel int)

// Inputs is the set of meter pulse lines.
type Inputs interface {
	// Watch requests every line for rising-edge events and registers fn as
	// the edge callback. Must be called exactly once, before any edge can
	// be observed. A request failure on any line is a startup error.
	Watch(fn EdgeFunc) error

	// Level re-samples the current logic level of one line.
	// Returns true for HIGH. May block briefly.
	Level(channel int) (bool, error)

	// Close releases the lines.
	Close() error
}

// Button samples the boot button.
type Button interface {
	// Pressed reports whether the button is currently held down.
	Pressed() (bool, error)

	// Close releases the line.
	Close() error
}

// Default BCM line numbers, one per meter channel.
var DefaultPins = []int{18, 19, 23, 21, 22}

// DefaultButtonPin is the boot button line.
const DefaultButtonPin = 0

// DefaultChip is the GPIO character device the lines live on.
const DefaultChip = "gpiochip0"
