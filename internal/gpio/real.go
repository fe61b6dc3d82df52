//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealInputs drives actual meter lines through the Linux GPIO character device.
type RealInputs struct {
	chipName string
	pins     []int
	chip     *gpiocdev.Chip
	lines    []*gpiocdev.Line
}

// NewRealInputs opens the chip for the given meter lines. The lines are
// requested in Watch, once the edge callback is known.
func NewRealInputs(chipName string, pins []int) (*RealInputs, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	return &RealInputs{
		chipName: chipName,
		pins:     pins,
		chip:     chip,
		lines:    make([]*gpiocdev.Line, len(pins)),
	}, nil
}

// Watch requests every meter line as a pulled-up input with rising-edge
// detection. Meter contacts pull the line low at rest, so a pulse shows up
// as a rising transition back to the pulled-up level.
func (r *RealInputs) Watch(fn EdgeFunc) error {
	if fn == nil {
		return errors.New("gpio: nil edge callback")
	}
	for i, pin := range r.pins {
		channel := i
		line, err := r.chip.RequestLine(pin,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
				fn(channel)
			}))
		if err != nil {
			r.Close()
			return fmt.Errorf("request meter line %d (pin %d): %w", i, pin, err)
		}
		r.lines[i] = line
	}
	return nil
}

// Level re-samples the current logic level of one meter line.
func (r *RealInputs) Level(channel int) (bool, error) {
	if channel < 0 || channel >= len(r.lines) || r.lines[channel] == nil {
		return false, fmt.Errorf("gpio: no line for channel %d", channel)
	}
	v, err := r.lines[channel].Value()
	if err != nil {
		return false, fmt.Errorf("read meter line %d: %w", channel, err)
	}
	return v != 0, nil
}

// Close releases all requested lines and the chip.
func (r *RealInputs) Close() error {
	var errs []error
	for i, line := range r.lines {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close meter line %d: %w", i, err))
		}
		r.lines[i] = nil
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealButton samples the boot button through the GPIO character device.
// The button pulls the line low when held, matching dev-board boot buttons.
type RealButton struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealButton requests the button line as a pulled-up input.
func NewRealButton(chipName string, pin int) (*RealButton, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	return &RealButton{chip: chip, line: line}, nil
}

// Pressed reports whether the button is held down (line low).
func (b *RealButton) Pressed() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button: %w", err)
	}
	return v == 0, nil
}

// Close releases the button line and chip.
func (b *RealButton) Close() error {
	var errs []error
	if b.line != nil {
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button line: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
