package indicator

import (
	"fmt"

	"github.com/hjkoskel/govattu"
)

// GPIO implements Indicator on a Raspberry Pi GPIO pin through /dev/gpiomem.
type GPIO struct {
	hw        govattu.Vattu
	pins      []int
	pin       *uint8
	activeLow bool
}

// NewGPIO creates a new GPIO-based indicator.
func NewGPIO(pins []int, activeLow bool) (*GPIO, error) {
	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	return &GPIO{hw: hw, pins: pins, activeLow: activeLow}, nil
}

// Bind implements Indicator.Bind.
func (g *GPIO) Bind(channel int) error {
	p, err := pinFor(g.pins, channel)
	if err != nil {
		return err
	}
	pin := uint8(p)
	g.hw.PinMode(pin, govattu.ALToutput)
	g.pin = &pin
	return g.set(false)
}

// Granted implements Indicator.Granted.
func (g *GPIO) Granted() error {
	return g.set(true)
}

// Idle implements Indicator.Idle.
func (g *GPIO) Idle() error {
	return g.set(false)
}

// Shutdown implements Indicator.Shutdown.
func (g *GPIO) Shutdown() error {
	return g.set(false)
}

// Release implements Indicator.Release.
func (g *GPIO) Release() error {
	return g.hw.Close()
}

func (g *GPIO) set(on bool) error {
	if g.pin == nil {
		return ErrNotBound
	}
	if on != g.activeLow {
		g.hw.PinSet(*g.pin)
	} else {
		g.hw.PinClear(*g.pin)
	}
	return nil
}
