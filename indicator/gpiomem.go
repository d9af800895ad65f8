package indicator

import (
	"fmt"

	"github.com/warthog618/gpio"
)

// Mem implements Indicator using memory-mapped GPIO pins.
type Mem struct {
	pins      []int
	activeLow bool
	pin       *gpio.Pin
}

// NewMem maps the GPIO registers.
func NewMem(pins []int, activeLow bool) (*Mem, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}
	return &Mem{pins: pins, activeLow: activeLow}, nil
}

// Bind implements Indicator.Bind.
func (m *Mem) Bind(channel int) error {
	p, err := pinFor(m.pins, channel)
	if err != nil {
		return err
	}
	m.pin = gpio.NewPin(p)
	m.pin.Output()
	return m.set(false)
}

// Granted implements Indicator.Granted.
func (m *Mem) Granted() error {
	return m.set(true)
}

// Idle implements Indicator.Idle.
func (m *Mem) Idle() error {
	return m.set(false)
}

// Shutdown implements Indicator.Shutdown.
func (m *Mem) Shutdown() error {
	return m.set(false)
}

// Release implements Indicator.Release.
func (m *Mem) Release() error {
	return gpio.Close()
}

func (m *Mem) set(on bool) error {
	if m.pin == nil {
		return ErrNotBound
	}
	if on != m.activeLow {
		m.pin.High()
	} else {
		m.pin.Low()
	}
	return nil
}
