//go:build linux

package indicator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Line implements Indicator on a GPIO character device line.
type Line struct {
	chip      string
	pins      []int
	activeLow bool
	line      *gpiocdev.Line
}

// NewLine creates a gpiocdev indicator. The line is requested on Bind.
func NewLine(chip string, pins []int, activeLow bool) (*Line, error) {
	if chip == "" {
		chip = "gpiochip0"
	}
	return &Line{chip: chip, pins: pins, activeLow: activeLow}, nil
}

// Bind implements Indicator.Bind.
func (l *Line) Bind(channel int) error {
	offset, err := pinFor(l.pins, channel)
	if err != nil {
		return err
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if l.activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := gpiocdev.RequestLine(l.chip, offset, opts...)
	if err != nil {
		return fmt.Errorf("request %s line %d: %w", l.chip, offset, err)
	}
	l.line = line
	return nil
}

// Granted implements Indicator.Granted.
func (l *Line) Granted() error {
	return l.set(1)
}

// Idle implements Indicator.Idle.
func (l *Line) Idle() error {
	return l.set(0)
}

// Shutdown implements Indicator.Shutdown.
func (l *Line) Shutdown() error {
	return l.set(0)
}

// Release implements Indicator.Release.
func (l *Line) Release() error {
	if l.line == nil {
		return nil
	}
	err := l.line.Close()
	l.line = nil
	return err
}

func (l *Line) set(v int) error {
	if l.line == nil {
		return ErrNotBound
	}
	return l.line.SetValue(v)
}
