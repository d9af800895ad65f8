//go:build !linux

package indicator

import "errors"

var ErrNotSupported = errors.New("gpiocdev indicator not supported on this platform")

// Line is a stub for non-linux platforms.
type Line struct{}

// NewLine returns an error on non-linux platforms.
func NewLine(chip string, pins []int, activeLow bool) (*Line, error) {
	return nil, ErrNotSupported
}

func (l *Line) Bind(channel int) error { return ErrNotSupported }
func (l *Line) Granted() error         { return ErrNotSupported }
func (l *Line) Idle() error            { return ErrNotSupported }
func (l *Line) Shutdown() error        { return ErrNotSupported }
func (l *Line) Release() error         { return nil }
