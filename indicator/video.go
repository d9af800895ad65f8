//go:build screen

package indicator

import (
	"rfidexec/video"
)

// VideoIndicator wraps video.Display to implement Indicator.
type VideoIndicator struct {
	v *video.Display
}

// NewVideo creates a new video-based indicator.
func NewVideo() (*VideoIndicator, error) {
	v, err := video.New()
	if err != nil {
		return nil, err
	}
	return &VideoIndicator{v: v}, nil
}

// Bind implements Indicator.Bind. The display is a single output.
func (vi *VideoIndicator) Bind(channel int) error {
	vi.v.Idle()
	return nil
}

// Granted implements Indicator.Granted.
func (vi *VideoIndicator) Granted() error {
	vi.v.Granted()
	return nil
}

// Idle implements Indicator.Idle.
func (vi *VideoIndicator) Idle() error {
	vi.v.Idle()
	return nil
}

// Shutdown implements Indicator.Shutdown.
func (vi *VideoIndicator) Shutdown() error {
	vi.v.Shutdown()
	return nil
}

// Release implements Indicator.Release.
func (vi *VideoIndicator) Release() error {
	return vi.v.Release()
}
