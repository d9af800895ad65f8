//go:build !screen

package indicator

import (
	"rfidexec/video"
)

// NewVideo returns an error when screen support is not compiled in.
func NewVideo() (*VideoIndicator, error) {
	return nil, video.ErrScreenNotCompiled
}

// VideoIndicator is a stub when screen support is not compiled in.
type VideoIndicator struct{}

func (vi *VideoIndicator) Bind(channel int) error { return video.ErrScreenNotCompiled }
func (vi *VideoIndicator) Granted() error         { return nil }
func (vi *VideoIndicator) Idle() error            { return nil }
func (vi *VideoIndicator) Shutdown() error        { return nil }
func (vi *VideoIndicator) Release() error         { return nil }
