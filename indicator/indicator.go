package indicator

import (
	"errors"
	"fmt"

	"rfidexec/video"
)

var (
	ErrNoSuchChannel = errors.New("no output for logical channel")
	ErrNotBound      = errors.New("indicator not bound to a channel")
)

// Indicator is the interface for status outputs (LEDs, neopixels, display).
// An Indicator is created unbound; Bind selects the logical output channel.
type Indicator interface {
	// Bind attaches the indicator to a logical channel index.
	Bind(channel int) error

	// Granted turns the output on.
	Granted() error

	// Idle turns the output off.
	Idle() error

	// Shutdown clears the output before release.
	Shutdown() error

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for indicator implementations.
type Config struct {
	// GPIO output pins, indexed by logical channel (empty = not configured).
	// A single pin serves whichever channel is bound.
	Pins      []int  `yaml:"pins"`
	Driver    string `yaml:"driver"` // "vattu" (default), "gpiocdev", "gpiomem"
	Chip      string `yaml:"chip"`   // gpiocdev chip name
	ActiveLow bool   `yaml:"active_low"`

	// Neopixel pipe path (empty = not configured)
	NeopixelPipe string `yaml:"neopixel_pipe"`

	// Video framebuffer display (true = enabled)
	VideoEnabled bool `yaml:"video_enabled"`
}

// Configured reports whether any output is configured.
func (c Config) Configured() bool {
	return len(c.Pins) > 0 || c.NeopixelPipe != "" || c.VideoEnabled
}

// New creates an Indicator based on the provided configuration.
// Returns nil if nothing is configured, and a Multi if more than one output is.
func New(cfg Config) (Indicator, error) {
	var indicators []Indicator
	fail := func(err error) (Indicator, error) {
		for _, ind := range indicators {
			_ = ind.Release()
		}
		return nil, err
	}

	if len(cfg.Pins) > 0 {
		var gpio Indicator
		var err error
		switch cfg.Driver {
		case "vattu", "":
			gpio, err = NewGPIO(cfg.Pins, cfg.ActiveLow)
		case "gpiocdev":
			gpio, err = NewLine(cfg.Chip, cfg.Pins, cfg.ActiveLow)
		case "gpiomem":
			gpio, err = NewMem(cfg.Pins, cfg.ActiveLow)
		default:
			err = fmt.Errorf("unknown gpio driver %q", cfg.Driver)
		}
		if err != nil {
			return fail(err)
		}
		indicators = append(indicators, gpio)
	}

	if cfg.NeopixelPipe != "" {
		neo, err := NewNeopixel(cfg.NeopixelPipe)
		if err != nil {
			return fail(err)
		}
		indicators = append(indicators, neo)
	}

	if cfg.VideoEnabled {
		if !video.ScreenSupported() {
			return fail(video.ErrScreenNotCompiled)
		}
		vid, err := NewVideo()
		if err != nil {
			return fail(err)
		}
		indicators = append(indicators, vid)
	}

	switch len(indicators) {
	case 0:
		return nil, nil
	case 1:
		return indicators[0], nil
	default:
		return &Multi{indicators: indicators}, nil
	}
}

// pinFor maps a logical channel to its configured pin.
func pinFor(pins []int, channel int) (int, error) {
	if len(pins) == 1 && channel >= 0 {
		return pins[0], nil
	}
	if channel < 0 || channel >= len(pins) {
		return 0, fmt.Errorf("%w %d (%d pins configured)", ErrNoSuchChannel, channel, len(pins))
	}
	return pins[channel], nil
}
