package reader

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAttachTimeout     = errors.New("timed out waiting for attachment")
	ErrSerialUnsupported = errors.New("device serial number not supported by this reader")
	ErrNotAttached       = errors.New("reader not attached")
	ErrAlreadyAttached   = errors.New("reader already attached")
	ErrReleased          = errors.New("reader channel released")
	ErrNoTag             = errors.New("no tag available")
)

// TagHandler receives every reading delivered while the antenna is enabled.
// ok is false for a null reading. It runs on the channel's own goroutine.
type TagHandler func(tag string, ok bool)

// Channel is a logical connection to the tag-reading function of a device.
// A Channel is created detached; OpenWaitForAttachment binds it to a physical
// device. Close detaches, Release frees the channel itself.
type Channel interface {
	// SetDeviceSerial restricts attachment to the device with this serial number.
	// Must be called before OpenWaitForAttachment.
	SetDeviceSerial(serial int) error

	// SetOnTagHandler registers the event sink for tag readings.
	SetOnTagHandler(h TagHandler) error

	// OpenWaitForAttachment blocks until a matching device is attached or timeout elapses.
	OpenWaitForAttachment(timeout time.Duration) error

	// DeviceSerial returns the serial number of the attached device.
	DeviceSerial() (int, error)

	// SetAntennaEnabled turns tag reading on or off. Readings arriving while
	// the antenna is disabled are discarded.
	SetAntennaEnabled(enabled bool) error

	// TagPresent reports whether a tag has been read since the last ReadLastTag.
	TagPresent() (bool, error)

	// ReadLastTag copies the most recent tag into buf. If buf is too small
	// it returns the tag's full length with io.ErrShortBuffer, and the tag
	// stays present for a retry with a larger buffer.
	ReadLastTag(buf []byte) (int, error)

	// Close detaches from the device.
	Close() error

	// Release frees the channel. A still-attached channel is detached first.
	Release() error
}

// Source produces tag readings from one opened device.
type Source interface {
	// Read blocks until a reading arrives or ctx is cancelled.
	// ok is false (with a nil error) for a null reading.
	Read(ctx context.Context) (tag string, ok bool, err error)

	// Close releases the underlying device.
	Close() error
}

// Config holds configuration for reader implementations.
type Config struct {
	Type   string `yaml:"type"`   // "serial", "wiegand", "keyboard", "pipe"
	Device string `yaml:"device"` // e.g., "/dev/ttyUSB0", "/dev/input/event0", "/tmp/rfid"
	Baud   int    `yaml:"baud"`   // baud rate for serial devices
	Format string `yaml:"format"` // keyboard digit format, e.g. "10h"
	VID    string `yaml:"vid"`    // USB vendor ID filter for port discovery
	PID    string `yaml:"pid"`    // USB product ID filter for port discovery
}

// New creates a detached Channel based on the provided configuration.
func New(cfg Config) (Channel, error) {
	switch cfg.Type {
	case "serial", "":
		baud := cfg.Baud
		if baud == 0 {
			baud = 115200
		}
		return newDevice("serial", portLocator(cfg), func(path string) (Source, error) {
			return NewSerial(path, baud)
		}), nil
	case "wiegand":
		return newDevice("wiegand", portLocator(cfg), func(path string) (Source, error) {
			return NewWiegand(path, cfg.Baud)
		}), nil
	case "keyboard", "10h-kbd":
		if cfg.Device == "" {
			return nil, fmt.Errorf("keyboard reader requires a device path")
		}
		return newDevice("keyboard", pathLocator(cfg.Device), func(path string) (Source, error) {
			return NewKeyboard(path, cfg.Format)
		}), nil
	case "pipe":
		if cfg.Device == "" {
			return nil, fmt.Errorf("pipe reader requires a device path")
		}
		return newDevice("pipe", fifoLocator(cfg.Device), func(path string) (Source, error) {
			return NewPipe(path)
		}), nil
	default:
		return nil, fmt.Errorf("unknown reader type %q", cfg.Type)
	}
}
