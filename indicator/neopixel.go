package indicator

import (
	"fmt"
	"os"
)

// Neopixel command strings for the external neopixel tool.
const (
	neoNormalIdle    = "@3 !150000 400000"
	neoAccessGranted = "@1 !50000 8000"
	neoTerminated    = "@0 010101"
)

// Neopixel implements Indicator using an external neopixel tool via named pipe.
// The strip is driven as a whole, so any channel binds.
type Neopixel struct {
	pipe *os.File
}

// NewNeopixel creates a new Neopixel indicator.
func NewNeopixel(pipePath string) (*Neopixel, error) {
	f, err := os.OpenFile(pipePath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open neopixel pipe %s: %w", pipePath, err)
	}
	return &Neopixel{pipe: f}, nil
}

// Bind implements Indicator.Bind.
func (n *Neopixel) Bind(channel int) error {
	return n.write(neoNormalIdle)
}

// Granted implements Indicator.Granted.
func (n *Neopixel) Granted() error {
	return n.write(neoAccessGranted)
}

// Idle implements Indicator.Idle.
func (n *Neopixel) Idle() error {
	return n.write(neoNormalIdle)
}

// Shutdown implements Indicator.Shutdown.
func (n *Neopixel) Shutdown() error {
	return n.write(neoTerminated)
}

// Release implements Indicator.Release.
func (n *Neopixel) Release() error {
	if n.pipe == nil {
		return nil
	}
	err := n.pipe.Close()
	n.pipe = nil
	return err
}

func (n *Neopixel) write(s string) error {
	if n.pipe == nil {
		return os.ErrClosed
	}
	_, err := n.pipe.Write([]byte(s + "\n"))
	return err
}
