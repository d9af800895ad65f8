package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

const (
	stx = 0x02
	etx = 0x03
)

// Wiegand is a Source for Wiegand-to-serial bridges that emit
// ASCII hex IDs wrapped in STX/ETX.
type Wiegand struct {
	port serial.Port
}

// NewWiegand opens a Wiegand reader on the specified serial port.
func NewWiegand(device string, baud int) (*Wiegand, error) {
	if baud == 0 {
		baud = 9600
	}

	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	_ = p.SetReadTimeout(50 * time.Millisecond)

	w := &Wiegand{port: p}
	w.flush()
	return w, nil
}

// Read implements Source.Read.
func (w *Wiegand) Read(ctx context.Context) (string, bool, error) {
	if w.port == nil {
		return "", false, errors.New("port not initialized")
	}

	for {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		default:
		}

		tag, err := w.readFrame()
		if err != nil {
			return "", false, err
		}
		if tag != "" {
			return tag, true, nil
		}
		// No data, brief sleep before retry
		time.Sleep(100 * time.Millisecond)
	}
}

// readFrame attempts to read a single card frame and returns the
// zero-padded ten digit hex ID.
func (w *Wiegand) readFrame() (string, error) {
	first := make([]byte, 1)
	n, err := w.port.Read(first)
	if err != nil {
		return "", fmt.Errorf("read STX: %w", err)
	}
	if n == 0 {
		return "", nil
	}

	if first[0] != stx {
		w.flush()
		return "", nil
	}

	var idBuilder strings.Builder
	buf := make([]byte, 1)

	for {
		n, err := w.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		if n == 0 {
			w.flush()
			return "", nil
		}
		if buf[0] == etx {
			break
		}
		idBuilder.WriteByte(buf[0])
	}

	return normalizeWiegandID(idBuilder.String())
}

func normalizeWiegandID(id string) (string, error) {
	if len(id) > 10 {
		return "", fmt.Errorf("ID too long: %q", id)
	}
	for len(id) < 10 {
		id = "0" + id
	}
	for i := 0; i < len(id); i++ {
		if _, err := hexCharToNibble(id[i]); err != nil {
			return "", fmt.Errorf("invalid hex at pos %d: %w", i, err)
		}
	}
	return strings.ToUpper(id), nil
}

// Close implements Source.Close.
func (w *Wiegand) Close() error {
	if w.port == nil {
		return nil
	}
	return w.port.Close()
}

func (w *Wiegand) flush() {
	if w.port == nil {
		return
	}
	_ = w.port.SetReadTimeout(10 * time.Millisecond)
	defer func() {
		_ = w.port.SetReadTimeout(50 * time.Millisecond)
	}()

	tmp := make([]byte, 64)
	for {
		n, err := w.port.Read(tmp)
		if err != nil || n == 0 {
			return
		}
	}
}

func hexCharToNibble(c byte) (int, error) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), nil
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, nil
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, nil
	default:
		return 0, fmt.Errorf("not a hex char: %q", c)
	}
}
