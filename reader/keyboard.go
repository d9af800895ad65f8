package reader

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kenshaw/evdev"
	"github.com/rs/zerolog/log"
)

// Keyboard is a Source for USB keyboard-style RFID readers
// that type the tag followed by Enter.
type Keyboard struct {
	device    *evdev.Evdev
	events    <-chan *evdev.EventEnvelope
	cancel    context.CancelFunc
	numDigits int // expected number of characters (0 = any)
	format    string
}

// NewKeyboard opens a keyboard reader on the specified input device.
// Format gives the expected length, e.g. "10h" or "8d"; the suffix is
// informational since the typed string is passed through unchanged.
// If format is empty, defaults to "10h".
func NewKeyboard(device string, format string) (*Keyboard, error) {
	dev, err := evdev.OpenFile(device)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", device, err)
	}

	log.Debug().Str("name", dev.Name()).
		Str("vendor", fmt.Sprintf("0x%04x", dev.ID().Vendor)).
		Str("product", fmt.Sprintf("0x%04x", dev.ID().Product)).
		Msg("Opened keyboard device")

	numDigits, format := parseKeyboardFormat(format)

	ctx, cancel := context.WithCancel(context.Background())
	return &Keyboard{
		device:    dev,
		events:    dev.Poll(ctx),
		cancel:    cancel,
		numDigits: numDigits,
		format:    format,
	}, nil
}

func parseKeyboardFormat(format string) (int, string) {
	if format == "" {
		format = "10h"
	}
	format = strings.ToLower(format)
	digits := strings.TrimRight(format, "hd")
	n, _ := strconv.Atoi(digits)
	return n, format
}

// Read implements Source.Read.
func (k *Keyboard) Read(ctx context.Context) (string, bool, error) {
	var strbuf string

	for {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case event := <-k.events:
			if event == nil {
				return "", false, fmt.Errorf("keyboard device closed")
			}

			switch event.Type.(type) {
			case evdev.KeyType:
				if event.Value != 1 {
					continue
				}

				if event.Type == evdev.KeyEnter {
					if strbuf == "" {
						continue
					}
					if k.numDigits > 0 && len(strbuf) != k.numDigits {
						log.Warn().Int("want", k.numDigits).Str("got", strbuf).Msg("Bad badge length")
						strbuf = ""
						continue
					}
					return strbuf, true, nil
				}

				strbuf += evdev.KeyType(event.Code).String()
			}
		}
	}
}

// Close implements Source.Close.
func (k *Keyboard) Close() error {
	if k.device == nil {
		return nil
	}
	k.cancel()
	return k.device.Close()
}
