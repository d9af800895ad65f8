package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/tarm/serial"
)

// Serial is a Source for serial RFID readers using a framed protocol.
// Frame: [0x02][0x09][data x5][xor][0x03], tag number in the last four data bytes.
type Serial struct {
	port   *serial.Port
	device string
}

// NewSerial opens a serial RFID reader.
func NewSerial(device string, baud int) (*Serial, error) {
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: time.Second,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	return &Serial{port: port, device: device}, nil
}

// Read implements Source.Read.
func (s *Serial) Read(ctx context.Context) (string, bool, error) {
	buff := make([]byte, 9)
	for {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		default:
		}

		n, err := s.port.Read(buff)
		if err != nil && err != io.EOF {
			return "", false, fmt.Errorf("read %s: %w", s.device, err)
		}
		if n == 0 {
			// Timeout
			continue
		}

		tag, ok := decodeSerialFrame(buff[:n])
		if ok {
			return strconv.FormatUint(tag, 10), true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}

var (
	serialPreamble   = []byte{0x02, 0x09}
	serialTerminator = []byte{0x03}
)

func decodeSerialFrame(buff []byte) (uint64, bool) {
	if len(buff) != 9 {
		return 0, false
	}
	if !bytes.Equal(buff[0:2], serialPreamble) {
		return 0, false
	}
	if !bytes.Equal(buff[8:9], serialTerminator) {
		return 0, false
	}

	data := buff[1:7]
	xor := data[0]
	for i := 1; i < len(data); i++ {
		xor ^= data[i]
	}
	if xor != buff[7] {
		return 0, false
	}

	tagno := (uint64(data[2]) << 24) | (uint64(data[3]) << 16) | (uint64(data[4]) << 8) | uint64(data[5])
	return tagno, tagno != 0
}

// Close implements Source.Close.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
