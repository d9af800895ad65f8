package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// Pipe is a Source that reads tag events from a named pipe, one per line:
//
//	tag <value>   - tag read
//	rfid <value>  - alias for tag
//	tag           - null reading
//
// Blank lines and lines starting with # are ignored.
type Pipe struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewPipe opens the named pipe for reading. It is opened read-write so the
// open does not block waiting for a writer and never sees EOF between writers.
func NewPipe(path string) (*Pipe, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open pipe %s: %w", path, err)
	}
	return newPipeFrom(f), nil
}

func newPipeFrom(f *os.File) *Pipe {
	return &Pipe{file: f, scanner: bufio.NewScanner(f)}
}

// Read implements Source.Read. Cancellation takes effect once Close
// unblocks the pending read.
func (p *Pipe) Read(ctx context.Context) (string, bool, error) {
	for p.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}

		line := strings.TrimSpace(p.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tag, ok, err := parsePipeLine(line)
		if err != nil {
			log.Warn().Err(err).Msg("Pipe parse error")
			continue
		}
		return tag, ok, nil
	}

	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if err := p.scanner.Err(); err != nil {
		return "", false, err
	}
	return "", false, io.EOF
}

func parsePipeLine(line string) (string, bool, error) {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case "tag", "rfid":
		if len(parts) < 2 {
			return "", false, nil
		}
		return parts[1], true, nil
	default:
		return "", false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

// Close implements Source.Close.
func (p *Pipe) Close() error {
	if p.file == nil {
		return nil
	}
	return p.file.Close()
}
