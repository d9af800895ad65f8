package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"rfidexec/gate"
	"rfidexec/indicator"
	"rfidexec/reader"
)

const (
	// AttachTimeout bounds the wait for the reader to attach.
	AttachTimeout = 5000 * time.Millisecond

	// IndicatorChannel is the logical output channel the indicator binds to.
	IndicatorChannel = 1

	// Capacity of the poll-mode tag buffer.
	tagBufferSize = 64
)

// Mode selects how tags reach the gate.
type Mode int

const (
	ModeEvent Mode = iota // reader goroutine calls the gate on every reading
	ModePoll              // Run polls the reader for presence once per interval
)

func (m Mode) String() string {
	if m == ModePoll {
		return "poll"
	}
	return "event"
}

// State is the session lifecycle state.
type State int

const (
	Uninitialized State = iota
	Attaching
	Running
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Attaching:
		return "attaching"
	case Running:
		return "running"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config is the session configuration. It must not be modified after Open.
type Config struct {
	Verbose      bool
	DeviceSerial int // <= 0 means first available device
	Gate         gate.Config
	Mode         Mode
}

// release undoes one acquired resource.
type release struct {
	step string
	fn   func() error
}

// Session owns the reader and indicator channels for the life of the process.
type Session struct {
	cfg       *Config
	gate      *gate.Gate
	reader    reader.Channel
	indicator indicator.Indicator
	lastTag   []byte
	state     State
	releases  []release
	clock     Clock

	// mu serialises indicator access between the reader goroutine,
	// the dwell timer and Close in event mode.
	mu       sync.Mutex
	dwell    Timer
	dwellGen int
	closing  bool
}

// Option customises a Session.
type Option func(*Session)

// WithClock replaces the clock used by Run.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// Open creates and attaches the session's channels. On failure every
// resource acquired so far is released and a *SetupError naming the
// failed step is returned.
func Open(cfg *Config, hw Hardware, d gate.Dispatcher, opts ...Option) (*Session, error) {
	s := &Session{
		cfg:   cfg,
		gate:  gate.New(&cfg.Gate, d),
		clock: realClock{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.state = Attaching
	if err := s.setup(hw); err != nil {
		s.teardown()
		return nil, err
	}
	s.state = Running
	return s, nil
}

func (s *Session) setup(hw Hardware) error {
	ch, err := hw.CreateReader()
	if err != nil {
		return &SetupError{Step: "create reader", Err: err}
	}
	s.reader = ch
	s.acquired("delete reader", ch.Release)

	ind, err := hw.CreateIndicator()
	if err != nil {
		return &SetupError{Step: "create indicator", Err: err}
	}
	if ind != nil {
		s.indicator = ind
		s.acquired("release indicator", ind.Release)

		if err := ind.Bind(IndicatorChannel); err != nil {
			return &SetupError{Step: "bind indicator channel", Err: err}
		}
	}

	if s.cfg.DeviceSerial > 0 {
		if err := ch.SetDeviceSerial(s.cfg.DeviceSerial); err != nil {
			return &SetupError{Step: "set device serial", Err: err}
		}
	}

	if s.cfg.Mode == ModeEvent {
		if err := ch.SetOnTagHandler(s.onTag); err != nil {
			return &SetupError{Step: "set tag handler", Err: err}
		}
	} else {
		s.lastTag = make([]byte, tagBufferSize)
	}

	if err := ch.OpenWaitForAttachment(AttachTimeout); err != nil {
		return &SetupError{Step: "open and wait for attachment", Err: err}
	}
	s.acquired("close reader", ch.Close)

	if s.cfg.DeviceSerial <= 0 {
		sn, err := ch.DeviceSerial()
		switch {
		case errors.Is(err, reader.ErrSerialUnsupported):
			log.Debug().Msg("Reader does not report a serial number")
		case err != nil:
			return &SetupError{Step: "get device serial", Err: err}
		case s.cfg.Verbose:
			log.Info().Int("serial", sn).Msg("Found device")
		}
	}

	if err := ch.SetAntennaEnabled(true); err != nil {
		return &SetupError{Step: "enable antenna", Err: err}
	}
	s.acquired("disable antenna", func() error { return ch.SetAntennaEnabled(false) })

	return nil
}

func (s *Session) acquired(step string, fn func() error) {
	s.releases = append(s.releases, release{step: step, fn: fn})
}

// onTag is the reader's event sink.
func (s *Session) onTag(tag string, ok bool) {
	if s.gate.OnTag(tag, ok) == gate.Allowed {
		s.flash()
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Close clears the indicator and releases every channel in reverse order of
// acquisition. Failures are logged and do not stop the remaining releases.
// Closing a closed session does nothing.
func (s *Session) Close() {
	if s.state == Closed {
		return
	}

	s.mu.Lock()
	s.closing = true
	if s.dwell != nil {
		s.dwell.Stop()
		s.dwell = nil
	}
	s.mu.Unlock()

	if s.indicator != nil {
		if err := s.indicator.Shutdown(); err != nil {
			log.Error().Err(err).Str("step", "clear indicator").Msg("Teardown failed")
		}
	}
	s.teardown()
}

func (s *Session) teardown() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		r := s.releases[i]
		if err := r.fn(); err != nil {
			log.Error().Err(err).Str("step", r.step).Msg("Teardown failed")
		}
	}
	s.releases = nil
	s.state = Closed
}
