package session

import (
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"rfidexec/gate"
)

const (
	// IdleInterval is the event-mode keepalive sleep.
	IdleInterval = time.Second

	// PollInterval is the delay between presence checks in poll mode.
	PollInterval = time.Second

	// DwellInterval is how long the indicator stays on after an allowed tag.
	DwellInterval = 3 * time.Second
)

// Clock abstracts sleeping and timers so the run loops can be driven in tests.
type Clock interface {
	Sleep(d time.Duration)
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Run operates the session until stop is raised. The flag is checked at the
// top of every iteration; an iteration in progress always completes.
func (s *Session) Run(stop *atomic.Bool) error {
	if s.state != Running {
		return ErrNotRunning
	}

	log.Debug().Stringer("mode", s.cfg.Mode).Msg("Session running")
	for !stop.Load() {
		if s.cfg.Mode == ModePoll {
			s.poll()
		} else {
			s.clock.Sleep(IdleInterval)
		}
	}
	return nil
}

// poll runs one presence check.
func (s *Session) poll() {
	present, err := s.reader.TagPresent()
	if err != nil {
		log.Debug().Err(err).Msg("Tag present")
	}

	if err == nil && present {
		n, err := s.reader.ReadLastTag(s.lastTag)
		if errors.Is(err, io.ErrShortBuffer) && n > len(s.lastTag) {
			s.lastTag = make([]byte, n)
			n, err = s.reader.ReadLastTag(s.lastTag)
		}
		if err != nil {
			log.Debug().Err(err).Msg("Read last tag")
		} else if s.gate.OnTag(string(s.lastTag[:n]), true) == gate.Allowed {
			s.hold()
		}
	}

	s.clock.Sleep(PollInterval)
}

// hold keeps the indicator on for DwellInterval.
func (s *Session) hold() {
	if s.indicator == nil {
		return
	}
	if err := s.indicator.Granted(); err != nil {
		log.Warn().Err(err).Msg("Indicator on")
	}
	s.clock.Sleep(DwellInterval)
	if err := s.indicator.Idle(); err != nil {
		log.Warn().Err(err).Msg("Indicator off")
	}
}

// flash turns the indicator on without blocking the reader goroutine and
// schedules it off after DwellInterval. A tag during the dwell restarts it.
func (s *Session) flash() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indicator == nil || s.closing {
		return
	}
	if s.dwell != nil {
		s.dwell.Stop()
	}
	if err := s.indicator.Granted(); err != nil {
		log.Warn().Err(err).Msg("Indicator on")
	}
	s.dwellGen++
	gen := s.dwellGen
	s.dwell = s.clock.AfterFunc(DwellInterval, func() { s.dwellDone(gen) })
}

// dwellDone turns the indicator off unless the dwell was restarted or the
// session is closing.
func (s *Session) dwellDone(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing || gen != s.dwellGen {
		return
	}
	s.dwell = nil
	if err := s.indicator.Idle(); err != nil {
		log.Warn().Err(err).Msg("Indicator off")
	}
}
