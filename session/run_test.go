package session

import (
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"rfidexec/gate"
)

// stepClock records sleeps and raises stop after a fixed number of them.
type stepClock struct {
	rec       *recorder
	stop      *atomic.Bool
	stopAfter int
	sleeps    []time.Duration
	timers    []*manualTimer
}

func (c *stepClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	if c.rec != nil {
		c.rec.add("sleep " + d.String())
	}
	if len(c.sleeps) >= c.stopAfter {
		c.stop.Store(true)
	}
}

func (c *stepClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// manualTimer fires only when the test calls fire.
type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	wasPending := !t.stopped
	t.stopped = true
	return wasPending
}

func (t *manualTimer) fire() {
	if !t.stopped {
		t.stopped = true
		t.f()
	}
}

func openWithClock(t *testing.T, cfg *Config, hw *fakeHardware, d gate.Dispatcher, stopAfter int) (*Session, *stepClock, *atomic.Bool) {
	t.Helper()
	stop := &atomic.Bool{}
	clock := &stepClock{rec: hw.rec, stop: stop, stopAfter: stopAfter}
	s, err := Open(cfg, hw, d, WithClock(clock))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s, clock, stop
}

func TestRunEventModeIdlesUntilStopped(t *testing.T) {
	hw := newHardware(false)
	s, clock, stop := openWithClock(t, &Config{}, hw, &countingDispatcher{}, 3)

	if err := s.Run(stop); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := []time.Duration{IdleInterval, IdleInterval, IdleInterval}
	if !reflect.DeepEqual(clock.sleeps, want) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, want)
	}
}

func TestRunReturnsImmediatelyWhenAlreadyStopped(t *testing.T) {
	hw := newHardware(false)
	s, clock, stop := openWithClock(t, &Config{}, hw, &countingDispatcher{}, 1)

	stop.Store(true)
	if err := s.Run(stop); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("unexpected sleeps: %v", clock.sleeps)
	}
}

func TestRunPollModeAllowedTagHoldsIndicator(t *testing.T) {
	hw := newHardware(true)
	hw.reader.present = []bool{true, false}
	hw.reader.tag = "ABC123XYZ"
	d := &countingDispatcher{}
	cfg := &Config{Mode: ModePoll, Gate: gate.Config{ExpectedTag: "ABC123", Command: "unlock"}}
	s, clock, stop := openWithClock(t, cfg, hw, d, 3)

	n := len(hw.rec.calls)
	if err := s.Run(stop); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []string{"indicator on", "sleep 3s", "indicator off", "sleep 1s", "sleep 1s"}
	if got := callsSince(hw.rec, n); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if len(clock.sleeps) != 3 {
		t.Fatalf("sleeps = %v", clock.sleeps)
	}
	if want := []string{"unlock"}; !reflect.DeepEqual(d.commands, want) {
		t.Fatalf("commands = %v, want %v", d.commands, want)
	}
}

func TestRunPollModeDeniedTagHasNoDwell(t *testing.T) {
	hw := newHardware(true)
	hw.reader.present = []bool{true}
	hw.reader.tag = "ABD123"
	d := &countingDispatcher{}
	cfg := &Config{Mode: ModePoll, Gate: gate.Config{ExpectedTag: "ABC123", Command: "unlock"}}
	s, _, stop := openWithClock(t, cfg, hw, d, 1)

	n := len(hw.rec.calls)
	if err := s.Run(stop); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got, want := callsSince(hw.rec, n), []string{"sleep 1s"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if len(d.commands) != 0 {
		t.Fatalf("denied tag dispatched: %v", d.commands)
	}
}

func TestRunPollModeReadFailureSkipsTag(t *testing.T) {
	hw := newHardware(true)
	hw.reader.present = []bool{true}
	hw.reader.readErr = errors.New("tag left the field")
	d := &countingDispatcher{}
	s, _, stop := openWithClock(t, &Config{Mode: ModePoll, Gate: gate.Config{Command: "unlock"}}, hw, d, 1)

	n := len(hw.rec.calls)
	if err := s.Run(stop); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got, want := callsSince(hw.rec, n), []string{"sleep 1s"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if len(d.commands) != 0 {
		t.Fatalf("failed read dispatched: %v", d.commands)
	}
}

func TestRunPollModeWithoutIndicator(t *testing.T) {
	hw := newHardware(false)
	hw.reader.present = []bool{true}
	hw.reader.tag = "anything"
	d := &countingDispatcher{}
	s, clock, stop := openWithClock(t, &Config{Mode: ModePoll, Gate: gate.Config{Command: "unlock"}}, hw, d, 1)

	if err := s.Run(stop); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if want := []time.Duration{PollInterval}; !reflect.DeepEqual(clock.sleeps, want) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, want)
	}
	if len(d.commands) != 1 {
		t.Fatalf("commands = %v, want one dispatch", d.commands)
	}
}

func TestRunAfterCloseFails(t *testing.T) {
	hw := newHardware(false)
	s, err := Open(&Config{}, hw, &countingDispatcher{})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	s.Close()

	if err := s.Run(&atomic.Bool{}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestRunPollModeTagLongerThanBuffer(t *testing.T) {
	long := strings.Repeat("A", tagBufferSize+6)
	hw := newHardware(false)
	hw.reader.present = []bool{true}
	hw.reader.tag = long
	d := &countingDispatcher{}
	cfg := &Config{Mode: ModePoll, Gate: gate.Config{ExpectedTag: long, Command: "unlock"}}
	s, _, stop := openWithClock(t, cfg, hw, d, 1)

	if err := s.Run(stop); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if want := []string{"unlock"}; !reflect.DeepEqual(d.commands, want) {
		t.Fatalf("commands = %v, want %v", d.commands, want)
	}
}

func TestEventModeAllowedTagFlashesIndicator(t *testing.T) {
	hw := newHardware(true)
	cfg := &Config{Gate: gate.Config{ExpectedTag: "ABC123", Command: "unlock"}}
	s, clock, _ := openWithClock(t, cfg, hw, &countingDispatcher{}, 1)

	n := len(hw.rec.calls)
	hw.reader.handler("ABD123", true)
	if got := callsSince(hw.rec, n); len(got) != 0 {
		t.Fatalf("denied tag touched indicator: %v", got)
	}

	hw.reader.handler("ABC123XYZ", true)
	if got, want := callsSince(hw.rec, n), []string{"indicator on"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if len(clock.timers) != 1 || clock.timers[0].d != DwellInterval {
		t.Fatalf("expected one %v dwell timer, got %+v", DwellInterval, clock.timers)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("handler slept: %v", clock.sleeps)
	}

	clock.timers[0].fire()
	if got, want := callsSince(hw.rec, n), []string{"indicator on", "indicator off"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	s.Close()
}

func TestEventModeCloseCancelsDwell(t *testing.T) {
	hw := newHardware(true)
	s, clock, _ := openWithClock(t, &Config{}, hw, &countingDispatcher{}, 1)

	hw.reader.handler("ABC", true)
	s.Close()

	n := len(hw.rec.calls)
	clock.timers[0].fire()
	hw.reader.handler("ABC", true)
	if got := callsSince(hw.rec, n); len(got) != 0 {
		t.Fatalf("indicator used after close: %v", got)
	}
}

func TestEventModeDwellRestartsOnNewTag(t *testing.T) {
	hw := newHardware(true)
	_, clock, _ := openWithClock(t, &Config{}, hw, &countingDispatcher{}, 1)

	n := len(hw.rec.calls)
	hw.reader.handler("ABC", true)
	hw.reader.handler("ABC", true)

	// The first timer's callback may already be running when it is stopped.
	clock.timers[0].f()
	if got, want := callsSince(hw.rec, n), []string{"indicator on", "indicator on"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}

	clock.timers[1].fire()
	if got, want := callsSince(hw.rec, n), []string{"indicator on", "indicator on", "indicator off"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}
