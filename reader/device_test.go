package reader

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

type reading struct {
	tag string
	ok  bool
}

type fakeSource struct {
	readings  chan reading
	waiting   chan struct{} // signalled each time Read is entered
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		readings: make(chan reading),
		waiting:  make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

func (f *fakeSource) Read(ctx context.Context) (string, bool, error) {
	select {
	case f.waiting <- struct{}{}:
	default:
	}
	select {
	case r := <-f.readings:
		return r.tag, r.ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	case <-f.closed:
		return "", false, io.EOF
	}
}

func (f *fakeSource) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func fixedLocator(p port, serials bool) locator {
	return locator{
		serials: serials,
		find: func(want int) (port, bool, error) {
			if want > 0 && want != p.serial {
				return port{}, false, nil
			}
			return p, true, nil
		},
	}
}

func attachedDevice(t *testing.T, src *fakeSource) *Device {
	t.Helper()
	d := newDevice("fake", fixedLocator(port{path: "/dev/fake", serial: 4242, hasSerial: true}, true),
		func(string) (Source, error) { return src, nil })
	if err := d.OpenWaitForAttachment(time.Second); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Release() })
	return d
}

// send delivers a reading and waits until the listener has processed it
// and returned to Read.
func send(t *testing.T, src *fakeSource, r reading) {
	t.Helper()
	wait := func() {
		select {
		case <-src.waiting:
		case <-time.After(time.Second):
			t.Fatal("listener not reading")
		}
	}
	wait()
	src.readings <- r
	wait()
}

func TestDeviceDeliversReadingsToHandler(t *testing.T) {
	src := newFakeSource()
	d := attachedDevice(t, src)

	got := make(chan reading, 4)
	if err := d.SetOnTagHandler(func(tag string, ok bool) { got <- reading{tag, ok} }); err != nil {
		t.Fatalf("set handler failed: %v", err)
	}
	if err := d.SetAntennaEnabled(true); err != nil {
		t.Fatalf("enable antenna failed: %v", err)
	}

	src.readings <- reading{"ABC123", true}
	src.readings <- reading{"", false}

	for _, want := range []reading{{"ABC123", true}, {"", false}} {
		select {
		case r := <-got:
			if r != want {
				t.Fatalf("handler got %+v, want %+v", r, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("handler not called for %+v", want)
		}
	}
}

func TestDeviceDropsReadingsWithAntennaDisabled(t *testing.T) {
	src := newFakeSource()
	d := attachedDevice(t, src)

	calls := 0
	var mu sync.Mutex
	_ = d.SetOnTagHandler(func(string, bool) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	send(t, src, reading{"ABC", true})

	present, err := d.TagPresent()
	if err != nil {
		t.Fatalf("tag present failed: %v", err)
	}
	if present {
		t.Fatal("tag reported present with antenna disabled")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("handler called %d times with antenna disabled", calls)
	}
}

func TestDevicePresenceLatch(t *testing.T) {
	src := newFakeSource()
	d := attachedDevice(t, src)
	_ = d.SetAntennaEnabled(true)

	if _, err := d.ReadLastTag(make([]byte, 8)); !errors.Is(err, ErrNoTag) {
		t.Fatalf("expected ErrNoTag before any read, got %v", err)
	}

	send(t, src, reading{"0123456789AB", true})

	present, _ := d.TagPresent()
	if !present {
		t.Fatal("expected tag present after read")
	}

	n, err := d.ReadLastTag(make([]byte, 8))
	if !errors.Is(err, io.ErrShortBuffer) || n != 12 {
		t.Fatalf("short buffer: got %d, %v; want 12, io.ErrShortBuffer", n, err)
	}
	if present, _ := d.TagPresent(); !present {
		t.Fatal("short read should leave the tag present")
	}

	buf := make([]byte, n)
	n, err = d.ReadLastTag(buf)
	if err != nil {
		t.Fatalf("read last tag failed: %v", err)
	}
	if got := string(buf[:n]); got != "0123456789AB" {
		t.Fatalf("last tag = %q, want %q", got, "0123456789AB")
	}

	present, _ = d.TagPresent()
	if present {
		t.Fatal("presence should clear after ReadLastTag")
	}
}

func TestDeviceSerial(t *testing.T) {
	src := newFakeSource()
	d := newDevice("fake", fixedLocator(port{path: "/dev/fake", serial: 4242, hasSerial: true}, true),
		func(string) (Source, error) { return src, nil })
	defer d.Release()

	if _, err := d.DeviceSerial(); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("expected ErrNotAttached, got %v", err)
	}
	if err := d.SetDeviceSerial(4242); err != nil {
		t.Fatalf("set serial failed: %v", err)
	}
	if err := d.OpenWaitForAttachment(time.Second); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	sn, err := d.DeviceSerial()
	if err != nil || sn != 4242 {
		t.Fatalf("serial = %d, %v; want 4242", sn, err)
	}
	if err := d.SetDeviceSerial(1); !errors.Is(err, ErrAlreadyAttached) {
		t.Fatalf("expected ErrAlreadyAttached, got %v", err)
	}
}

func TestDeviceSerialUnsupported(t *testing.T) {
	d := newDevice("fake", fixedLocator(port{path: "/dev/fake"}, false),
		func(string) (Source, error) { return newFakeSource(), nil })
	defer d.Release()

	if err := d.SetDeviceSerial(5); !errors.Is(err, ErrSerialUnsupported) {
		t.Fatalf("expected ErrSerialUnsupported, got %v", err)
	}
	if err := d.OpenWaitForAttachment(time.Second); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if _, err := d.DeviceSerial(); !errors.Is(err, ErrSerialUnsupported) {
		t.Fatalf("expected ErrSerialUnsupported, got %v", err)
	}
}

func TestDeviceAttachTimeout(t *testing.T) {
	d := newDevice("fake", fixedLocator(port{path: "/dev/fake", serial: 1, hasSerial: true}, true),
		func(string) (Source, error) { return newFakeSource(), nil })
	defer d.Release()

	_ = d.SetDeviceSerial(99)
	start := time.Now()
	err := d.OpenWaitForAttachment(50 * time.Millisecond)
	if !errors.Is(err, ErrAttachTimeout) {
		t.Fatalf("expected ErrAttachTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("attach wait took %v", elapsed)
	}
}

func TestDeviceAttachTimeoutKeepsOpenError(t *testing.T) {
	openErr := errors.New("permission denied")
	d := newDevice("fake", fixedLocator(port{path: "/dev/fake"}, false),
		func(string) (Source, error) { return nil, openErr })
	defer d.Release()

	err := d.OpenWaitForAttachment(10 * time.Millisecond)
	if !errors.Is(err, ErrAttachTimeout) || !errors.Is(err, openErr) {
		t.Fatalf("expected timeout wrapping open error, got %v", err)
	}
}

func TestDeviceCloseAndRelease(t *testing.T) {
	src := newFakeSource()
	d := newDevice("fake", fixedLocator(port{path: "/dev/fake"}, false),
		func(string) (Source, error) { return src, nil })

	if err := d.Close(); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("close before attach: expected ErrNotAttached, got %v", err)
	}
	if err := d.OpenWaitForAttachment(time.Second); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	select {
	case <-src.closed:
	default:
		t.Fatal("source not closed")
	}
	if err := d.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := d.Release(); !errors.Is(err, ErrReleased) {
		t.Fatalf("second release: expected ErrReleased, got %v", err)
	}
	if err := d.SetOnTagHandler(nil); !errors.Is(err, ErrReleased) {
		t.Fatalf("use after release: expected ErrReleased, got %v", err)
	}
}
