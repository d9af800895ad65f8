package reader

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// How often a waiting channel rescans for its device.
const attachPollInterval = 250 * time.Millisecond

// port identifies a physical device found by a locator.
type port struct {
	path      string
	serial    int
	hasSerial bool
}

// locator finds the device to attach to. want is the requested serial
// number, or 0 for any device.
type locator struct {
	find    func(want int) (port, bool, error)
	serials bool // whether find can honour a requested serial
}

type opener func(path string) (Source, error)

// Device implements Channel on top of a locator and a Source opener.
type Device struct {
	name   string
	locate locator
	open   opener

	mu       sync.Mutex
	want     int
	handler  TagHandler
	attached *attachment
	antenna  bool
	present  bool
	lastTag  string
	released bool
}

type attachment struct {
	port   port
	source Source
	cancel context.CancelFunc
	done   chan struct{}
}

func newDevice(name string, l locator, o opener) *Device {
	return &Device{name: name, locate: l, open: o}
}

// SetDeviceSerial implements Channel.SetDeviceSerial.
func (d *Device) SetDeviceSerial(serial int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	if d.attached != nil {
		return ErrAlreadyAttached
	}
	if !d.locate.serials {
		return ErrSerialUnsupported
	}
	d.want = serial
	return nil
}

// SetOnTagHandler implements Channel.SetOnTagHandler.
func (d *Device) SetOnTagHandler(h TagHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	d.handler = h
	return nil
}

// OpenWaitForAttachment implements Channel.OpenWaitForAttachment.
func (d *Device) OpenWaitForAttachment(timeout time.Duration) error {
	d.mu.Lock()
	if err := d.usable(); err != nil {
		d.mu.Unlock()
		return err
	}
	if d.attached != nil {
		d.mu.Unlock()
		return ErrAlreadyAttached
	}
	want := d.want
	d.mu.Unlock()

	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		p, found, err := d.locate.find(want)
		if err != nil {
			lastErr = err
		} else if found {
			src, err := d.open(p.path)
			if err == nil {
				d.start(p, src)
				log.Debug().Str("reader", d.name).Str("device", p.path).Msg("Reader attached")
				return nil
			}
			lastErr = err
		}

		if time.Now().After(deadline) {
			if lastErr != nil {
				return &attachError{err: lastErr}
			}
			return ErrAttachTimeout
		}
		time.Sleep(attachPollInterval)
	}
}

func (d *Device) start(p port, src Source) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &attachment{port: p, source: src, cancel: cancel, done: make(chan struct{})}

	d.mu.Lock()
	d.attached = a
	d.present = false
	d.lastTag = ""
	d.mu.Unlock()

	go d.listen(ctx, a)
}

func (d *Device) listen(ctx context.Context, a *attachment) {
	defer close(a.done)

	for {
		tag, ok, err := a.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("reader", d.name).Msg("Read tag")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		d.deliver(tag, ok)
	}
}

func (d *Device) deliver(tag string, ok bool) {
	d.mu.Lock()
	if !d.antenna {
		d.mu.Unlock()
		return
	}
	if ok {
		d.lastTag = tag
		d.present = true
	}
	h := d.handler
	d.mu.Unlock()

	if h != nil {
		h(tag, ok)
	}
}

// DeviceSerial implements Channel.DeviceSerial.
func (d *Device) DeviceSerial() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.attached == nil {
		return 0, ErrNotAttached
	}
	if !d.attached.port.hasSerial {
		return 0, ErrSerialUnsupported
	}
	return d.attached.port.serial, nil
}

// SetAntennaEnabled implements Channel.SetAntennaEnabled.
func (d *Device) SetAntennaEnabled(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.attached == nil {
		return ErrNotAttached
	}
	d.antenna = enabled
	if !enabled {
		d.present = false
	}
	return nil
}

// TagPresent implements Channel.TagPresent.
func (d *Device) TagPresent() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.attached == nil {
		return false, ErrNotAttached
	}
	return d.present, nil
}

// ReadLastTag implements Channel.ReadLastTag.
func (d *Device) ReadLastTag(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.attached == nil {
		return 0, ErrNotAttached
	}
	if d.lastTag == "" {
		return 0, ErrNoTag
	}
	if len(buf) < len(d.lastTag) {
		return len(d.lastTag), io.ErrShortBuffer
	}
	d.present = false
	return copy(buf, d.lastTag), nil
}

// Close implements Channel.Close.
func (d *Device) Close() error {
	d.mu.Lock()
	a := d.attached
	d.attached = nil
	d.antenna = false
	d.present = false
	d.mu.Unlock()

	if a == nil {
		return ErrNotAttached
	}

	a.cancel()
	err := a.source.Close()
	<-a.done
	return err
}

// Release implements Channel.Release.
func (d *Device) Release() error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return ErrReleased
	}
	d.released = true
	attached := d.attached != nil
	d.handler = nil
	d.mu.Unlock()

	if attached {
		return d.Close()
	}
	return nil
}

func (d *Device) usable() error {
	if d.released {
		return ErrReleased
	}
	return nil
}

// attachError reports the last failure seen while waiting for attachment.
type attachError struct {
	err error
}

func (e *attachError) Error() string {
	return ErrAttachTimeout.Error() + ": " + e.err.Error()
}

func (e *attachError) Unwrap() []error {
	return []error{ErrAttachTimeout, e.err}
}
