// Package cbcbus talks to the AIOC over a /dev/cbc-* character device: open
// with retry-while-absent, bounded reads, and writes that survive EINTR and
// EDQUOT the way the CBC mux driver expects.
package cbcbus

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	serial "github.com/daedaluz/goserial"
	"golang.org/x/sys/unix"
)

// waitPollInterval and waitTimeout mirror the original cbc_lifecycle
// wait_for_device loop: up to 180 seconds, polled twice a second.
const (
	waitPollInterval = 500 * time.Millisecond
	waitTimeout      = 180 * time.Second
	edquotBackoff    = 1 * time.Millisecond
)

// ErrDeviceGone is returned by Open when the device never appears within
// waitTimeout.
var ErrDeviceGone = errors.New("cbcbus: device did not appear before timeout")

// Device is a CBC character device endpoint: a lifecycle, diagnosis, or dlt
// node. It owns retry policy around a *serial.Port; the port itself does no
// retrying of its own.
type Device struct {
	path string
	port *serial.Port
}

// Open waits for path to exist (up to 180s), then opens it read-write with
// no controlling TTY, matching open_cbc_device in the original daemon.
func Open(path string) (*Device, error) {
	if err := waitForDevice(path); err != nil {
		return nil, err
	}
	opts := serial.NewOptions()
	p, err := serial.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("cbcbus: open %s: %w", path, err)
	}
	return &Device{path: path, port: p}, nil
}

// OpenTimeout behaves like Open but additionally arms a read timeout on the
// port, used by the diagnostic tool's poll-style channels.
func OpenTimeout(path string, readTimeout time.Duration) (*Device, error) {
	if err := waitForDevice(path); err != nil {
		return nil, err
	}
	opts := serial.NewOptions().SetReadTimeout(readTimeout)
	p, err := serial.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("cbcbus: open %s: %w", path, err)
	}
	return &Device{path: path, port: p}, nil
}

func waitForDevice(path string) error {
	deadline := time.Now().Add(waitTimeout)
	for {
		if unix.Access(path, unix.F_OK) == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrDeviceGone, path)
		}
		time.Sleep(waitPollInterval)
	}
}

// Path reports the device node this Device was opened against.
func (d *Device) Path() string { return d.path }

// Fd returns the underlying file descriptor, for callers that need to
// multiplex several devices with unix.Poll.
func (d *Device) Fd() int { return d.port.Fd() }

// Read returns whatever bytes are currently available, retrying only on
// EINTR. Short reads are the caller's responsibility to validate; a read
// error other than EINTR returns 0 bytes and is absorbed (matching
// cbc_read_data, which never propagates an error to its caller).
func (d *Device) Read(buf []byte) int {
	for {
		n, err := d.port.Read(buf)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return 0
		}
		return n
	}
}

// ReadTimeout is like Read but bounds the wait, used by the diagnostic tool.
func (d *Device) ReadTimeout(buf []byte, timeout time.Duration) (int, error) {
	for {
		n, err := d.port.ReadTimeout(buf, timeout)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return 0, err
		}
		return n, nil
	}
}

// Write sends payload with a single port write, retrying on EINTR and
// treating EDQUOT as a transient success-after-backoff condition, matching
// cbc_send_data. A short write is not retried. Any other error is returned
// to the caller.
func (d *Device) Write(payload []byte) error {
	for {
		_, err := d.port.Write(payload)
		if err == nil {
			return nil
		}
		switch {
		case errors.Is(err, syscall.EDQUOT):
			time.Sleep(edquotBackoff)
			return nil
		case errors.Is(err, syscall.EINTR):
			continue
		default:
			return fmt.Errorf("cbcbus: write %s: %w", d.path, err)
		}
	}
}

// Close is idempotent: closing an already-closed Device is not an error,
// even though the underlying serial.Port reports ErrClosed on a double
// close.
func (d *Device) Close() error {
	err := d.port.Close()
	if err != nil && !errors.Is(err, serial.ErrClosed) {
		return fmt.Errorf("cbcbus: close %s: %w", d.path, err)
	}
	return nil
}
