// Package diag implements the boot-time diagnostic tool: it asks the AIOC
// for its bootloader/firmware version and for boot-timestamp telemetry over
// the /dev/cbc-diagnosis and /dev/cbc-dlt channels and prints what comes
// back.
package diag

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/open-vlc/vlc/cbcbus"
	"golang.org/x/sys/unix"
)

const (
	DiagDevice = "/dev/cbc-diagnosis"
	DLTDevice  = "/dev/cbc-dlt"

	versionRequestByte   = 0x04
	timestampRequestByte = 0xFF

	pollTimeout    = 200 * time.Millisecond
	settlingDelay  = 100 * time.Millisecond
	maxFrameSize   = 96
	abortReasonAbl = 2
)

// Tool drives one request/response round trip against the diagnosis and dlt
// devices.
type Tool struct {
	Diag    *cbcbus.Device
	DLT     *cbcbus.Device
	Verbose bool

	ablOrigin  uint64
	haveOrigin bool
}

// Open opens both diagnostic channels. Either device may be omitted from
// the resulting Tool's requests by passing FlagNone/TimestampsNone to
// Request and Receive.
func Open() (*Tool, error) {
	diagDev, err := cbcbus.OpenTimeout(DiagDevice, pollTimeout)
	if err != nil {
		return nil, fmt.Errorf("diag: open %s: %w", DiagDevice, err)
	}
	dltDev, err := cbcbus.OpenTimeout(DLTDevice, pollTimeout)
	if err != nil {
		diagDev.Close()
		return nil, fmt.Errorf("diag: open %s: %w", DLTDevice, err)
	}
	return &Tool{Diag: diagDev, DLT: dltDev}, nil
}

// Close releases both devices.
func (t *Tool) Close() {
	t.Diag.Close()
	t.DLT.Close()
}

// Request sends the version and/or timestamp request frames selected by
// flags/mode, with the 100ms settling delay the original inserts between
// the two requests when both are in play.
func (t *Tool) Request(flags OutputFlags, mode TimestampMode) error {
	sentVersion := false
	if flags != FlagNone {
		if t.Verbose {
			log.Printf("diag: requesting version on %s", DiagDevice)
		}
		if err := t.Diag.Write([]byte{versionRequestByte}); err != nil {
			return fmt.Errorf("diag: send version request: %w", err)
		}
		sentVersion = true
	}
	if mode != TimestampsNone {
		if sentVersion {
			time.Sleep(settlingDelay)
		}
		if t.Verbose {
			log.Printf("diag: requesting timestamps on %s", DLTDevice)
		}
		if err := t.DLT.Write([]byte{timestampRequestByte}); err != nil {
			return fmt.Errorf("diag: send timestamp request: %w", err)
		}
	}
	return nil
}

// Receive polls both devices for pollTimeout and decodes whatever responses
// arrive: at most one version frame, and a drained sequence of timestamp
// frames (the AIOC emits one per recorded boot milestone). Timestamp frames
// with reason 2 ("ABL start") latch the relative-time origin; that frame and
// every later one are reported relative to it, while frames that arrive
// before any origin is latched are reported as raw timestamps.
func (t *Tool) Receive(flags OutputFlags, mode TimestampMode, w io.Writer) error {
	pollFds := []unix.PollFd{
		{Fd: int32(t.Diag.Fd()), Events: unix.POLLIN},
		{Fd: int32(t.DLT.Fd()), Events: unix.POLLIN},
	}
	n, err := unix.Poll(pollFds, int(pollTimeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("diag: poll: %w", err)
	}
	if n == 0 {
		return nil
	}

	if flags != FlagNone && pollFds[0].Revents&unix.POLLIN != 0 {
		t.receiveVersion(flags)
		time.Sleep(settlingDelay)
	}
	if mode != TimestampsNone && pollFds[1].Revents&unix.POLLIN != 0 {
		t.drainTimestamps(w)
	}
	return nil
}

func (t *Tool) receiveVersion(flags OutputFlags) {
	buf := make([]byte, maxFrameSize)
	n := t.Diag.Read(buf)
	if n <= 1 {
		return
	}
	versions, ok := DecodeVersions(buf[1:n])
	if !ok {
		return
	}
	if flags&FlagBootloaderVersion != 0 {
		fmt.Printf("Bootloader version: %d.%d.%d\n", versions.BootloaderMajor, versions.BootloaderMinor, versions.BootloaderRevision)
	}
	if flags&FlagFirmwareVersion != 0 {
		fmt.Printf("Firmware version: %d.%d.%d\n", versions.FirmwareMajor, versions.FirmwareMinor, versions.FirmwareRevision)
	}
	if flags&FlagMainboardVersion != 0 {
		fmt.Printf("Mainboard version: %d\n", versions.MainboardRevision)
	}
}

// drainTimestamps keeps reading frames off the dlt device until a read
// returns nothing, mirroring the original's do/while(read_chars2 > 0). The
// AIOC answers one timestamp request with a burst of frames, not just one.
func (t *Tool) drainTimestamps(w io.Writer) {
	buf := make([]byte, maxFrameSize)
	for {
		read := t.DLT.Read(buf)
		if read <= 0 {
			return
		}
		t.reportTimestamp(buf[:read], w)
		time.Sleep(settlingDelay)
	}
}

func (t *Tool) reportTimestamp(frame []byte, w io.Writer) {
	if len(frame) < 9 {
		log.Printf("diag: short timestamp frame (%d bytes)", len(frame))
		return
	}
	if t.Verbose {
		log.Printf("diag: timestamp frame % x", frame)
	}
	reason := frame[0]
	var ts uint64
	for i := 0; i < 8; i++ {
		ts |= uint64(frame[1+i]) << (8 * i)
	}
	if reason == abortReasonAbl {
		t.ablOrigin = ts
		t.haveOrigin = true
	}
	relative := ts
	if t.haveOrigin {
		relative = ts - t.ablOrigin
	}
	line := fmt.Sprintf("BTMCBC %d %d\n", reason, relative)
	fmt.Print(line)
	if w != nil {
		io.WriteString(w, line)
	}
}
