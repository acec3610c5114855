package cbcbus

import (
	"fmt"
	"time"
)

// FrameSize is the fixed width of every lifecycle-channel frame, in both
// directions.
const FrameSize = 4

// Heart-beat frame payloads, fixed constants straight off the wire. Index 0
// is always the frame class byte.
var (
	HeartbeatInit            = [FrameSize]byte{0x02, 0x03, 0x00, 0x00}
	HeartbeatActive          = [FrameSize]byte{0x02, 0x01, 0x00, 0x00}
	HeartbeatShutdownDelay   = [FrameSize]byte{0x02, 0x02, 0x00, 0x00}
	HeartbeatShutdown        = [FrameSize]byte{0x02, 0x00, 0x01, 0x00}
	HeartbeatReboot          = [FrameSize]byte{0x02, 0x00, 0x02, 0x00}
	HeartbeatS3              = [FrameSize]byte{0x02, 0x00, 0x07, 0x00}
	SuppressHeartbeat1Min    = [FrameSize]byte{0x04, 0x60, 0xEA, 0x00}
	SuppressHeartbeat5Min    = [FrameSize]byte{0x04, 0xE0, 0x93, 0x04}
	SuppressHeartbeat10Min   = [FrameSize]byte{0x04, 0xC0, 0x27, 0x09}
	SuppressHeartbeat30Min   = [FrameSize]byte{0x04, 0x40, 0x77, 0x1B}
)

// SuppressFrame picks the smallest suppress-heart-beat variant that is at
// least d, capping at 30 minutes. The original daemon only ever calls for
// the 30-minute frame (on a bare SIGTERM with no pending job); the shorter
// variants exist in the wire vocabulary but are otherwise unused.
func SuppressFrame(d time.Duration) [FrameSize]byte {
	switch {
	case d <= time.Minute:
		return SuppressHeartbeat1Min
	case d <= 5*time.Minute:
		return SuppressHeartbeat5Min
	case d <= 10*time.Minute:
		return SuppressHeartbeat10Min
	default:
		return SuppressHeartbeat30Min
	}
}

// RTC frame class byte; bytes 1-3 are filled in per-request by the RTC
// encoder (low delta, high delta, granularity).
const rtcFrameClass = 0x05

// NewRTCFrame builds the {0x05, low, high, granularity} heart-beat frame for
// a given encoded RTC value.
func NewRTCFrame(value uint16, granularity uint8) [FrameSize]byte {
	return [FrameSize]byte{
		rtcFrameClass,
		byte(value & 0xFF),
		byte(value >> 8),
		granularity & 0x0F,
	}
}

// wake-up frame header bytes, received from the AIOC on the lifecycle
// channel.
const (
	headerWakeupReason = 1
	headerLogicMode    = 6
)

// WakeupFrame is a decoded 4-byte inbound frame: {header, w0, w1, w2}.
type WakeupFrame struct {
	Header byte
	W0, W1, W2 byte
}

// ParseWakeupFrame interprets buf (which must be exactly FrameSize bytes) as
// a wake-up channel frame.
func ParseWakeupFrame(buf []byte) (WakeupFrame, error) {
	if len(buf) != FrameSize {
		return WakeupFrame{}, fmt.Errorf("cbcbus: short wakeup frame (%d bytes)", len(buf))
	}
	return WakeupFrame{Header: buf[0], W0: buf[1], W1: buf[2], W2: buf[3]}, nil
}

// IsLogicMode reports whether this frame is a logic-mode frame (header 6),
// which callers ignore.
func (f WakeupFrame) IsLogicMode() bool { return f.Header == headerLogicMode }

// IsWakeupReason reports whether this frame carries a wake-up reason
// (header 1).
func (f WakeupFrame) IsWakeupReason() bool { return f.Header == headerWakeupReason }

// Reason assembles the 24-bit wake-up reason from the frame's three data
// bytes, little-endian.
func (f WakeupFrame) Reason() uint32 {
	return uint32(f.W0) | uint32(f.W1)<<8 | uint32(f.W2)<<16
}
