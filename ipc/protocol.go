// Package ipc implements the local-socket request/ack protocol the
// coordinator uses to talk to the VM manager and any other clients that
// want to request a shutdown, reboot, suspend, or wake-up RTC timer.
package ipc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic identifies a well-formed message on the wire, guarding against a
// client connecting to the wrong socket.
const Magic uint32 = 0x4d4e4752 // "MNGR"

// MsgID identifies the payload carried by a Message.
type MsgID uint8

const (
	WakeupReason MsgID = iota + 1
	RTCTimer
	Shutdown
	Suspend
	Reboot
	Stop
	AcrndResume
	AcrndStop
)

// VMNameLen bounds the VM name field of an RTCTimer request. The real
// mngr_msg payload union wasn't among the retrieved sources, so this field's
// width is a reconstruction, not a transcription of ACRN's
// MAX_VM_OS_NAME_LEN (32).
const VMNameLen = 16

// Payload field widths, in wire order: err, reason, rtc deadline, rtc vm
// name, stop force flag, stop timeout.
const (
	errWidth         = 4
	reasonWidth      = 4
	rtcDeadlineWidth = 8
	nameWidth        = VMNameLen
	forceWidth       = 1
	timeoutWidth     = 4
	payloadSize      = errWidth + reasonWidth + rtcDeadlineWidth + nameWidth + forceWidth + timeoutWidth

	offErr         = 0
	offReason      = offErr + errWidth
	offRTCDeadline = offReason + reasonWidth
	offName        = offRTCDeadline + rtcDeadlineWidth
	offForce       = offName + nameWidth
	offTimeout     = offForce + forceWidth
)

// wireSize is the fixed size of every Message on the wire: magic + msgid +
// 3 bytes padding + timestamp + the fixed-size payload above.
const wireSize = 4 + 1 + 3 + 8 + payloadSize

// Message is a single fixed-width request or acknowledgement.
type Message struct {
	Magic     uint32
	MsgID     MsgID
	Timestamp int64
	// Err carries a result code: on an inbound Shutdown/Suspend/Reboot
	// request, 0 means the VM manager agreed and non-zero that it refused;
	// on an ack (including AcrndResume/AcrndStop and RTCTimer acks), 0 is
	// success and non-zero a failure.
	Err int32
	// Reason carries the WakeupReason acknowledgement's latched value.
	Reason uint32
	// RTCDeadline and RTCVMName carry an RTCTimer request: the absolute
	// unix time the AIOC should wake the platform, and the requesting
	// VM's name (for logging).
	RTCDeadline int64
	RTCVMName   string
	// StopForce and StopTimeout carry an AcrndStop request.
	StopForce   bool
	StopTimeout uint32
}

// NewAck builds the acknowledgement for req, copying its msgid and
// timestamp, the way every original handler built `ack` from `msg`.
func NewAck(req Message) Message {
	return Message{Magic: Magic, MsgID: req.MsgID, Timestamp: req.Timestamp}
}

// Marshal encodes m into its fixed-width wire form.
func Marshal(m Message) []byte {
	buf := make([]byte, wireSize)
	binary.LittleEndian.PutUint32(buf[0:4], m.Magic)
	buf[4] = byte(m.MsgID)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(m.Timestamp))

	rest := buf[16:]
	binary.LittleEndian.PutUint32(rest[offErr:offErr+errWidth], uint32(m.Err))
	binary.LittleEndian.PutUint32(rest[offReason:offReason+reasonWidth], m.Reason)
	binary.LittleEndian.PutUint64(rest[offRTCDeadline:offRTCDeadline+rtcDeadlineWidth], uint64(m.RTCDeadline))
	name := []byte(m.RTCVMName)
	if len(name) > nameWidth {
		name = name[:nameWidth]
	}
	copy(rest[offName:offName+nameWidth], name)
	if m.StopForce {
		rest[offForce] = 1
	}
	binary.LittleEndian.PutUint32(rest[offTimeout:offTimeout+timeoutWidth], m.StopTimeout)
	return buf
}

// Unmarshal decodes a wire-form message. It returns an error if buf is too
// short or carries the wrong magic.
func Unmarshal(buf []byte) (Message, error) {
	if len(buf) < wireSize {
		return Message{}, fmt.Errorf("ipc: short message (%d of %d bytes)", len(buf), wireSize)
	}
	var m Message
	m.Magic = binary.LittleEndian.Uint32(buf[0:4])
	if m.Magic != Magic {
		return Message{}, fmt.Errorf("ipc: bad magic %#x", m.Magic)
	}
	m.MsgID = MsgID(buf[4])
	m.Timestamp = int64(binary.LittleEndian.Uint64(buf[8:16]))

	rest := buf[16:]
	m.Err = int32(binary.LittleEndian.Uint32(rest[offErr : offErr+errWidth]))
	m.Reason = binary.LittleEndian.Uint32(rest[offReason : offReason+reasonWidth])
	m.RTCDeadline = int64(binary.LittleEndian.Uint64(rest[offRTCDeadline : offRTCDeadline+rtcDeadlineWidth]))
	name := rest[offName : offName+nameWidth]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	m.RTCVMName = string(name)
	m.StopForce = rest[offForce] != 0
	m.StopTimeout = binary.LittleEndian.Uint32(rest[offTimeout : offTimeout+timeoutWidth])
	return m, nil
}
