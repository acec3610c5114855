package ipc_test

import (
	"testing"

	"github.com/open-vlc/vlc/ipc"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	want := ipc.Message{
		Magic:       ipc.Magic,
		MsgID:       ipc.RTCTimer,
		Timestamp:   1234567890,
		RTCDeadline: 1234571590,
		RTCVMName:   "sos-vm",
		StopForce:   true,
		StopTimeout: 20,
	}
	got, err := ipc.Unmarshal(ipc.Marshal(want))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestUnmarshalRejectsBadMagic(t *testing.T) {
	buf := ipc.Marshal(ipc.Message{Magic: 0xdeadbeef, MsgID: ipc.Shutdown})
	if _, err := ipc.Unmarshal(buf); err == nil {
		t.Fatal("Unmarshal accepted a message with the wrong magic")
	}
}

func TestUnmarshalRejectsShortBuffer(t *testing.T) {
	if _, err := ipc.Unmarshal([]byte{1, 2, 3}); err == nil {
		t.Fatal("Unmarshal accepted a too-short buffer")
	}
}

func TestNewAckCopiesMsgIDAndTimestamp(t *testing.T) {
	req := ipc.Message{Magic: ipc.Magic, MsgID: ipc.Suspend, Timestamp: 42}
	ack := ipc.NewAck(req)
	if ack.MsgID != req.MsgID || ack.Timestamp != req.Timestamp || ack.Magic != ipc.Magic {
		t.Fatalf("NewAck(%+v) = %+v", req, ack)
	}
}
