package ipc

import (
	"log"

	"github.com/open-vlc/vlc/lifecycle"
)

// RegisterCoordinatorHandlers wires the five inbound request types the
// coordinator itself serves: a wake-up reason query, an RTC wake-up timer
// request, and the shutdown/suspend/reboot requests a VM manager sends once
// its guests have agreed to go down.
func RegisterCoordinatorHandlers(s *Server, coord *lifecycle.Coordinator, now func() int64) {
	s.Handle(WakeupReason, func(req Message) Message {
		ack := NewAck(req)
		ack.Reason = coord.UpWakeReason()
		return ack
	})

	s.Handle(RTCTimer, func(req Message) Message {
		ack := NewAck(req)
		delta := req.RTCDeadline - now()
		value, gran, err := lifecycle.EncodeRTCDelta(delta)
		if err != nil {
			log.Printf("ipc: rtc request: %v", err)
			ack.Err = -1
			return ack
		}
		log.Printf("ipc: %s requests rtc wakeup at %d", req.RTCVMName, req.RTCDeadline)
		coord.LatchRTC(value, gran)
		return ack
	})

	s.Handle(Shutdown, func(req Message) Message {
		ack := acceptOrDefault(req, coord, lifecycle.AcrndShutdown, "shutdown")
		coord.PostWake()
		return ack
	})

	s.Handle(Suspend, func(req Message) Message {
		ack := acceptOrDefault(req, coord, lifecycle.AcrndSuspend, "suspend")
		coord.PostWake()
		return ack
	})

	s.Handle(Reboot, func(req Message) Message {
		ack := acceptOrDefault(req, coord, lifecycle.AcrndReboot, "reboot")
		coord.PostWake()
		return ack
	})
}

// acceptOrDefault implements the shared shape of handle_shutdown/
// handle_suspend/handle_reboot: a refused request (req.Err != 0) drops the
// FSM back to Default since an incoming wake-up reason will override it
// anyway, otherwise it advances into accepted.
func acceptOrDefault(req Message, coord *lifecycle.Coordinator, accepted lifecycle.State, verb string) Message {
	ack := NewAck(req)
	if req.Err != 0 {
		log.Printf("ipc: vm manager refused to %s", verb)
		coord.FSM.Transit(lifecycle.Default)
		return ack
	}
	log.Printf("ipc: vm manager agreed to %s", verb)
	coord.FSM.Transit(accepted)
	return ack
}

// RegisterStopHandler wires the fallback path used when no VM manager is
// present: a STOP request on the VM-manager-facing socket is acked
// immediately, then re-dispatched to the coordinator's own socket as a
// Shutdown or Suspend request depending on the latched force-S5 preference.
func RegisterStopHandler(vmmServer *Server, localSocketPath string, coord *lifecycle.Coordinator, now func() int64) {
	vmmServer.Handle(AcrndStop, func(req Message) Message {
		ack := NewAck(req)
		go forwardStop(localSocketPath, coord, now)
		return ack
	})
}

func forwardStop(localSocketPath string, coord *lifecycle.Coordinator, now func() int64) {
	id := Suspend
	if coord.ForceS5() {
		id = Shutdown
	}
	client := NewClient(localSocketPath)
	if _, err := client.Send(Message{Magic: Magic, MsgID: id, Timestamp: now()}); err != nil {
		log.Printf("ipc: forwarding stop as local request: %v", err)
	}
}
