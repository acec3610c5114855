package lifecycle

import (
	"log"

	"github.com/open-vlc/vlc/cbcbus"
)

// wakeupWord is the 24-bit field carried in a wake-up-reason frame; bits 22
// and 23 together mark a shutdown-class reason, and bit 22 alone tells the
// IOC mediator that a full S5 power-off is preferred over suspend.
const (
	wakeupS5PreferredBit uint32 = 1 << 22
	wakeupSxMask                = 3 << 22
)

// RunWakeupDecoder reads wake-up frames off dev forever, driving the FSM and
// waking the heart-beat loop on every wake-up-reason frame. It is meant to
// run in its own goroutine for the lifetime of the process and never
// returns; reads that come back short or fail are skipped.
func RunWakeupDecoder(dev *cbcbus.Device, c *Coordinator) {
	var buf [cbcbus.FrameSize]byte
	for {
		n := dev.Read(buf[:])
		if n != cbcbus.FrameSize {
			continue
		}
		frame, err := cbcbus.ParseWakeupFrame(buf[:])
		if err != nil {
			log.Printf("lifecycle: wakeup decode: %v", err)
			continue
		}
		DispatchWakeupFrame(frame, c)
	}
}

// DispatchWakeupFrame applies one already-decoded wake-up frame to c: it
// derives the FSM transition and the force-S5 latch per the wake-up-reason
// rules, or does nothing for a logic-mode frame. It is exported so tests can
// drive it directly with literal frames instead of going through a real or
// fake device and RunWakeupDecoder's read loop.
func DispatchWakeupFrame(frame cbcbus.WakeupFrame, c *Coordinator) {
	if frame.IsLogicMode() {
		return
	}
	if !frame.IsWakeupReason() {
		log.Printf("lifecycle: received wrong wakeup reason (header %d)", frame.Header)
		return
	}

	reason := frame.Reason()
	c.SetWakeReason(reason)

	switch {
	case reason == 0:
		c.FSM.Transit(IocShutdown)
	case reason&^wakeupSxMask == 0:
		c.FSM.Transit(Shutdown)
		c.SetForceS5(reason&wakeupS5PreferredBit != 0)
	default:
		c.FSM.Transit(Alive)
	}
	c.PostWake()
}
