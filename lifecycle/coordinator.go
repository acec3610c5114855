package lifecycle

import (
	"sync/atomic"
	"time"
)

// Coordinator is the single explicitly-passed record holding everything the
// original daemon kept as file-scope globals: the FSM, the wake-event
// semaphore, and the single-writer/single-reader latches shared between the
// wake-reason decoder, the IPC server, and the heart-beat emitter.
//
// Every latch here has exactly one writer goroutine and at most one reader
// goroutine, so a plain atomic load/store gives the acquire/release
// semantics §5 asks for without a mutex.
type Coordinator struct {
	FSM *FSM

	wake chan struct{}

	wakeReason   atomic.Uint32 // written by the wake-reason decoder
	upWakeReason atomic.Uint32 // written by the heart-beat emitter, read by the IPC server
	forceS5      atomic.Bool   // written by the wake-reason decoder, read by the STOP fallback handler
	rtcPending   atomic.Bool   // written by the IPC server, cleared by the heart-beat emitter
	rtcFrame     atomic.Uint32 // packed (value<<8 | granularity), written by the IPC server
}

// NewCoordinator returns a Coordinator with a fresh FSM in the Default
// state.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		FSM:  NewFSM(),
		wake: make(chan struct{}, 1),
	}
}

// PostWake wakes the heart-beat loop immediately instead of waiting out its
// one-second deadline, mirroring sem_post(&event_sema).
func (c *Coordinator) PostWake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// WaitWake blocks until either PostWake is called or deadline passes,
// mirroring sem_timedwait(&event_sema, &ts). It returns true if woken early.
func (c *Coordinator) WaitWake(deadline time.Time) bool {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-c.wake:
		return true
	case <-timer.C:
		return false
	}
}

// SetWakeReason records the most recently decoded 24-bit wake-up reason.
func (c *Coordinator) SetWakeReason(reason uint32) { c.wakeReason.Store(reason) }

// WakeReason returns the most recently decoded wake-up reason.
func (c *Coordinator) WakeReason() uint32 { return c.wakeReason.Load() }

// LatchUpWakeReason records reason as the up-wake-reason, reported to IPC
// clients until the next →Alive edge or S3 return to Default.
func (c *Coordinator) LatchUpWakeReason(reason uint32) { c.upWakeReason.Store(reason) }

// ClearUpWakeReason resets the up-wake-reason, on the S3 return-to-Default
// path.
func (c *Coordinator) ClearUpWakeReason() { c.upWakeReason.Store(0) }

// UpWakeReason returns the latched up-wake-reason, for the WAKEUP_REASON IPC
// handler.
func (c *Coordinator) UpWakeReason() uint32 { return c.upWakeReason.Load() }

// SetForceS5 latches whether the AIOC indicated an S5 (full power-off)
// preference on the most recent Shutdown-inducing wake-up reason.
func (c *Coordinator) SetForceS5(v bool) { c.forceS5.Store(v) }

// ForceS5 reports the latched S5 preference.
func (c *Coordinator) ForceS5() bool { return c.forceS5.Load() }

// LatchRTC records an encoded RTC wake-up timer, to be emitted once as an
// Rtc heart-beat frame.
func (c *Coordinator) LatchRTC(value uint16, granularity uint8) {
	c.rtcFrame.Store(uint32(value)<<8 | uint32(granularity))
	c.rtcPending.Store(true)
}

// TakeRTC clears and returns the pending RTC latch, if any. ok is false if
// no RTC timer is pending.
func (c *Coordinator) TakeRTC() (value uint16, granularity uint8, ok bool) {
	if !c.rtcPending.CompareAndSwap(true, false) {
		return 0, 0, false
	}
	packed := c.rtcFrame.Load()
	return uint16(packed >> 8), uint8(packed & 0xFF), true
}
