package lifecycle

import (
	"log"
	"time"

	"github.com/open-vlc/vlc/cbcbus"
)

// retryCount is how many consecutive ticks the heart-beat loop keeps
// re-trying a VMM start/stop request before giving up.
const retryCount = 5

// VMMManager is the outbound half of the IPC conversation with the VM
// manager: a short-lived request/ack round trip per call. A nil VMMManager
// means no VMM is present on this platform, and start/stop are treated as
// always succeeding (there's nothing to wait for).
type VMMManager interface {
	Start() error
	Stop() error
}

// FrameWriter is the one cbcbus.Device method the heart-beat loop actually
// needs; tests substitute an in-memory recorder instead of a real device.
type FrameWriter interface {
	Write(payload []byte) error
}

// HeartbeatLoop owns the one-tick-per-second heart-beat emitter (C3): it
// reads the FSM state, drives the VMM start/stop retries, dispatches the
// platform actuator on the IocShutdown edge, and writes the matching
// heart-beat frame to dev. It never returns.
type HeartbeatLoop struct {
	Device   FrameWriter
	Coord    *Coordinator
	VMM      VMMManager
	Actuator PlatformActuator
	Period   time.Duration

	lastState   State
	startRetry  int
	stopRetry   int
	defaultTick int
}

// NewHeartbeatLoop wires a HeartbeatLoop with the standard one-second tick.
func NewHeartbeatLoop(dev FrameWriter, c *Coordinator, vmm VMMManager, actuator PlatformActuator) *HeartbeatLoop {
	return &HeartbeatLoop{
		Device:    dev,
		Coord:     c,
		VMM:       vmm,
		Actuator:  actuator,
		Period:    time.Second,
		lastState: Default,
	}
}

// Run sends the init heart-beat once and then dispatches forever, one tick
// per Period unless PostWake fires early.
func (h *HeartbeatLoop) Run() {
	if err := h.Device.Write(cbcbus.HeartbeatInit[:]); err != nil {
		log.Printf("lifecycle: send heartbeat init: %v", err)
	}

	for {
		h.Tick()
		deadline := time.Now().Add(h.Period)
		h.Coord.WaitWake(deadline)
	}
}

// Tick runs exactly one dispatch cycle. It is exported so tests can drive
// it directly without sleeping through Run's one-second cadence.
func (h *HeartbeatLoop) Tick() {
	curState := h.Coord.FSM.Get()
	var heartbeat *[cbcbus.FrameSize]byte

	switch curState {
	case Default:
		if h.lastState != Default {
			h.defaultTick = 0
		}
		if h.defaultTick > 0 {
			heartbeat = &cbcbus.HeartbeatInit
		}
		h.defaultTick++
		h.startRetry = 0

	case Alive:
		if h.lastState != Alive {
			h.Coord.LatchUpWakeReason(h.Coord.WakeReason())
		}
		if h.lastState != Alive || h.startRetry > 0 {
			if h.vmmStart() != nil {
				if h.startRetry == 0 {
					h.startRetry = retryCount
				} else {
					h.startRetry--
				}
			} else {
				h.startRetry = 0
			}
		}
		heartbeat = &cbcbus.HeartbeatActive

	case Shutdown:
		prev := h.Coord.FSM.Transit(ShutdownDelay)
		if prev != Shutdown { // lost the race, someone else already moved us on
			h.lastState = curState
			return
		}
		curState = ShutdownDelay
		if h.vmmStop() != nil {
			h.stopRetry = retryCount
		} else {
			h.stopRetry = 0
		}
		fallthrough

	case ShutdownDelay:
		if h.stopRetry > 0 {
			if h.vmmStop() != nil {
				h.stopRetry--
				if h.stopRetry == 0 {
					log.Println("lifecycle: no one handled our stop request, assuming suspend")
					h.Coord.FSM.Transit(AcrndSuspend)
					h.lastState = ShutdownDelay
					return
				}
			} else {
				h.stopRetry = 0
			}
		}
		heartbeat = &cbcbus.HeartbeatShutdownDelay

	case AcrndShutdown:
		heartbeat = &cbcbus.HeartbeatShutdown

	case AcrndReboot:
		heartbeat = &cbcbus.HeartbeatReboot

	case AcrndSuspend:
		heartbeat = &cbcbus.HeartbeatS3

	case IocShutdown:
		h.dispatchExit()
		h.Coord.FSM.Transit(Default)
		h.Coord.ClearUpWakeReason()
	}

	if heartbeat != nil {
		if err := h.Device.Write(heartbeat[:]); err != nil {
			log.Printf("lifecycle: send heartbeat: %v", err)
		}
	}
	h.lastState = curState
}

// dispatchExit runs the platform action matching the state we're exiting
// IocShutdown from, dispatched on the *previous* tick's state exactly like
// the original.
func (h *HeartbeatLoop) dispatchExit() {
	switch h.lastState {
	case AcrndShutdown:
		if err := h.Actuator.PowerOff(); err != nil {
			log.Printf("lifecycle: power-off: %v", err)
		}
	case AcrndReboot:
		if err := h.Actuator.Reboot(); err != nil {
			log.Printf("lifecycle: reboot: %v", err)
		}
	case AcrndSuspend:
		if value, gran, ok := h.Coord.TakeRTC(); ok {
			frame := cbcbus.NewRTCFrame(value, gran)
			if err := h.Device.Write(frame[:]); err != nil {
				log.Printf("lifecycle: send rtc heartbeat: %v", err)
			}
		}
		if err := h.Actuator.Suspend(); err != nil {
			log.Printf("lifecycle: suspend: %v", err)
		}
	}
}

func (h *HeartbeatLoop) vmmStart() error {
	if h.VMM == nil {
		return nil
	}
	return h.VMM.Start()
}

func (h *HeartbeatLoop) vmmStop() error {
	if h.VMM == nil {
		return nil
	}
	return h.VMM.Stop()
}
