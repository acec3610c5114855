package lifecycle_test

import (
	"sync"
	"testing"

	"github.com/open-vlc/vlc/cbcbus"
	"github.com/open-vlc/vlc/lifecycle"
)

// fakeWriter records every frame written to it, standing in for the real
// character device in these loop-dispatch tests.
type fakeWriter struct {
	mu     sync.Mutex
	frames [][4]byte
}

func (f *fakeWriter) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var frame [4]byte
	copy(frame[:], p)
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeWriter) last() [4]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames[len(f.frames)-1]
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// fakeVMM counts Start/Stop calls and can be told to fail.
type fakeVMM struct {
	mu                 sync.Mutex
	starts, stops      int
	failStart, failStop bool
}

func (m *fakeVMM) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.failStart {
		return errTest
	}
	return nil
}

func (m *fakeVMM) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	if m.failStop {
		return errTest
	}
	return nil
}

type fakeActuator struct {
	poweroffs, reboots, suspends int
}

func (a *fakeActuator) PowerOff() error { a.poweroffs++; return nil }
func (a *fakeActuator) Reboot() error   { a.reboots++; return nil }
func (a *fakeActuator) Suspend() error  { a.suspends++; return nil }

type testErr string

func (e testErr) Error() string { return string(e) }

const errTest = testErr("fake failure")

func TestHeartbeatGracefulShutdownAcceptedEndToEnd(t *testing.T) {
	dev := &fakeWriter{}
	coord := lifecycle.NewCoordinator()
	vmm := &fakeVMM{}
	actuator := &fakeActuator{}
	loop := lifecycle.NewHeartbeatLoop(dev, coord, vmm, actuator)

	// Ignition on.
	coord.FSM.Transit(lifecycle.Alive)
	loop.Tick()
	if got := dev.last(); got != cbcbus.HeartbeatActive {
		t.Fatalf("after Alive tick, last frame = %v, want HeartbeatActive", got)
	}
	if vmm.starts != 1 {
		t.Fatalf("vmm.starts = %d, want 1", vmm.starts)
	}

	// AIOC requests shutdown.
	coord.FSM.Transit(lifecycle.Shutdown)
	loop.Tick() // Shutdown -> ShutdownDelay same tick
	if got := dev.last(); got != cbcbus.HeartbeatShutdownDelay {
		t.Fatalf("after Shutdown tick, last frame = %v, want HeartbeatShutdownDelay", got)
	}
	if vmm.stops != 1 {
		t.Fatalf("vmm.stops = %d, want 1", vmm.stops)
	}

	// VMM agrees to shut down.
	coord.FSM.Transit(lifecycle.AcrndShutdown)
	loop.Tick()
	if got := dev.last(); got != cbcbus.HeartbeatShutdown {
		t.Fatalf("after AcrndShutdown tick, last frame = %v, want HeartbeatShutdown", got)
	}

	// AIOC confirms power can go off.
	coord.FSM.Transit(lifecycle.IocShutdown)
	loop.Tick()
	if actuator.poweroffs != 1 {
		t.Fatalf("actuator.poweroffs = %d, want 1", actuator.poweroffs)
	}
	if got := coord.FSM.Get(); got != lifecycle.Default {
		t.Fatalf("final state = %v, want Default", got)
	}
}

func TestHeartbeatStopRetryExhaustionForcesSuspend(t *testing.T) {
	dev := &fakeWriter{}
	coord := lifecycle.NewCoordinator()
	vmm := &fakeVMM{failStop: true}
	actuator := &fakeActuator{}
	loop := lifecycle.NewHeartbeatLoop(dev, coord, vmm, actuator)

	coord.FSM.Transit(lifecycle.Alive)
	loop.Tick()

	coord.FSM.Transit(lifecycle.Shutdown)
	for i := 0; i < 6; i++ {
		loop.Tick()
	}

	if got := coord.FSM.Get(); got != lifecycle.AcrndSuspend {
		t.Fatalf("final state = %v, want AcrndSuspend after exhausting stop retries", got)
	}
	if vmm.stops < 6 {
		t.Fatalf("vmm.stops = %d, want at least 6 (initial stop attempt plus 5 retries)", vmm.stops)
	}
}

func TestHeartbeatRTCFrameWrittenBeforeSuspend(t *testing.T) {
	dev := &fakeWriter{}
	coord := lifecycle.NewCoordinator()
	actuator := &fakeActuator{}
	loop := lifecycle.NewHeartbeatLoop(dev, coord, nil, actuator)

	value, gran, err := lifecycle.EncodeRTCDelta(3700)
	if err != nil {
		t.Fatalf("EncodeRTCDelta: %v", err)
	}
	coord.LatchRTC(value, gran)

	coord.FSM.Transit(lifecycle.Alive)
	loop.Tick()
	coord.FSM.Transit(lifecycle.AcrndSuspend)
	loop.Tick()
	before := dev.count()

	coord.FSM.Transit(lifecycle.IocShutdown)
	loop.Tick()

	if actuator.suspends != 1 {
		t.Fatalf("actuator.suspends = %d, want 1", actuator.suspends)
	}
	if dev.count() != before+1 {
		t.Fatalf("expected exactly one extra frame (the rtc frame), got %d new frames", dev.count()-before)
	}
	want := cbcbus.NewRTCFrame(value, gran)
	if got := dev.last(); got != want {
		t.Fatalf("rtc frame = %v, want %v", got, want)
	}
}
