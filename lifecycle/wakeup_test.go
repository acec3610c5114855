package lifecycle_test

import (
	"testing"

	"github.com/open-vlc/vlc/cbcbus"
	"github.com/open-vlc/vlc/lifecycle"
)

func TestDispatchWakeupFrameBoundaries(t *testing.T) {
	cases := []struct {
		name      string
		from      lifecycle.State
		reason    uint32
		wantState lifecycle.State
		wantS5    bool
	}{
		// IocShutdown is not reachable from Default, so the all-clear frame
		// arrives while the FSM is already in Shutdown.
		{name: "all clear", from: lifecycle.Shutdown, reason: 0x000000, wantState: lifecycle.IocShutdown},
		{name: "S3 preferred", reason: 0x800000, wantState: lifecycle.Shutdown, wantS5: false},
		{name: "S5 preferred", reason: 0xC00000, wantState: lifecycle.Shutdown, wantS5: true},
		{name: "real wake source", reason: 0x000001, wantState: lifecycle.Alive},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			coord := lifecycle.NewCoordinator()
			coord.FSM.Transit(c.from)
			frame := cbcbus.WakeupFrame{
				Header: 1,
				W0:     byte(c.reason),
				W1:     byte(c.reason >> 8),
				W2:     byte(c.reason >> 16),
			}
			lifecycle.DispatchWakeupFrame(frame, coord)
			if got := coord.FSM.Get(); got != c.wantState {
				t.Errorf("state = %v, want %v", got, c.wantState)
			}
			if c.wantState == lifecycle.Shutdown {
				if got := coord.ForceS5(); got != c.wantS5 {
					t.Errorf("ForceS5() = %v, want %v", got, c.wantS5)
				}
			}
		})
	}
}

func TestDispatchWakeupFrameIgnoresLogicMode(t *testing.T) {
	coord := lifecycle.NewCoordinator()
	lifecycle.DispatchWakeupFrame(cbcbus.WakeupFrame{Header: 6, W0: 0xFF}, coord)
	if got := coord.FSM.Get(); got != lifecycle.Default {
		t.Errorf("logic-mode frame mutated state to %v", got)
	}
}
