package lifecycle

import (
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/open-vlc/vlc/cbcbus"
	"golang.org/x/sys/unix"
)

// Supervisor owns the process's signal handling: SIGPIPE is ignored so that
// a client that closes its socket before reading an ACK cannot kill us, and
// SIGTERM is translated into the correct exit heart-beat before the process
// exits. A Go channel-fed goroutine stands in for the original's
// async-signal-unsafe sigterm_suppress handler, per the Design Notes'
// signal-notified-task guidance.
type Supervisor struct {
	Device FrameWriter
	Jobs   JobInspector
	// Exit is os.Exit by default; tests override it to observe the code
	// without tearing down the test binary.
	Exit func(code int)
}

// NewSupervisor wires a Supervisor against the lifecycle device, using the
// real systemd job inspector and os.Exit.
func NewSupervisor(dev FrameWriter) *Supervisor {
	return &Supervisor{
		Device: dev,
		Jobs:   SystemdJobInspector{},
		Exit:   os.Exit,
	}
}

// Run ignores SIGPIPE and blocks waiting for SIGTERM. On SIGTERM it emits
// the exit heart-beat and calls Exit(0); with the default os.Exit it never
// returns, and with an overridden Exit it returns after that call.
func (s *Supervisor) Run() {
	signal.Ignore(unix.SIGPIPE)

	term := make(chan os.Signal, 1)
	signal.Notify(term, unix.SIGTERM)
	<-term
	s.RunExitSequence()
}

// RunExitSequence picks and writes the exit heart-beat for whatever systemd
// job is pending, then exits. It is exported so tests can trigger the
// SIGTERM behavior directly instead of sending a real signal.
func (s *Supervisor) RunExitSequence() {
	var frame [cbcbus.FrameSize]byte
	switch s.Jobs.PendingJob() {
	case RebootJob:
		frame = cbcbus.HeartbeatReboot
	case PoweroffJob:
		frame = cbcbus.HeartbeatShutdown
	default:
		frame = cbcbus.SuppressFrame(30 * time.Minute)
	}
	if err := s.Device.Write(frame[:]); err != nil {
		log.Printf("lifecycle: exit heart-beat write failed: %v", err)
	}
	s.exit(0)
}

func (s *Supervisor) exit(code int) {
	if s.Exit != nil {
		s.Exit(code)
		return
	}
	os.Exit(code)
}
