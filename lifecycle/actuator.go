package lifecycle

import (
	"bytes"
	"log"
	"os/exec"
	"strings"
)

// PlatformActuator performs the host power transitions the original daemon
// drove with bare system(3) calls. Tests substitute a recorder instead of
// touching the real host.
type PlatformActuator interface {
	PowerOff() error
	Reboot() error
	Suspend() error
}

// SystemdActuator shells out to the host's power commands, the way the original used
// system("shutdown 0"), system("reboot"), and system("systemctl suspend").
type SystemdActuator struct {
	// Run defaults to exec.Command(name, args...).Run but can be
	// overridden in tests that still want to exercise the real codepath
	// without invoking systemctl.
	Run func(name string, args ...string) error
}

// NewSystemdActuator returns a SystemdActuator that really shells out.
func NewSystemdActuator() *SystemdActuator {
	return &SystemdActuator{Run: runCommand}
}

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (a *SystemdActuator) run(name string, args ...string) error {
	if a.Run == nil {
		return runCommand(name, args...)
	}
	return a.Run(name, args...)
}

func (a *SystemdActuator) PowerOff() error {
	log.Println("lifecycle: executing host power-off")
	return a.run("shutdown", "0")
}

func (a *SystemdActuator) Reboot() error {
	log.Println("lifecycle: executing host reboot")
	return a.run("reboot")
}

func (a *SystemdActuator) Suspend() error {
	log.Println("lifecycle: executing host suspend")
	return a.run("systemctl", "suspend")
}

// PendingJob reports whether systemd currently has a reboot or power-off job
// queued, used by the SIGTERM handler to pick the correct exit heart-beat.
type PendingJob int

const (
	NoJob PendingJob = iota
	RebootJob
	PoweroffJob
)

// JobInspector checks systemd's pending job list, matching
// `systemctl list-jobs reboot.target | grep reboot` / `...poweroff.target...`.
type JobInspector interface {
	PendingJob() PendingJob
}

// SystemdJobInspector shells out to systemctl list-jobs.
type SystemdJobInspector struct{}

func (SystemdJobInspector) PendingJob() PendingJob {
	if jobQueued("reboot.target") {
		return RebootJob
	}
	if jobQueued("poweroff.target") {
		return PoweroffJob
	}
	return NoJob
}

func jobQueued(target string) bool {
	out, err := exec.Command("systemctl", "list-jobs", target).CombinedOutput()
	if err != nil {
		return false
	}
	name := strings.TrimSuffix(target, ".target")
	return bytes.Contains(out, []byte(name))
}
