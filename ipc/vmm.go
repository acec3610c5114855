package ipc

import (
	"fmt"

	"github.com/open-vlc/vlc/lifecycle"
)

// stopTimeoutSeconds is the grace period requested in an AcrndStop message,
// matching the original's hard-coded { .force = 0, .timeout = 20 }.
const stopTimeoutSeconds = 20

// AcrndManager implements lifecycle.VMMManager against a VM manager
// reachable over a Unix socket, the way send_acrnd_start/send_acrnd_stop
// dialed the acrnd socket on every call.
type AcrndManager struct {
	client *Client
	now    func() int64
}

var _ lifecycle.VMMManager = (*AcrndManager)(nil)

// NewAcrndManager returns an AcrndManager dialing the VM manager's socket
// at path on every Start/Stop call.
func NewAcrndManager(path string, now func() int64) *AcrndManager {
	return &AcrndManager{client: NewClient(path), now: now}
}

// Start asks the VM manager to resume, mirroring send_acrnd_start.
func (m *AcrndManager) Start() error {
	ack, err := m.client.Send(Message{Magic: Magic, MsgID: AcrndResume, Timestamp: m.now()})
	if err != nil {
		return err
	}
	if ack.Err != 0 {
		return fmt.Errorf("ipc: vm manager refused start (err %d)", ack.Err)
	}
	return nil
}

// Stop asks the VM manager to shut its guests down within
// stopTimeoutSeconds, mirroring send_acrnd_stop.
func (m *AcrndManager) Stop() error {
	ack, err := m.client.Send(Message{
		Magic:       Magic,
		MsgID:       AcrndStop,
		Timestamp:   m.now(),
		StopTimeout: stopTimeoutSeconds,
	})
	if err != nil {
		return err
	}
	if ack.Err != 0 {
		return fmt.Errorf("ipc: vm manager refused stop (err %d)", ack.Err)
	}
	return nil
}
