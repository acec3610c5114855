// Command vlc is the vehicle-bus lifecycle coordinator daemon: it mediates
// power-state transitions between the AIOC, reached over /dev/cbc-lifecycle,
// and whatever VM manager runs on this platform, reached over a local Unix
// socket.
package main

import (
	"log"
	"os"
	"time"

	"github.com/open-vlc/vlc/cbcbus"
	"github.com/open-vlc/vlc/config"
	"github.com/open-vlc/vlc/ipc"
	"github.com/open-vlc/vlc/lifecycle"
)

const (
	lifecycleDevice = "/dev/cbc-lifecycle"
	localSocket     = "/run/vlc/lcs.socket"
	vmmSocket       = "/run/vlc/vmmd.socket"
)

func main() {
	os.Exit(run())
}

func run() int {
	dev, err := cbcbus.Open(lifecycleDevice)
	if err != nil {
		log.Printf("vlc: cannot open %s: %v", lifecycleDevice, err)
		return 1
	}
	defer dev.Close()

	coord := lifecycle.NewCoordinator()
	actuator := lifecycle.NewSystemdActuator()
	now := func() int64 { return time.Now().Unix() }

	supervisor := lifecycle.NewSupervisor(dev)
	go supervisor.Run()

	localServer := ipc.NewServer(localSocket)
	ipc.RegisterCoordinatorHandlers(localServer, coord, now)
	if err := localServer.Listen(); err != nil {
		log.Printf("vlc: cannot open %s: %v", localSocket, err)
		return 1
	}
	go localServer.Serve()

	hasVMM, err := config.DetectVMM(config.DefaultMatchPath)
	if err != nil {
		log.Printf("vlc: match file: %v", err)
	}

	var vmm lifecycle.VMMManager
	if hasVMM {
		vmm = ipc.NewAcrndManager(vmmSocket, now)
	} else {
		vmmServer := ipc.NewServer(vmmSocket)
		ipc.RegisterStopHandler(vmmServer, localSocket, coord, now)
		if err := vmmServer.Listen(); err != nil {
			log.Printf("vlc: cannot open %s: %v", vmmSocket, err)
			return 1
		}
		go vmmServer.Serve()
	}

	go lifecycle.RunWakeupDecoder(dev, coord)

	loop := lifecycle.NewHeartbeatLoop(dev, coord, vmm, actuator)
	loop.Run()
	return 0
}
