//go:build !windows

package cli

import (
	"os"
	"syscall"
)

type signalAction int

const (
	actionNone signalAction = iota
	actionEnable
	actionDisable
)

// notifySignals lists the runtime toggle signals: SIGUSR1 enables change
// notifications, SIGUSR2 disables them.
func notifySignals() []os.Signal {
	return []os.Signal{syscall.SIGUSR1, syscall.SIGUSR2}
}

func actionForSignal(sig os.Signal) signalAction {
	switch sig {
	case syscall.SIGUSR1:
		return actionEnable
	case syscall.SIGUSR2:
		return actionDisable
	default:
		return actionNone
	}
}
