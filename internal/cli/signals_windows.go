//go:build windows

package cli

import "os"

type signalAction int

const (
	actionNone signalAction = iota
	actionEnable
	actionDisable
)

// Windows has no user-defined signals; runtime toggling is unavailable.
func notifySignals() []os.Signal {
	return nil
}

func actionForSignal(os.Signal) signalAction {
	return actionNone
}
