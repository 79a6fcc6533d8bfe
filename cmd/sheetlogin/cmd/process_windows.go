//go:build windows

package cmd

import (
	"os"

	"golang.org/x/sys/windows"
)

// stillActive is the STILL_ACTIVE exit code of a running process.
const stillActive = 259

// gracefulSignals returns the signals that stop the server cleanly.
// Windows only delivers os.Interrupt (CTRL_C_EVENT) reliably.
func gracefulSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// processIsAlive opens a query handle on the PID and checks that the
// process has no exit code yet.
func processIsAlive(proc *os.Process) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(proc.Pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	return exitCode == stillActive
}

// sendGracefulStop terminates the process. There is no SIGTERM on Windows,
// so the server's deferred cleanup does not run and the PID file is removed
// by the stop command instead.
func sendGracefulStop(proc *os.Process) error {
	return proc.Kill()
}
