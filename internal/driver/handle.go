package driver

import (
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// Handle identifies a running proxy process. A nil *Handle means no proxy.
type Handle struct {
	PID      int       `json:"pid"`
	Launcher int       `json:"launcher_pid,omitempty"`
	Started  time.Time `json:"started"`
}

// String returns the PID as text, "none" for a nil handle.
func (h *Handle) String() string {
	if h == nil {
		return "none"
	}
	return strconv.Itoa(h.PID)
}

// Alive reports whether the process still exists. A child that already
// exited is reaped first so a zombie does not count as alive.
func (h *Handle) Alive() bool {
	if h == nil || h.PID <= 0 {
		return false
	}
	if exited, _, err := h.Reap(); err == nil && exited {
		return false
	}
	return procs.Signal0(h.PID) == nil
}

// Reap collects the exit status if the process is our child and has exited.
// It never blocks. Non-children return unix.ECHILD.
func (h *Handle) Reap() (exited bool, status int, err error) {
	if h == nil || h.PID <= 0 {
		return false, 0, unix.ECHILD
	}
	return procs.Wait(h.PID)
}

// ProcessTable abstracts process signalling and reaping
type ProcessTable interface {
	// Signal0 probes the process; nil or EPERM means it exists.
	Signal0(pid int) error

	// Wait is a non-blocking wait4 on pid.
	Wait(pid int) (exited bool, status int, err error)
}

// procs is the process table (can be replaced for testing)
var procs ProcessTable = unixProcesses{}

// SetProcessTable allows tests to inject a fake process table
func SetProcessTable(p ProcessTable) {
	procs = p
}

// ResetProcessTable restores the real process table
func ResetProcessTable() {
	procs = unixProcesses{}
}

type unixProcesses struct{}

func (unixProcesses) Signal0(pid int) error {
	err := unix.Kill(pid, 0)
	if err == unix.EPERM {
		return nil
	}
	return err
}

func (unixProcesses) Wait(pid int) (bool, int, error) {
	var ws unix.WaitStatus
	got, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
	if err != nil {
		return false, 0, err
	}
	if got == 0 {
		return false, 0, nil
	}
	if ws.Signaled() {
		return true, 128 + int(ws.Signal()), nil
	}
	return true, ws.ExitStatus(), nil
}

// ReapOrphans collects every exited child without blocking and returns
// how many were reaped. Needed when running as PID 1, where daemonized
// proxies that exit are re-parented to us.
func ReapOrphans() int {
	n := 0
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return n
		}
		n++
	}
}
