package procmgr

import (
	"strconv"
	"time"
)

// State represents the liveness of a managed process
type State int

const (
	// StateUnknown indicates the state could not be determined
	StateUnknown State = iota
	// StateRunning indicates the process has not exited
	StateRunning
	// StateExited indicates the process has exited and been reaped
	StateExited
)

// State string constants
const (
	stateUnknownStr = "unknown"
	stateRunningStr = "running"
	stateExitedStr  = "exited"
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateRunning:
		return stateRunningStr
	case StateExited:
		return stateExitedStr
	default:
		return stateUnknownStr
	}
}

// ProcessInfo is a point-in-time snapshot of a managed process
type ProcessInfo struct {
	// PID is the OS process id, the handle used by every other call
	PID int
	// Name is the caller-supplied label, or Process-<pid>
	Name string
	// State is the liveness observed when the snapshot was taken
	State State
	// Command is the executable and its arguments
	Command []string
	// CreatedAt is when the process was spawned
	CreatedAt time.Time
	// Routing is the output routing fixed at spawn
	Routing Routing
}

// Uptime returns how long the process has existed
func (p ProcessInfo) Uptime() time.Duration {
	if p.CreatedAt.IsZero() {
		return 0
	}
	return time.Since(p.CreatedAt)
}

// Target selects a managed process by pid or by name. When both are set the
// pid wins. Names are not unique; name lookup acts on the first registered
// match.
type Target struct {
	PID  int
	Name string
}

// ByPID targets the process with the given pid
func ByPID(pid int) Target {
	return Target{PID: pid}
}

// ByName targets the first registered process with the given name
func ByName(name string) Target {
	return Target{Name: name}
}

// String describes the target for logs
func (t Target) String() string {
	if t.PID > 0 {
		return "pid " + strconv.Itoa(t.PID)
	}
	return "name " + t.Name
}

// StopResult describes what a Stop call did
type StopResult struct {
	// PID is the resolved target pid, 0 when nothing matched
	PID int
	// Name is the resolved target name
	Name string
	// Found reports whether the target resolved to a registered process
	Found bool
	// Descendants are the pids found in the process tree snapshot
	Descendants []int
	// Forced are the pids that needed SIGKILL after the timeout
	Forced []int
	// Survivors are the pids still running after SIGKILL and the kill grace
	Survivors []int
	// Duration is how long the stop took
	Duration time.Duration
}

// Graceful reports whether every process exited on SIGTERM
func (r StopResult) Graceful() bool {
	return r.Found && len(r.Forced) == 0
}
