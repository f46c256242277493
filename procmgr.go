package procmgr

import (
	"time"
)

// Supervisor defaults
const (
	// DefaultStopTimeout is the graceful termination budget shared by a
	// target and its descendants before escalating to SIGKILL
	DefaultStopTimeout = 2 * time.Second

	// DefaultKillGrace is how long Stop waits for confirmation after SIGKILL
	DefaultKillGrace = 500 * time.Millisecond

	// DefaultPollInterval is the interval between liveness probes while
	// waiting for terminated processes to exit
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultQueueSize is the capacity of the shared output queue
	DefaultQueueSize = 256

	// DefaultConcurrency is the maximum number of concurrent stops in StopAll
	DefaultConcurrency = 10

	// DefaultReaderGrace is the grace period given to output readers on Close
	DefaultReaderGrace = 100 * time.Millisecond
)

// Stream names used when tagging captured output
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode = 0o755

	// FileMode is the default mode for created files
	FileMode = 0o644
)

// Operation represents a supervisor operation type
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpSpawn starts a new managed process
	OpSpawn
	// OpStop terminates a managed process and its descendants
	OpStop
	// OpWait blocks until a managed process exits
	OpWait
	// OpFollow tails a file sink
	OpFollow
	// OpConfig loads or saves configuration
	OpConfig
)

// Operation string constants
const (
	opUnknownStr = "unknown"
	opSpawnStr   = "spawn"
	opStopStr    = "stop"
	opWaitStr    = "wait"
	opFollowStr  = "follow"
	opConfigStr  = "config"
)

// String returns the string representation of an Operation
func (op Operation) String() string {
	switch op {
	case OpSpawn:
		return opSpawnStr
	case OpStop:
		return opStopStr
	case OpWait:
		return opWaitStr
	case OpFollow:
		return opFollowStr
	case OpConfig:
		return opConfigStr
	default:
		return opUnknownStr
	}
}
