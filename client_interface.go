package procmgr

import (
	"context"
)

// ProcessSupervisor is the API command sources (menu actions, plugins) use
// to run external tools. *Supervisor implements it; tests can supply their
// own.
type ProcessSupervisor interface {
	// Lifecycle
	Spawn(command []string, opts ...SpawnOption) (int, error)
	Stop(ctx context.Context, target Target, opts ...StopOption) (StopResult, error)
	StopAll(ctx context.Context) error

	// Queries
	List() []ProcessInfo
	Exists(target Target) bool
	Lookup(pid int) (ProcessInfo, bool)
	LookupByName(name string) (ProcessInfo, bool)

	// Wait blocks until the process exits or ctx is done
	Wait(ctx context.Context, pid int) (ProcessInfo, error)
}

var _ ProcessSupervisor = (*Supervisor)(nil)
