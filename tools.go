package procmgr

import (
	"context"
	"fmt"
)

// Launch spawns a tool preset on sup and returns its pid
func Launch(sup ProcessSupervisor, tool ToolConfig) (int, error) {
	opts, err := tool.SpawnOptions()
	if err != nil {
		return 0, &OpError{Op: OpSpawn, Name: tool.Name, Err: err}
	}
	return sup.Spawn(tool.Command, opts...)
}

// Toggle stops the tool when a process with its name is running and
// launches it otherwise. It reports whether the tool is running afterwards.
// Tool names must be unique among running processes for this to act on the
// intended one.
func Toggle(ctx context.Context, sup ProcessSupervisor, tool ToolConfig) (bool, error) {
	if sup.Exists(ByName(tool.Name)) {
		if _, err := sup.Stop(ctx, ByName(tool.Name)); err != nil {
			return true, fmt.Errorf("stopping %s: %w", tool.Name, err)
		}
		return false, nil
	}

	if _, err := Launch(sup, tool); err != nil {
		return false, err
	}
	return true, nil
}
