// Package proctree enumerates and signals OS process trees.
package proctree

import (
	"errors"
	"fmt"

	ps "github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"
)

// Descendants returns the pids of every process transitively forked by pid,
// parents before children. The result is a point-in-time snapshot: processes
// forked after the scan are not included.
func Descendants(pid int) ([]int, error) {
	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	children := make(map[int][]int, len(procs))
	for _, p := range procs {
		children[p.PPid()] = append(children[p.PPid()], p.Pid())
	}

	var out []int
	seen := map[int]struct{}{pid: {}}
	queue := []int{pid}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range children[parent] {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out, nil
}

// Signal delivers sig to pid. It reports false without error when the
// process no longer exists.
func Signal(pid int, sig unix.Signal) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid pid %d", pid)
	}
	err := unix.Kill(pid, sig)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	default:
		return false, err
	}
}

// AliveAny filters pids down to those still alive
func AliveAny(pids []int) []int {
	var out []int
	for _, pid := range pids {
		if Alive(pid) {
			out = append(out, pid)
		}
	}
	return out
}
