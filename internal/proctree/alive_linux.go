//go:build linux

package proctree

import (
	"bytes"
	"os"
	"strconv"
)

// Alive reports whether pid names a running process. Zombies count as
// exited: they can no longer run and only wait to be reaped.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	// The state field follows the parenthesised command name, which may
	// itself contain spaces or parentheses.
	i := bytes.LastIndexByte(data, ')')
	if i < 0 || i+2 >= len(data) {
		return false
	}
	switch data[i+2] {
	case 'Z', 'X', 'x':
		return false
	default:
		return true
	}
}
