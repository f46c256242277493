package procmgr

import (
	"fmt"
	"strings"
)

// OutputMode names a routing preset for captured process output
type OutputMode int

const (
	// OutputDiscard drops every captured line
	OutputDiscard OutputMode = iota
	// OutputConsole writes tagged lines to the supervisor's console
	OutputConsole
	// OutputFile appends tagged lines to the routing file
	OutputFile
	// OutputBoth writes tagged lines to the console and the shared queue.
	// It does not write to the routing file.
	OutputBoth
)

// OutputMode string constants
const (
	outputDiscardStr = "discard"
	outputConsoleStr = "console"
	outputFileStr    = "file"
	outputBothStr    = "both"
)

// String returns the string representation of the mode
func (m OutputMode) String() string {
	switch m {
	case OutputConsole:
		return outputConsoleStr
	case OutputFile:
		return outputFileStr
	case OutputBoth:
		return outputBothStr
	default:
		return outputDiscardStr
	}
}

// ParseOutputMode parses a mode name. The empty string means discard.
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", outputDiscardStr:
		return OutputDiscard, nil
	case outputConsoleStr:
		return OutputConsole, nil
	case outputFileStr:
		return OutputFile, nil
	case outputBothStr:
		return OutputBoth, nil
	default:
		return OutputDiscard, fmt.Errorf("%w: %q", ErrUnknownOutputMode, s)
	}
}

// Routing controls which sinks receive a process's tagged output lines
type Routing struct {
	// Console writes lines to the supervisor's console writer
	Console bool
	// File appends lines to Path
	File bool
	// Queue enqueues lines on the shared output queue
	Queue bool
	// Path is the file sink. It is truncated at spawn for the file and
	// both presets even when File is false.
	Path string

	mode     OutputMode
	fromMode bool
}

// Routing expands the mode into sink flags.
//
//	mode     console file queue
//	discard  no      no   no
//	console  yes     no   no
//	file     no      yes  no
//	both     yes     no   yes
func (m OutputMode) Routing(path string) Routing {
	r := Routing{Path: path, mode: m, fromMode: true}
	switch m {
	case OutputConsole:
		r.Console = true
	case OutputFile:
		r.File = true
	case OutputBoth:
		r.Console = true
		r.Queue = true
	}
	return r
}

// Discards reports whether no sink receives output
func (r Routing) Discards() bool {
	return !r.Console && !r.File && !r.Queue
}

// truncatesFile reports whether the file sink is reset at spawn
func (r Routing) truncatesFile() bool {
	if r.Path == "" {
		return false
	}
	if r.fromMode {
		return r.mode == OutputFile || r.mode == OutputBoth
	}
	return r.File
}

// String describes the routing for logs
func (r Routing) String() string {
	if r.fromMode {
		if r.Path != "" {
			return r.mode.String() + ":" + r.Path
		}
		return r.mode.String()
	}
	var sinks []string
	if r.Console {
		sinks = append(sinks, outputConsoleStr)
	}
	if r.File {
		sinks = append(sinks, outputFileStr+":"+r.Path)
	}
	if r.Queue {
		sinks = append(sinks, "queue")
	}
	if len(sinks) == 0 {
		return outputDiscardStr
	}
	return strings.Join(sinks, "+")
}

func (r Routing) validate() error {
	if r.File && r.Path == "" {
		return ErrNoFilePath
	}
	return nil
}
