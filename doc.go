// Package procmgr supervises external command-line tools for a
// menu-driven control shell without leaving them to run unattended.
//
// The core type is Supervisor, which spawns processes, captures their
// output concurrently and stops whole process trees:
//
//	sup := procmgr.New(procmgr.WithLogger(logger))
//	defer sup.Close(context.Background())
//
//	pid, err := sup.Spawn([]string{"airodump-ng", "wlan0mon"},
//	    procmgr.WithName("Sniffer"),
//	    procmgr.WithOutputMode(procmgr.OutputFile, "/tmp/sniffer.log"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Stop sends SIGTERM to the tree, children first, and escalates to
//	// SIGKILL for anything still running after the timeout.
//	res, err := sup.Stop(ctx, procmgr.ByPID(pid))
//
// # Output Routing
//
// Each process has two reader goroutines, one per stream. Every line is
// tagged "[name] stdout: " or "[name] stderr: " and routed according to the
// Routing fixed at spawn. The OutputMode presets expand as follows:
//
//	mode     console file queue
//	discard  no      no   no
//	console  yes     no   no
//	file     no      yes  no
//	both     yes     no   yes
//
// Routing flags can also be combined directly. Queued lines go to a single
// consumer which hands them to the configured line handler, or logs them.
//
// # Liveness
//
// There is no exit notification. List and Stop drop entries whose process
// has exited, and Exists re-checks the process before answering. The pid is
// the only unique key; names are labels and name lookup acts on the first
// registered match.
//
// # Tool Presets
//
// Config loads supervisor tunables, logging and named ToolConfig presets
// from YAML. Launch and Toggle run presets on any ProcessSupervisor.
package procmgr
