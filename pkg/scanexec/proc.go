package scanexec

import "github.com/recontor/recontor/pkg/storage"

// ProcSpec describes one external engine invocation.
type ProcSpec struct {
	Binary  string
	Args    []string
	LogFile string // engine stdout+stderr are redirected here
}

// ProcessController is the capability interface around OS process groups.
// The orchestrator only ever talks to processes through it, so tests run
// against a fake without touching real processes.
type ProcessController interface {
	// Spawn launches the binary as the leader of a new process group
	// with all output redirected to the log file. It returns the
	// {pid, pgid} handle as soon as the process has started.
	Spawn(spec ProcSpec) (storage.ProcessHandle, error)

	// Wait blocks until the spawned process exits. A non-zero exit code
	// is not an error here: the tool finishing is the tool finishing.
	// Wait only errors when the handle is unknown to this controller.
	Wait(handle storage.ProcessHandle) error

	// Signal sends a graceful termination signal to the whole process
	// group.
	Signal(pgid int) error

	// ForceKill forcefully kills the whole process group.
	ForceKill(pgid int) error

	// Alive reports whether any process in the group still exists.
	Alive(pgid int) bool
}
