//go:build unix

package scanexec

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/recontor/recontor/pkg/storage"
)

// OSProcessController is the real ProcessController backed by exec.Cmd
// and process-group signals.
type OSProcessController struct {
	mu   sync.Mutex
	cmds map[int]*exec.Cmd // pid -> running command
}

// NewOSProcessController creates a controller for real engine processes.
func NewOSProcessController() *OSProcessController {
	return &OSProcessController{cmds: make(map[int]*exec.Cmd)}
}

func newDefaultController() ProcessController {
	return NewOSProcessController()
}

// Spawn launches the binary as a new process-group leader with output
// redirected to the log file.
func (c *OSProcessController) Spawn(spec ProcSpec) (storage.ProcessHandle, error) {
	logFile, err := os.OpenFile(spec.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return storage.ProcessHandle{}, fmt.Errorf("open log file: %w", err)
	}

	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return storage.ProcessHandle{}, fmt.Errorf("start engine %s: %w", spec.Binary, err)
	}
	// The child's descriptor is inherited; ours can go.
	_ = logFile.Close()

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		// Setpgid makes the child its own group leader, so the group id
		// equals the pid when the lookup races with a fast exit.
		pgid = pid
	}

	c.mu.Lock()
	c.cmds[pid] = cmd
	c.mu.Unlock()

	return storage.ProcessHandle{PID: pid, PGID: pgid}, nil
}

// Wait blocks until the process exits and releases the handle.
func (c *OSProcessController) Wait(handle storage.ProcessHandle) error {
	c.mu.Lock()
	cmd, ok := c.cmds[handle.PID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown process handle pid=%d", handle.PID)
	}

	// Exit codes are irrelevant: a failing tool still produced output.
	_ = cmd.Wait()

	c.mu.Lock()
	delete(c.cmds, handle.PID)
	c.mu.Unlock()
	return nil
}

// Signal sends SIGTERM to the whole process group.
func (c *OSProcessController) Signal(pgid int) error {
	return syscall.Kill(-pgid, syscall.SIGTERM)
}

// ForceKill sends SIGKILL to the whole process group.
func (c *OSProcessController) ForceKill(pgid int) error {
	return syscall.Kill(-pgid, syscall.SIGKILL)
}

// Alive reports whether the process group still exists.
func (c *OSProcessController) Alive(pgid int) bool {
	// Signal 0 probes for existence without delivering anything.
	return syscall.Kill(-pgid, syscall.Signal(0)) == nil
}
