//go:build windows

package lock

import (
	"os"
	"syscall"
)

// IsRunning reports the recorded PID and whether that process is alive.
// On Windows, FindProcess opens a handle and fails for exited processes.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	defer proc.Release()
	err = proc.Signal(syscall.Signal(0))
	return pid, err == nil
}
