// Package lock guards the review state directory with a PID file so two
// interactive front-ends never mutate the same session.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileName is the lock file created inside the state directory.
const FileName = "vita.pid"

// ErrHeld is returned by Acquire when another live process owns the lock.
var ErrHeld = errors.New("review session in use by another process")

// PIDFile records which process owns the review session.
type PIDFile struct {
	Path string
}

// New returns the lock for stateDir.
func New(stateDir string) *PIDFile {
	return &PIDFile{Path: filepath.Join(stateDir, FileName)}
}

// Acquire claims the lock for the current process. A file left behind by a
// dead process is taken over.
func (p *PIDFile) Acquire() error {
	if pid, running := p.IsRunning(); running && pid != os.Getpid() {
		return fmt.Errorf("%w (pid %d)", ErrHeld, pid)
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	return p.WritePID(os.Getpid())
}

// Release removes the lock if the current process owns it.
func (p *PIDFile) Release() error {
	pid, err := p.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return os.Remove(p.Path)
}

// WritePID writes the given PID to the file.
func (p *PIDFile) WritePID(pid int) error {
	return os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid lock file content: %w", err)
	}
	return pid, nil
}

// Holder reports the PID of a live process other than this one that holds
// the lock, or 0.
func (p *PIDFile) Holder() int {
	pid, running := p.IsRunning()
	if !running || pid == os.Getpid() {
		return 0
	}
	return pid
}
