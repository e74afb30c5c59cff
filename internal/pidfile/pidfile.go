// Package pidfile pins the capture daemon to a single running instance. The
// pid file lives under ~/.cache/camcord; a stale file left by a crashed
// daemon is reclaimed automatically once its process is gone.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile is one claimed daemon slot. Remove releases it on shutdown.
type PIDFile struct {
	path string
	pid  int
}

// New claims the daemon slot at path by writing the current pid. It fails
// when the file already names a live process; a stale entry is removed and
// the slot claimed.
func New(path string) (*PIDFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create PID directory: %w", err)
	}

	if data, err := os.ReadFile(path); err == nil {
		pidStr := strings.TrimSpace(string(data))
		if existingPID, err := strconv.Atoi(pidStr); err == nil {
			if processAlive(existingPID) {
				return nil, fmt.Errorf("another instance is already running (PID %d)", existingPID)
			}
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("failed to remove stale PID file: %w", err)
			}
		}
	}

	currentPID := os.Getpid()
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", currentPID)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}

	return &PIDFile{
		path: path,
		pid:  currentPID,
	}, nil
}

// Remove releases the slot. It only deletes the file while it still names
// this process, so a newer daemon that reclaimed the slot is left alone.
func (p *PIDFile) Remove() error {
	if p == nil {
		return nil
	}

	if data, err := os.ReadFile(p.path); err == nil {
		pidStr := strings.TrimSpace(string(data))
		if pid, err := strconv.Atoi(pidStr); err == nil && pid == p.pid {
			return os.Remove(p.path)
		}
	}

	return nil
}

// processAlive probes pid with signal 0. EPERM counts as alive: the process
// exists even though we may not signal it.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix FindProcess always succeeds, so the probe does the real work.
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == syscall.ESRCH {
		return false
	}
	if err == syscall.EPERM {
		return true
	}
	return false
}

// GetPIDFilePath returns the pid file path for the named binary, under the
// same ~/.cache/camcord directory the command and status files use.
func GetPIDFilePath(appName string) string {
	homeDir := os.Getenv("HOME")
	return filepath.Join(homeDir, ".cache", "camcord", appName+".pid")
}
