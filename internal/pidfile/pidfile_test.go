package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// readPID returns the pid a slot file currently names.
func readPID(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("pid file holds %q, not a pid", string(data))
	}
	return pid
}

func TestNew_ClaimsDaemonSlot(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "camcord.pid")

	pf, err := New(pidPath)
	if err != nil {
		t.Fatalf("claiming a free slot: %v", err)
	}
	defer pf.Remove()

	if got := readPID(t, pidPath); got != os.Getpid() {
		t.Errorf("slot names pid %d, want %d", got, os.Getpid())
	}
}

func TestNew_RefusesWhileDaemonAlive(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "camcord.pid")

	pf, err := New(pidPath)
	if err != nil {
		t.Fatalf("claiming a free slot: %v", err)
	}
	defer pf.Remove()

	// This test process holds the slot, so a second claim must fail.
	if _, err := New(pidPath); err == nil {
		t.Fatal("second daemon instance claimed an occupied slot")
	} else if !strings.Contains(err.Error(), "already running") {
		t.Errorf("unexpected refusal: %v", err)
	}
}

func TestNew_ReclaimsStaleSlot(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "camcord.pid")

	// A crashed daemon leaves a file naming a pid that no longer exists.
	if err := os.WriteFile(pidPath, []byte("99999\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pf, err := New(pidPath)
	if err != nil {
		t.Fatalf("stale slot should be reclaimed: %v", err)
	}
	defer pf.Remove()

	if got := readPID(t, pidPath); got != os.Getpid() {
		t.Errorf("reclaimed slot names pid %d, want %d", got, os.Getpid())
	}
}

func TestRemove_ReleasesSlot(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "camcord.pid")

	pf, err := New(pidPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := pf.Remove(); err != nil {
		t.Errorf("Remove: %v", err)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("pid file survives Remove")
	}
}

func TestRemove_LeavesReclaimedSlotAlone(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "camcord.pid")

	pf, err := New(pidPath)
	if err != nil {
		t.Fatal(err)
	}

	// Another daemon reclaimed the slot; our stale handle must not delete it.
	otherPID := os.Getpid() + 1
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(otherPID)+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := pf.Remove(); err != nil {
		t.Errorf("Remove: %v", err)
	}
	if got := readPID(t, pidPath); got != otherPID {
		t.Errorf("slot names pid %d after foreign Remove, want %d", got, otherPID)
	}
}

func TestGetPIDFilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	want := filepath.Join(home, ".cache", "camcord", "camcord.pid")
	if got := GetPIDFilePath("camcord"); got != want {
		t.Errorf("GetPIDFilePath = %q, want %q", got, want)
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("this process should read as alive")
	}
	if processAlive(99999) {
		t.Error("pid 99999 should read as gone")
	}
}
