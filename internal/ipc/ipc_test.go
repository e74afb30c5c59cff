package ipc

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteReadStatus_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	snap := &StatusSnapshot{
		Status:        "recording",
		Mode:          "video",
		Device:        "/dev/video0",
		Ready:         true,
		StreamTime:    12.5,
		RecordingTime: 2.5,
		FrameCount:    75,
		LastAction:    "record",
		Timestamp:     time.Now(),
	}
	if err := WriteStatus(snap); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}

	got, err := ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if got.Status != "recording" || got.Device != "/dev/video0" {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	if got.FrameCount != 75 {
		t.Errorf("frame_count: got %d, want 75", got.FrameCount)
	}
	if !got.Ready {
		t.Error("ready flag lost in round trip")
	}
}

func TestWriteStatus_LeavesNoTempFiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := WriteStatus(&StatusSnapshot{Status: "stopped"}); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(home, ".cache", "camcord"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "status.json" {
			t.Errorf("unexpected file left behind: %s", e.Name())
		}
	}
}

func TestReadCommand_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cmd, err := ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if cmd != "" {
		t.Errorf("expected no command, got %q", cmd)
	}
}

func TestReadCommand_ClearsFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := WriteCommand(CmdRecord); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}

	cmd, err := ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if cmd != CmdRecord {
		t.Errorf("got %q, want %q", cmd, CmdRecord)
	}

	// Second read must see nothing
	cmd, err = ReadCommand()
	if err != nil {
		t.Fatalf("second ReadCommand: %v", err)
	}
	if cmd != "" {
		t.Errorf("command was not cleared, got %q", cmd)
	}
}

func TestReadCommand_IgnoresUnknown(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cmdPath := filepath.Join(home, ".cache", "camcord", "cmd.txt")
	if err := os.MkdirAll(filepath.Dir(cmdPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cmdPath, []byte("self-destruct\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd, err := ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if cmd != "" {
		t.Errorf("unknown command should be dropped, got %q", cmd)
	}
}

func TestWriteCommand_TrimsWhitespace(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := WriteCommand(Command("stop")); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	cmd, err := ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if cmd != CmdStop {
		t.Errorf("got %q, want %q", cmd, CmdStop)
	}
}
