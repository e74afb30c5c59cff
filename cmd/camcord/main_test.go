package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/camcord/camcord/internal/camera"
	"github.com/camcord/camcord/internal/config"
	"github.com/camcord/camcord/internal/ipc"
	"github.com/camcord/camcord/internal/media"
	"github.com/camcord/camcord/testutil"
)

// captureDaemonLogs points the daemon's loggers at an in-memory recorder and
// resets the command outcome globals for the duration of one test.
func captureDaemonLogs(t *testing.T) *testutil.LogRecorder {
	t.Helper()
	rec := testutil.NewLogRecorder()
	prevOut, prevErr := outLog, errLog
	prevAction, prevError := lastAction, lastError
	outLog = rec.Logger(logPrefix + " ")
	errLog = rec.Logger(logPrefix + " ERROR: ")
	lastAction, lastError = "", ""
	t.Cleanup(func() {
		outLog, errLog = prevOut, prevErr
		lastAction, lastError = prevAction, prevError
	})
	return rec
}

// newDaemonController builds an opened controller over scripted collaborators,
// the way main wires the real one.
func newDaemonController(t *testing.T) (*camera.Controller, *testutil.FakeStack) {
	t.Helper()
	source := testutil.NewFakeSource(media.StreamInfo{Width: 320, Height: 240, FrameRate: 30, PixelFormat: "yuv420p"})
	source.QueueTimestamps(false, 0.0)
	stack := testutil.NewFakeStack(source)
	ctrl, err := camera.NewController("/dev/video0", camera.Options{
		Mode:    camera.ModeVideo,
		Stack:   stack.Stack(),
		TempDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := ctrl.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = ctrl.Close() })
	return ctrl, stack
}

func TestHandleCommand_RecordStopSave(t *testing.T) {
	rec := captureDaemonLogs(t)
	ctrl, stack := newDaemonController(t)
	cfg := &config.CaptureConfig{OutputDir: t.TempDir()}

	if quit := handleCommand(ipc.CmdRecord, ctrl, cfg, "/dev/video0", false); quit {
		t.Fatal("record must not request shutdown")
	}
	if got := ctrl.Status(); got != camera.StatusRecording {
		t.Fatalf("status after record = %s, want recording", got)
	}
	if !rec.Contains("Recording started") {
		t.Errorf("record start not logged:\n%s", rec.String())
	}

	stack.Source.QueueTimestamps(false, 0.10, 0.14)
	for i := 0; i < 2; i++ {
		if _, err := ctrl.GetVideoFrame(0); err != nil {
			t.Fatalf("pull %d: %v", i, err)
		}
	}

	handleCommand(ipc.CmdStop, ctrl, cfg, "/dev/video0", false)
	if got := ctrl.Status(); got != camera.StatusStopped {
		t.Fatalf("status after stop = %s, want stopped", got)
	}

	handleCommand(ipc.CmdSave, ctrl, cfg, "/dev/video0", false)
	if lastError != "" {
		t.Fatalf("save reported error: %s", lastError)
	}
	if lastAction != string(ipc.CmdSave) {
		t.Errorf("lastAction = %q, want %q", lastAction, ipc.CmdSave)
	}
	if !rec.Contains("Clip saved") {
		t.Errorf("save not logged:\n%s", rec.String())
	}

	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	var clips int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".mp4") {
			clips++
		}
	}
	if clips != 1 {
		t.Errorf("clips in output dir = %d, want 1 (entries: %v)", clips, entries)
	}
}

func TestHandleCommand_SaveWithoutRecordingIsReported(t *testing.T) {
	rec := captureDaemonLogs(t)
	ctrl, _ := newDaemonController(t)
	cfg := &config.CaptureConfig{OutputDir: t.TempDir()}

	handleCommand(ipc.CmdSave, ctrl, cfg, "/dev/video0", false)
	if lastError == "" {
		t.Error("save without a recording should set lastError")
	}
	if !rec.Contains("Save failed") {
		t.Errorf("save failure not logged:\n%s", rec.String())
	}
}

func TestHandleCommand_QuitRequestsShutdown(t *testing.T) {
	rec := captureDaemonLogs(t)
	ctrl, _ := newDaemonController(t)
	cfg := &config.CaptureConfig{OutputDir: t.TempDir()}

	if !handleCommand(ipc.CmdQuit, ctrl, cfg, "/dev/video0", false) {
		t.Fatal("quit should request shutdown")
	}
	if !strings.Contains(rec.LastLine(), "Received command: quit") {
		t.Errorf("last line = %q", rec.LastLine())
	}
}

func TestPublishStatus_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	captureDaemonLogs(t)
	ctrl, _ := newDaemonController(t)

	if err := publishStatus(ctrl, nil); err != nil {
		t.Fatalf("publishStatus: %v", err)
	}

	snap, err := ipc.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if snap.Device != "/dev/video0" {
		t.Errorf("device = %q", snap.Device)
	}
	if !snap.Ready {
		t.Error("opened controller should report ready")
	}
	if snap.Status != string(camera.StatusNotStarted) {
		t.Errorf("status = %q, want not-started", snap.Status)
	}
}

func TestRotateLogIfNeeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.log")

	if err := rotateLogIfNeeded(path, 1024); err != nil {
		t.Fatalf("missing log should be a no-op: %v", err)
	}

	if err := os.WriteFile(path, []byte("under the limit"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := rotateLogIfNeeded(path, 1024); err != nil {
		t.Fatalf("rotate under limit: %v", err)
	}
	if _, err := os.Stat(path + ".old"); !os.IsNotExist(err) {
		t.Fatal("under-limit log must not rotate")
	}

	if err := os.WriteFile(path, []byte(strings.Repeat("x", 2048)), 0644); err != nil {
		t.Fatal(err)
	}
	if err := rotateLogIfNeeded(path, 1024); err != nil {
		t.Fatalf("rotate over limit: %v", err)
	}
	if _, err := os.Stat(path + ".old"); err != nil {
		t.Fatalf("rotated log missing: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("current log should have moved aside")
	}
}
