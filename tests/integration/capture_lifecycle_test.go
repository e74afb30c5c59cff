package integration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/camcord/camcord/internal/camera"
	"github.com/camcord/camcord/internal/fileutil"
	"github.com/camcord/camcord/internal/ipc"
	"github.com/camcord/camcord/internal/media"
	"github.com/camcord/camcord/testutil"
)

func newController(t *testing.T, stack *testutil.FakeStack, mic media.Microphone) *camera.Controller {
	t.Helper()
	ctrl, err := camera.NewController("/dev/video0", camera.Options{
		Mode:       camera.ModeVideo,
		Stack:      stack.Stack(),
		Microphone: mic,
		TempDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return ctrl
}

// TestCommandDrivenLifecycle drives a full record/stop/save cycle through the
// command file interface, the way the daemon loop consumes it.
func TestCommandDrivenLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	outputDir := t.TempDir()

	source := testutil.NewFakeSource(media.StreamInfo{Width: 320, Height: 240, FrameRate: 30, PixelFormat: "yuv420p"})
	source.QueueTimestamps(false, 1.00, 1.03, 1.06, 1.09)
	stack := testutil.NewFakeStack(source)
	ctrl := newController(t, stack, nil)

	if err := ctrl.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ctrl.Close()

	// Apply commands the way the daemon's handler maps them
	apply := func(cmd ipc.Command) error {
		switch cmd {
		case ipc.CmdRecord:
			return ctrl.Record(false)
		case ipc.CmdStop:
			return ctrl.Stop()
		case ipc.CmdSave:
			path := fileutil.UniquePath(filepath.Join(outputDir, fileutil.DefaultClipName(ctrl.Device(), time.Now())))
			_, err := ctrl.Save(path)
			return err
		}
		t.Fatalf("unexpected command %q", cmd)
		return nil
	}

	steps := []struct {
		cmd        ipc.Command
		pulls      int
		wantStatus camera.Status
	}{
		{ipc.CmdRecord, 3, camera.StatusRecording},
		{ipc.CmdStop, 0, camera.StatusStopped},
		{ipc.CmdSave, 0, camera.StatusStopped},
	}

	for _, step := range steps {
		if err := ipc.WriteCommand(step.cmd); err != nil {
			t.Fatalf("WriteCommand(%s): %v", step.cmd, err)
		}
		cmd, err := ipc.ReadCommand()
		if err != nil {
			t.Fatalf("ReadCommand: %v", err)
		}
		if cmd != step.cmd {
			t.Fatalf("command round trip: got %q, want %q", cmd, step.cmd)
		}
		if err := apply(cmd); err != nil {
			t.Fatalf("apply %s: %v", cmd, err)
		}
		for i := 0; i < step.pulls; i++ {
			if _, err := ctrl.GetVideoFrame(0); err != nil {
				t.Fatalf("GetVideoFrame: %v", err)
			}
		}
		if got := ctrl.Status(); got != step.wantStatus {
			t.Errorf("after %s: status = %s, want %s", step.cmd, got, step.wantStatus)
		}
	}

	clip := ctrl.LastClip()
	if clip == "" {
		t.Fatal("no clip recorded")
	}
	info, err := os.Stat(clip)
	if err != nil {
		t.Fatalf("saved clip missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("saved clip is empty")
	}

	// Sidecar metadata lands next to the clip
	metaPath := clip[:len(clip)-len(filepath.Ext(clip))] + ".meta.json"
	if _, err := os.Stat(metaPath); err != nil {
		t.Errorf("sidecar metadata missing: %v", err)
	}
}

// TestStatusReflectsControllerState verifies the snapshot the daemon publishes
// round-trips through status.json with the controller's live values.
func TestStatusReflectsControllerState(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	source := testutil.NewFakeSource(media.StreamInfo{Width: 320, Height: 240, FrameRate: 30, PixelFormat: "yuv420p"})
	source.QueueTimestamps(false, 2.00, 2.10)
	stack := testutil.NewFakeStack(source)
	ctrl := newController(t, stack, nil)

	if err := ctrl.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ctrl.Close()

	if err := ctrl.Record(true); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := ctrl.GetVideoFrame(0); err != nil {
		t.Fatalf("GetVideoFrame: %v", err)
	}

	snap := &ipc.StatusSnapshot{
		Status:        string(ctrl.Status()),
		Mode:          string(ctrl.Mode()),
		Device:        ctrl.Device(),
		Ready:         ctrl.IsReady(),
		StreamTime:    ctrl.StreamTime(),
		RecordingTime: ctrl.RecordingTime(),
		FrameCount:    ctrl.FrameCount(),
		Timestamp:     time.Now(),
	}
	if err := ipc.WriteStatus(snap); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}

	got, err := ipc.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if got.Status != string(camera.StatusRecording) {
		t.Errorf("status: got %q, want recording", got.Status)
	}
	if !got.Ready {
		t.Error("controller should be ready")
	}
	if got.RecordingTime != 0 {
		t.Errorf("first recorded frame should be at t=0, got %v", got.RecordingTime)
	}
	if got.FrameCount != ctrl.FrameCount() {
		t.Errorf("frame count: got %d, want %d", got.FrameCount, ctrl.FrameCount())
	}
}

// TestRestartAfterStop verifies a second record cycle works over the same
// open source, the frame index keeps climbing, and the microphone follows.
func TestRestartAfterStop(t *testing.T) {
	source := testutil.NewFakeSource(media.StreamInfo{Width: 320, Height: 240, FrameRate: 30, PixelFormat: "yuv420p"})
	source.QueueTimestamps(false, 3.00, 3.05, 3.50, 3.55)
	stack := testutil.NewFakeStack(source)
	mic := &testutil.FakeMicrophone{}
	ctrl := newController(t, stack, mic)

	if err := ctrl.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ctrl.Close()

	for cycle := 0; cycle < 2; cycle++ {
		if err := ctrl.Record(false); err != nil {
			t.Fatalf("cycle %d Record: %v", cycle, err)
		}
		if mic.Path == "" {
			t.Fatalf("cycle %d: microphone got no audio destination", cycle)
		}
		if _, err := ctrl.GetVideoFrame(0); err != nil {
			t.Fatalf("cycle %d pull: %v", cycle, err)
		}
		if got := ctrl.RecordingTime(); got != 0 {
			t.Errorf("cycle %d: recording time should relatch to 0, got %v", cycle, got)
		}
		if err := ctrl.Stop(); err != nil {
			t.Fatalf("cycle %d Stop: %v", cycle, err)
		}
		if got := ctrl.RecordingTime(); got != -1.0 {
			t.Errorf("cycle %d: stopped recording time sentinel, got %v", cycle, got)
		}
	}

	if mic.Starts != 2 || mic.Stops != 2 {
		t.Errorf("microphone call counts: starts=%d stops=%d, want 2/2", mic.Starts, mic.Stops)
	}
	// The second session superseded the first; its audio track went with it.
	if _, err := os.Stat(mic.Path); err != nil {
		t.Errorf("latest audio track missing: %v", err)
	}
	if source.Closed {
		t.Error("stop must not release the frame source")
	}
}
