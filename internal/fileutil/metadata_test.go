package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteMetadata_Basic(t *testing.T) {
	dir := t.TempDir()
	clipPath := filepath.Join(dir, "2026-01-15_1430_Webcam-C920.mp4")
	// Create a dummy clip file so the dir exists.
	if err := os.WriteFile(clipPath, []byte("fake"), 0644); err != nil {
		t.Fatal(err)
	}

	meta := &ClipMetadata{
		Version:     "1.2.3",
		SessionID:   "abc123",
		Device:      "/dev/video0",
		StartedAt:   time.Date(2026, 1, 15, 14, 30, 0, 0, time.UTC),
		StoppedAt:   time.Date(2026, 1, 15, 14, 35, 0, 0, time.UTC),
		Duration:    "5m0s",
		DurationMs:  300000,
		Width:       320,
		Height:      240,
		FrameRate:   30,
		PixelFormat: "yuyv422",
		FrameCount:  9000,
		HasAudio:    true,
		OutputFile:  clipPath,
		SizeBytes:   1 << 20,
	}

	if err := WriteMetadata(clipPath, meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	// Verify file exists at expected path.
	metaPath := filepath.Join(dir, "2026-01-15_1430_Webcam-C920.meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("read meta file: %v", err)
	}

	var got ClipMetadata
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Version != "1.2.3" {
		t.Errorf("version = %q, want %q", got.Version, "1.2.3")
	}
	if got.SessionID != "abc123" {
		t.Errorf("session_id = %q, want %q", got.SessionID, "abc123")
	}
	if got.Device != "/dev/video0" {
		t.Errorf("device = %q, want %q", got.Device, "/dev/video0")
	}
	if got.FrameCount != 9000 {
		t.Errorf("frame_count = %d, want %d", got.FrameCount, 9000)
	}
	if !got.HasAudio {
		t.Error("has_audio = false, want true")
	}
}

func TestMetadataPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"clip.mp4", "clip.meta.json"},
		{"/path/to/file.mkv", "/path/to/file.meta.json"},
		{"no-ext", "no-ext.meta.json"},
	}
	for _, tt := range tests {
		got := metadataPath(tt.input)
		if got != tt.want {
			t.Errorf("metadataPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWriteMetadata_AtomicNoPartialFile(t *testing.T) {
	// Write to a non-existent directory should fail cleanly.
	badPath := filepath.Join(t.TempDir(), "nonexistent", "sub", "clip.mp4")
	meta := &ClipMetadata{Version: "dev"}
	err := WriteMetadata(badPath, meta)
	if err == nil {
		t.Fatal("expected error for non-existent directory")
	}
}
