package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewSession_CreatesDirAndPaths(t *testing.T) {
	parent := t.TempDir()
	s, err := NewSession(parent)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Sweep()

	info, err := os.Stat(s.Dir)
	if err != nil {
		t.Fatalf("stat session dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("session dir is not a directory")
	}
	if filepath.Dir(s.Dir) != parent {
		t.Errorf("session dir %q not under parent %q", s.Dir, parent)
	}
	if !strings.HasPrefix(filepath.Base(s.Dir), "camcord-") {
		t.Errorf("session dir %q missing camcord- prefix", s.Dir)
	}
	if filepath.Base(s.VideoPath) != "video-"+s.ID+".mp4" {
		t.Errorf("video path %q does not embed session id", s.VideoPath)
	}
	if filepath.Base(s.AudioPath) != "audio-"+s.ID+".wav" {
		t.Errorf("audio path %q does not embed session id", s.AudioPath)
	}
}

func TestNewSession_UniqueIDs(t *testing.T) {
	parent := t.TempDir()
	a, err := NewSession(parent)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Sweep()
	b, err := NewSession(parent)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Sweep()
	if a.ID == b.ID {
		t.Error("two sessions share an id")
	}
	if a.Dir == b.Dir {
		t.Error("two sessions share a directory")
	}
}

func TestSweep_RemovesEverything(t *testing.T) {
	s, err := NewSession(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.VideoPath, []byte("v"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.AudioPath, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := s.Sweep(); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if _, err := os.Stat(s.Dir); !os.IsNotExist(err) {
		t.Error("session dir still exists after sweep")
	}
	// Sweep twice is fine.
	if err := s.Sweep(); err != nil {
		t.Errorf("second Sweep: %v", err)
	}
	var nilSession *Session
	if err := nilSession.Sweep(); err != nil {
		t.Errorf("nil Sweep: %v", err)
	}
}

func TestDefaultClipName(t *testing.T) {
	ts := time.Date(2026, 3, 4, 9, 5, 0, 0, time.UTC)
	got := DefaultClipName("HD Webcam: C920", ts)
	want := "2026-03-04_0905_HD-Webcam-C920.mp4"
	if got != want {
		t.Errorf("DefaultClipName = %q, want %q", got, want)
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "clip.mp4")

	if got := UniquePath(p); got != p {
		t.Errorf("fresh path changed: %q", got)
	}

	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	got := UniquePath(p)
	want := filepath.Join(dir, "clip_2.mp4")
	if got != want {
		t.Errorf("UniquePath = %q, want %q", got, want)
	}
}
