package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Session is a per-recording temp workspace. The frame writer streams video
// into VideoPath and the microphone streams audio into AudioPath; Save muxes
// the two into the caller's output file and the whole directory is swept.
type Session struct {
	ID        string
	Dir       string
	VideoPath string
	AudioPath string
}

// NewSession creates a uuid-named directory under parent (os.TempDir() when
// parent is empty) holding the in-progress track files.
func NewSession(parent string) (*Session, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	id := uuid.NewString()
	dir := filepath.Join(parent, "camcord-"+id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &Session{
		ID:        id,
		Dir:       dir,
		VideoPath: filepath.Join(dir, "video-"+id+".mp4"),
		AudioPath: filepath.Join(dir, "audio-"+id+".wav"),
	}, nil
}

// Sweep removes the session directory and everything in it. Safe to call
// more than once and on a nil session.
func (s *Session) Sweep() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}
