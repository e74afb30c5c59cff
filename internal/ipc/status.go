package ipc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// StatusSnapshot is the daemon state persisted for the control CLI and any
// other observer at a point in time.
type StatusSnapshot struct {
	Status        string    `json:"status"`          // controller lifecycle state
	Mode          string    `json:"mode"`            // video|cv|photo
	Device        string    `json:"device"`          // identifier in use
	Ready         bool      `json:"ready"`           // source open, metadata primed
	StreamTime    float64   `json:"stream_time"`     // seconds, -1 when unknown
	RecordingTime float64   `json:"recording_time"`  // seconds, -1 outside recording
	FrameCount    int64     `json:"frame_count"`     // frames delivered since start
	LastClip      string    `json:"last_clip"`       // most recently saved file
	LastAction    string    `json:"last_action"`     // last command handled
	LastError     string    `json:"last_error"`      // last error message
	Timestamp     time.Time `json:"timestamp"`       // snapshot time
}

// WriteStatus persists StatusSnapshot to ~/.cache/camcord/status.json using atomic write
func WriteStatus(status *StatusSnapshot) error {
	cacheDir := filepath.Join(os.Getenv("HOME"), ".cache", "camcord")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return err
	}

	statusPath := filepath.Join(cacheDir, "status.json")
	return atomicWriteJSON(statusPath, status)
}

// ReadStatus loads StatusSnapshot from ~/.cache/camcord/status.json
func ReadStatus() (*StatusSnapshot, error) {
	statusPath := filepath.Join(os.Getenv("HOME"), ".cache", "camcord", "status.json")

	data, err := os.ReadFile(statusPath)
	if err != nil {
		return nil, err
	}

	var status StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// atomicWriteJSON writes data to a file atomically using temp file + rename
func atomicWriteJSON(path string, data interface{}) error {
	// Create temp file in same directory
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "status-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	// Ensure cleanup on error
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	// Write JSON with indentation for readability
	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}

	// Sync to disk before rename
	if err := tmpFile.Sync(); err != nil {
		return err
	}

	// Close file before rename
	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil // Prevent defer cleanup

	// Atomic rename
	return os.Rename(tmpPath, path)
}
