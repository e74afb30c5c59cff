// Package fileutil provides recording file utilities: per-session temp
// workspaces, safe filenames, and sidecar metadata JSON for saved clips.
package fileutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ClipMetadata is the sidecar metadata written alongside each saved clip.
type ClipMetadata struct {
	Version     string    `json:"version"`
	SessionID   string    `json:"session_id"`
	Device      string    `json:"device"`
	StartedAt   time.Time `json:"started_at"`
	StoppedAt   time.Time `json:"stopped_at"`
	Duration    string    `json:"duration"`
	DurationMs  int64     `json:"duration_ms"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	FrameRate   float64   `json:"frame_rate"`
	PixelFormat string    `json:"pixel_format"`
	FrameCount  int64     `json:"frame_count"`
	HasAudio    bool      `json:"has_audio"`
	OutputFile  string    `json:"output_file"`
	SizeBytes   int64     `json:"size_bytes"`
}

// WriteMetadata writes a <basepath>.meta.json sidecar file alongside the
// clip. Uses atomic write (temp + rename) consistent with ipc patterns.
func WriteMetadata(clipPath string, meta *ClipMetadata) error {
	metaPath := metadataPath(clipPath)
	dir := filepath.Dir(metaPath)

	tmpFile, err := os.CreateTemp(dir, "meta-*.tmp")
	if err != nil {
		return fmt.Errorf("create metadata temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Ensure cleanup on error.
	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close metadata temp: %w", err)
	}
	success = true // prevent defer cleanup

	if err := os.Rename(tmpPath, metaPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

// metadataPath returns <basepath>.meta.json for a given clip file path.
func metadataPath(clipPath string) string {
	ext := filepath.Ext(clipPath)
	base := clipPath[:len(clipPath)-len(ext)]
	return base + ".meta.json"
}
