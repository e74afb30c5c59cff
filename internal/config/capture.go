package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/camcord/camcord/internal/camera"
)

// AudioConfig selects the optional microphone capture.
type AudioConfig struct {
	Enabled bool   `json:"enabled"`
	Device  string `json:"device,omitempty"` // "" = platform default
}

// CaptureConfig is the daemon configuration stored at
// ~/.config/camcord/capture.json.
type CaptureConfig struct {
	Device      string `json:"device,omitempty"`       // identifier; "" = first enumerated
	DeviceIndex *int   `json:"device_index,omitempty"` // numeric selection, wins over Device
	Mode        string `json:"mode,omitempty"`         // video|cv|photo, "" = video

	OutputDir string `json:"output_dir,omitempty"` // saved clips land here

	FrameRate   int    `json:"frame_rate,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	PixelFormat string `json:"pixel_format,omitempty"`

	Audio *AudioConfig `json:"audio,omitempty"`

	StatusWS       string `json:"status_ws,omitempty"`        // ws listen address, "" = disabled
	PollIntervalMs int    `json:"poll_interval_ms,omitempty"` // command watcher polling fallback
}

// Default returns the configuration used when no file exists.
func Default() *CaptureConfig {
	return &CaptureConfig{
		Mode:           "video",
		OutputDir:      filepath.Join(os.Getenv("HOME"), "Videos", "camcord"),
		FrameRate:      30,
		Width:          320,
		Height:         240,
		PixelFormat:    "yuyv422",
		PollIntervalMs: 1000,
	}
}

func configPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "camcord", "capture.json")
}

// Load reads ~/.config/camcord/capture.json, falling back to Default when
// the file does not exist.
func Load() (*CaptureConfig, error) {
	data, err := os.ReadFile(configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to ~/.config/camcord/capture.json.
func Save(cfg *CaptureConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(configPath())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write with indentation for readability
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configPath(), data, 0644)
}

// Validate checks CaptureConfig for validity and applies defaults for the
// fields the user left empty.
func (c *CaptureConfig) Validate() error {
	if _, err := camera.ParseMode(c.Mode); err != nil {
		return err
	}

	if c.FrameRate == 0 {
		c.FrameRate = 30
	}
	if c.FrameRate < 1 || c.FrameRate > 240 {
		return fmt.Errorf("frame_rate must be between 1 and 240, got %d", c.FrameRate)
	}

	if (c.Width == 0) != (c.Height == 0) {
		return fmt.Errorf("width and height must be set together, got %dx%d", c.Width, c.Height)
	}
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", c.Width, c.Height)
	}

	if c.DeviceIndex != nil && *c.DeviceIndex < 0 {
		return fmt.Errorf("device_index must be >= 0, got %d", *c.DeviceIndex)
	}

	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = 1000
	}
	if c.PollIntervalMs < 100 || c.PollIntervalMs > 10000 {
		return fmt.Errorf("poll_interval_ms must be between 100 and 10000, got %d", c.PollIntervalMs)
	}
	return nil
}
