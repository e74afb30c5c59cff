// Package device lists the cameras the OS currently exposes. Enumeration is
// uncached: every call reflects live OS state, and a device seen here may be
// gone by the time it is opened.
package device

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/camcord/camcord/internal/camera"
	"github.com/camcord/camcord/internal/diaglog"
)

// Error taxonomy for device selection. Callers match with errors.Is.
var (
	// ErrDeviceNotFound marks an index or identifier that resolves to no
	// real device. Surfaced at selection time, never deferred.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrUnsupportedPlatform marks enumeration on an OS with no
	// implemented strategy. Fatal for the call, not retriable.
	ErrUnsupportedPlatform = errors.New("device: platform has no enumeration strategy")
)

// Enumerator lists available cameras for the current platform. The zero
// value is not usable; build one with NewEnumerator. The OS hooks are
// injectable so platform strategies are testable anywhere.
type Enumerator struct {
	goos string
	glob func(pattern string) ([]string, error)
	// listDevices runs `ffmpeg -f <api> -list_devices true -i <input>`
	// and returns its combined output. ffmpeg prints the listing and
	// exits nonzero; the exit status is ignored.
	listDevices func(api, input string) (string, error)
	log         *diaglog.Logger
}

// NewEnumerator builds an enumerator for the running OS. log may be nil.
func NewEnumerator(log *diaglog.Logger) *Enumerator {
	if log == nil {
		log = diaglog.NewNoOp()
	}
	return &Enumerator{
		goos:        runtime.GOOS,
		glob:        filepath.Glob,
		listDevices: runFFmpegListing,
		log:         log,
	}
}

// List returns descriptors for every camera the OS reports, in a stable
// sorted order. An OS with no strategy yields ErrUnsupportedPlatform, never
// a silent empty list.
func (e *Enumerator) List() ([]*camera.DeviceDescriptor, error) {
	var (
		names []string
		api   string
		err   error
	)
	switch e.goos {
	case "linux":
		api = "v4l2"
		names, err = e.glob("/dev/video*")
	case "darwin":
		api = "avfoundation"
		var out string
		out, err = e.listDevices("avfoundation", "")
		if err == nil {
			names = parseAVFoundationListing(out)
		}
	case "windows":
		api = "dshow"
		var out string
		out, err = e.listDevices("dshow", "dummy")
		if err == nil {
			names = parseDShowListing(out)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, e.goos)
	}
	if err != nil {
		return nil, fmt.Errorf("enumerating %s devices: %w", api, err)
	}

	sort.Strings(names)

	descs := make([]*camera.DeviceDescriptor, 0, len(names))
	for _, name := range names {
		d := camera.NewDeviceDescriptor(name)
		d.SetCameraAPI(api)
		d.SetCameraLib("libav")
		descs = append(descs, d)
	}

	e.log.Log(diaglog.LogEntry{
		Component: diaglog.ComponentDeviceEnum,
		Event:     diaglog.EventDeviceScan,
		Payload:   map[string]interface{}{"api": api, "count": len(descs)},
	})
	return descs, nil
}

// ByIndex resolves a numeric selection against the live device list.
func (e *Enumerator) ByIndex(index int) (*camera.DeviceDescriptor, error) {
	descs, err := e.List()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(descs) {
		return nil, fmt.Errorf("%w: index %d with %d devices available", ErrDeviceNotFound, index, len(descs))
	}
	return descs[index], nil
}

// ByName resolves a device identifier against the live device list.
func (e *Enumerator) ByName(name string) (*camera.DeviceDescriptor, error) {
	descs, err := e.List()
	if err != nil {
		return nil, err
	}
	for _, d := range descs {
		if d.Name() == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// runFFmpegListing shells out to the ffmpeg binary for the device listing.
// The libav bindings carry no device enumeration surface, so the listing
// comes from ffmpeg's own indev probes. ffmpeg exits nonzero after printing
// the listing; only a missing binary is a real failure.
func runFFmpegListing(api, input string) (string, error) {
	cmd := exec.Command("ffmpeg", "-hide_banner", "-f", api, "-list_devices", "true", "-i", input)
	out, err := cmd.CombinedOutput()
	if len(out) == 0 && err != nil {
		return "", fmt.Errorf("ffmpeg listing failed: %w", err)
	}
	return string(out), nil
}

// parseAVFoundationListing extracts video device names from ffmpeg's
// avfoundation listing. Video entries sit between the "video devices"
// header and the "audio devices" header, one "[N] Name" per line.
func parseAVFoundationListing(out string) []string {
	var names []string
	inVideo := false
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "AVFoundation video devices"):
			inVideo = true
		case strings.Contains(line, "AVFoundation audio devices"):
			inVideo = false
		case inVideo:
			if i := strings.LastIndex(line, "] "); i >= 0 {
				name := strings.TrimSpace(line[i+2:])
				if name != "" {
					names = append(names, name)
				}
			}
		}
	}
	return names
}

// parseDShowListing extracts video device names from ffmpeg's dshow
// listing: quoted names on lines tagged "(video)".
func parseDShowListing(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "(video)") {
			continue
		}
		start := strings.Index(line, `"`)
		end := strings.LastIndex(line, `"`)
		if start >= 0 && end > start {
			names = append(names, line[start+1:end])
		}
	}
	return names
}
