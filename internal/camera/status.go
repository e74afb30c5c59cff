package camera

import "fmt"

// Status represents the capture controller lifecycle state.
type Status string

const (
	StatusNotStarted Status = "not_started" // constructed, stream not yet recording
	StatusRecording  Status = "recording"   // frames are being written
	StatusStopping   Status = "stopping"    // source signalled end-of-stream while recording
	StatusStopped    Status = "stopped"     // recording finished, Save is allowed
)

// Mode is the closed set of camera operating modes, validated once at
// construction.
type Mode string

const (
	ModeVideo Mode = "video" // live feed recorded to disk
	ModeCV    Mode = "cv"    // frames delivered to the caller, nothing buffered on disk
	ModePhoto Mode = "photo" // single-shot captures via Snapshot
)

// ParseMode validates a mode string against the closed enumeration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeVideo, ModeCV, ModePhoto:
		return Mode(s), nil
	case "":
		return ModeVideo, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q (want video, cv or photo)", ErrMisuse, s)
	}
}
