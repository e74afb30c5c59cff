package camera

import "github.com/camcord/camcord/internal/media"

// StreamMetadata is the most recent stream metadata reported by the frame
// source. It is overwritten wholesale on every frame pull. A nil
// *StreamMetadata on the controller means no frame has ever been pulled.
type StreamMetadata struct {
	Width       int
	Height      int
	FrameRate   float64
	PixelFormat string
}

func metadataFromStream(info media.StreamInfo) *StreamMetadata {
	return &StreamMetadata{
		Width:       info.Width,
		Height:      info.Height,
		FrameRate:   info.FrameRate,
		PixelFormat: info.PixelFormat,
	}
}

// Frame is one decoded video frame handed to the caller. Index counts
// frames delivered since the controller was constructed. AbsTime is the
// absolute stream timestamp in seconds. ColorData is a read-only view valid
// until the next pull.
type Frame struct {
	Index     int64
	AbsTime   float64
	Width     int
	Height    int
	ColorData []byte
}
