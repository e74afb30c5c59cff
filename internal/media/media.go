// Package media defines the collaborator interfaces the capture controller
// drives: a pull-based frame source, a push-based frame writer, a pixel
// format converter, an optional microphone, and a muxer that combines the
// finished video and audio tracks. Implementations live in subpackages
// (media/libav) and in testutil for tests.
package media

// StreamInfo is the stream metadata reported by a FrameSource. It is
// refreshed on every frame pull and overwritten, not merged.
type StreamInfo struct {
	Width       int
	Height      int
	FrameRate   float64
	PixelFormat string
}

// SourceFrame is one decoded frame pulled from a FrameSource. Timestamp is
// absolute stream time in seconds since the source was opened. EndOfStream
// is set on the final frame the source will ever deliver; the frame itself
// is still valid.
type SourceFrame struct {
	Buffer      []byte
	Width       int
	Height      int
	PixelFormat string
	Timestamp   float64
	EndOfStream bool
}

// SourceOptions is the fixed capture-library configuration supplied when a
// platform requires explicit stream parameters (DirectShow on Windows).
type SourceOptions struct {
	FrameRate   int
	Width       int
	Height      int
	PixelFormat string
	BufferSize  int
}

// DefaultSourceOptions mirrors the defaults the capture library is seeded
// with when the platform gives us no better information.
func DefaultSourceOptions() SourceOptions {
	const w, h = 320, 240
	return SourceOptions{
		FrameRate:   30,
		Width:       w,
		Height:      h,
		PixelFormat: "yuyv422",
		BufferSize:  w * h * 4,
	}
}

// FrameSource decodes a live camera stream into discrete timestamped frames.
// PullFrame makes a single non-blocking attempt: it returns (nil, nil) when
// no frame is ready yet, which is not an error. Callers that want to wait
// poll in a loop with their own deadline. Metadata reports the stream info
// as of the most recent successful pull.
type FrameSource interface {
	PullFrame() (*SourceFrame, error)
	Metadata() StreamInfo
	Close() error
}

// WriterConfig sizes and configures a FrameWriter from the most recent
// stream metadata.
type WriterConfig struct {
	PixelFormatIn string
	Width         int
	Height        int
	FrameRate     float64
}

// FrameWriter encodes frames into a video container file. WriteFrame takes
// a buffer already converted to the writer's input pixel format and a
// recording-relative timestamp in seconds. Close flushes and finalizes the
// container.
type FrameWriter interface {
	WriteFrame(buf []byte, pts float64, streamIndex int) error
	Close() error
}

// PixelConverter converts a raw frame buffer between pixel formats.
type PixelConverter interface {
	Convert(buf []byte, width, height int, srcFormat, dstFormat string) ([]byte, error)
}

// Microphone is the optional audio capture collaborator. Record begins
// capturing into path, the recording session's audio track file; Stop
// finalizes it. Both are fire-and-forget from the controller's point of
// view: audio and video start in the same call sequence, nothing stronger.
type Microphone interface {
	Record(path string) error
	Stop() error
}

// Muxer combines a finished video-only file and an optional audio-only file
// (audioPath may be empty) into a single output file.
type Muxer interface {
	Combine(videoPath, audioPath, outputPath string) error
}

// Stack bundles the collaborator constructors and singletons a controller
// needs. OpenSource and OpenWriter are factories because handles are
// acquired and released per session; the converter and muxer are stateless.
type Stack struct {
	OpenSource func(device string, opts SourceOptions) (FrameSource, error)
	OpenWriter func(path string, cfg WriterConfig) (FrameWriter, error)
	Converter  PixelConverter
	Muxer      Muxer
}
