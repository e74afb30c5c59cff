package testutil

import (
	"fmt"
	"os"
	"sync"

	"github.com/camcord/camcord/internal/media"
)

// FakeSource is a scripted media.FrameSource. Each PullFrame call pops the
// next queued frame; an empty queue yields (nil, nil), which models a pull
// that found nothing ready yet.
type FakeSource struct {
	mu      sync.Mutex
	frames  []media.SourceFrame
	info    media.StreamInfo
	pullErr error
	Pulls   int
	Closed  bool
}

// NewFakeSource builds a source reporting info as its stream metadata.
func NewFakeSource(info media.StreamInfo) *FakeSource {
	return &FakeSource{info: info}
}

// QueueFrame appends one frame for a later PullFrame to return.
func (s *FakeSource) QueueFrame(f media.SourceFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

// QueueTimestamps queues one frame per timestamp with a small synthetic
// buffer in the source's pixel format. The last frame carries EndOfStream
// when eos is true.
func (s *FakeSource) QueueTimestamps(eos bool, timestamps ...float64) {
	for i, ts := range timestamps {
		s.QueueFrame(media.SourceFrame{
			Buffer:      []byte{0x10, 0x20, 0x30, 0x40},
			Width:       s.info.Width,
			Height:      s.info.Height,
			PixelFormat: s.info.PixelFormat,
			Timestamp:   ts,
			EndOfStream: eos && i == len(timestamps)-1,
		})
	}
}

// FailNextPull makes the next PullFrame return err.
func (s *FakeSource) FailNextPull(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pullErr = err
}

func (s *FakeSource) PullFrame() (*media.SourceFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pulls++
	if s.pullErr != nil {
		err := s.pullErr
		s.pullErr = nil
		return nil, err
	}
	if len(s.frames) == 0 {
		return nil, nil
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return &f, nil
}

func (s *FakeSource) Metadata() media.StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *FakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// WrittenFrame records one FakeWriter.WriteFrame call.
type WrittenFrame struct {
	Bytes       int
	PTS         float64
	StreamIndex int
}

// FakeWriter is a scripted media.FrameWriter. It accumulates frame bytes in
// memory and flushes them to its path on Close, so a muxer reading the
// video-track file sees real content.
type FakeWriter struct {
	Path     string
	Config   media.WriterConfig
	Frames   []WrittenFrame
	Closed   bool
	writeErr error
	buf      []byte
}

// FailWrites makes every subsequent WriteFrame return err.
func (w *FakeWriter) FailWrites(err error) { w.writeErr = err }

func (w *FakeWriter) WriteFrame(buf []byte, pts float64, streamIndex int) error {
	if w.Closed {
		return fmt.Errorf("write after close")
	}
	if w.writeErr != nil {
		return w.writeErr
	}
	w.Frames = append(w.Frames, WrittenFrame{Bytes: len(buf), PTS: pts, StreamIndex: streamIndex})
	w.buf = append(w.buf, buf...)
	return nil
}

func (w *FakeWriter) Close() error {
	if w.Closed {
		return nil
	}
	w.Closed = true
	return os.WriteFile(w.Path, w.buf, 0644)
}

// FakeConverter is a media.PixelConverter that tags each buffer instead of
// converting it and records every call.
type FakeConverter struct {
	Calls []string // "src->dst"
	err   error
}

func (c *FakeConverter) Fail(err error) { c.err = err }

func (c *FakeConverter) Convert(buf []byte, width, height int, srcFormat, dstFormat string) ([]byte, error) {
	c.Calls = append(c.Calls, srcFormat+"->"+dstFormat)
	if c.err != nil {
		return nil, c.err
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// FakeMicrophone is a media.Microphone that tracks its call sequence. Record
// drops a stub WAV at its destination so a muxer reading the audio track sees
// real content; Path remembers where the last capture landed.
type FakeMicrophone struct {
	Path      string
	Recording bool
	Starts    int
	Stops     int
	recordErr error
}

func (m *FakeMicrophone) FailRecord(err error) { m.recordErr = err }

func (m *FakeMicrophone) Record(path string) error {
	m.Starts++
	if m.recordErr != nil {
		return m.recordErr
	}
	if err := os.WriteFile(path, []byte("RIFFstub"), 0644); err != nil {
		return err
	}
	m.Path = path
	m.Recording = true
	return nil
}

func (m *FakeMicrophone) Stop() error {
	m.Stops++
	m.Recording = false
	return nil
}

// FakeMuxer is a media.Muxer that concatenates the video file (and audio
// file when present) into the output path.
type FakeMuxer struct {
	Combines int
	err      error
}

func (m *FakeMuxer) Fail(err error) { m.err = err }

func (m *FakeMuxer) Combine(videoPath, audioPath, outputPath string) error {
	m.Combines++
	if m.err != nil {
		return m.err
	}
	video, err := os.ReadFile(videoPath)
	if err != nil {
		return fmt.Errorf("read video track: %w", err)
	}
	out := video
	if audioPath != "" {
		audio, err := os.ReadFile(audioPath)
		if err != nil {
			return fmt.Errorf("read audio track: %w", err)
		}
		out = append(out, audio...)
	}
	return os.WriteFile(outputPath, out, 0644)
}

// FakeStack bundles one scripted collaborator set behind a media.Stack.
type FakeStack struct {
	Source    *FakeSource
	Writers   []*FakeWriter
	Converter *FakeConverter
	Muxer     *FakeMuxer

	OpenedDevices []string
	openSourceErr error
	openWriterErr error
}

// NewFakeStack wires a stack around the given scripted source.
func NewFakeStack(source *FakeSource) *FakeStack {
	return &FakeStack{
		Source:    source,
		Converter: &FakeConverter{},
		Muxer:     &FakeMuxer{},
	}
}

func (f *FakeStack) FailOpenSource(err error) { f.openSourceErr = err }
func (f *FakeStack) FailOpenWriter(err error) { f.openWriterErr = err }

// LastWriter returns the most recently opened writer, or nil.
func (f *FakeStack) LastWriter() *FakeWriter {
	if len(f.Writers) == 0 {
		return nil
	}
	return f.Writers[len(f.Writers)-1]
}

// Stack returns the media.Stack view the controller consumes.
func (f *FakeStack) Stack() media.Stack {
	return media.Stack{
		OpenSource: func(device string, opts media.SourceOptions) (media.FrameSource, error) {
			if f.openSourceErr != nil {
				return nil, f.openSourceErr
			}
			f.OpenedDevices = append(f.OpenedDevices, device)
			return f.Source, nil
		},
		OpenWriter: func(path string, cfg media.WriterConfig) (media.FrameWriter, error) {
			if f.openWriterErr != nil {
				return nil, f.openWriterErr
			}
			w := &FakeWriter{Path: path, Config: cfg}
			f.Writers = append(f.Writers, w)
			return w, nil
		},
		Converter: f.Converter,
		Muxer:     f.Muxer,
	}
}
