package camera

import (
	"fmt"
	"os"
	"time"

	"github.com/camcord/camcord/internal/diaglog"
	"github.com/camcord/camcord/internal/fileutil"
	"github.com/camcord/camcord/internal/media"
)

// invalidTimestamp is the sentinel carried by StreamTime/RecordingTime when
// no meaningful value exists (never pulled a frame, or not recording).
const invalidTimestamp = -1.0

// openPullTimeout bounds the metadata-priming pull performed by Open.
const openPullTimeout = time.Second

// pollInterval is the sleep between attempts in the frame poll loop.
const pollInterval = 5 * time.Millisecond

// writerPixelFormat is the input pixel format every frame writer is opened
// with; pulled frames are converted to it before the push.
const writerPixelFormat = "yuv420p"

// Options configures a Controller. Stack is required; everything else has a
// usable zero value.
type Options struct {
	Mode       Mode             // validated by NewController
	Stack      media.Stack      // collaborator factories and singletons
	Microphone media.Microphone // optional audio capture
	Source     *media.SourceOptions
	TempDir    string // parent for per-session temp dirs; "" = os.TempDir()
	Log        *diaglog.Logger
}

// Controller is the live-capture state machine. It owns the frame source and
// frame writer handles, the timestamp bookkeeping between absolute stream
// time and recording-relative time, and drives the optional microphone.
//
// A Controller is single-owner: all methods must be called from one
// goroutine. The collaborators may run their own decode/encode threads
// internally.
type Controller struct {
	device  string
	mode    Mode
	stack   media.Stack
	mic     media.Microphone
	srcOpts media.SourceOptions
	tempDir string
	log     *diaglog.Logger

	status  Status
	source  media.FrameSource
	writer  media.FrameWriter
	session *fileutil.Session

	outFile  string
	lastClip string

	frameIndex int64
	latched    bool    // startPts captured for the current recording
	startPts   float64 // absolute timestamp of the recording's first frame
	absPts     float64 // absolute timestamp of the most recent frame
	pts        float64 // recording-relative timestamp of the most recent frame

	meta      *StreamMetadata // nil until the first frame is pulled
	lastFrame *Frame          // nil until the first frame is pulled

	opened   bool // Open has succeeded at least once
	released bool // source playback resources have been released

	startedAt time.Time
	stoppedAt time.Time

	// injectable for the poll-loop tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewController builds a controller for the given device identifier. The
// mode is validated here; an unrecognized mode never reaches the pipeline.
func NewController(device string, opts Options) (*Controller, error) {
	switch opts.Mode {
	case ModeVideo, ModeCV, ModePhoto:
	default:
		return nil, fmt.Errorf("%w: unrecognized capture mode %q", ErrMisuse, string(opts.Mode))
	}
	if opts.Stack.OpenSource == nil {
		return nil, fmt.Errorf("%w: media stack has no frame source factory", ErrMisuse)
	}
	srcOpts := media.DefaultSourceOptions()
	if opts.Source != nil {
		srcOpts = *opts.Source
	}
	log := opts.Log
	if log == nil {
		log = diaglog.NewNoOp()
	}
	return &Controller{
		device:   device,
		mode:     opts.Mode,
		stack:    opts.Stack,
		mic:      opts.Microphone,
		srcOpts:  srcOpts,
		tempDir:  opts.TempDir,
		log:      log,
		status:   StatusNotStarted,
		startPts: invalidTimestamp,
		absPts:   invalidTimestamp,
		pts:      invalidTimestamp,
		now:      time.Now,
		sleep:    time.Sleep,
	}, nil
}

// Open acquires the frame source and primes stream metadata with one bounded
// pull. The controller is not ready until that pull delivers a frame.
// Calling Open on an already-open controller is a misuse error. A failed
// Open leaves the controller closed and may be retried.
func (c *Controller) Open() error {
	if c.opened {
		return fmt.Errorf("%w: controller is already open", ErrMisuse)
	}

	src, err := c.stack.OpenSource(c.device, c.srcOpts)
	if err != nil {
		return fmt.Errorf("%w: opening frame source for %q: %v", ErrOperation, c.device, err)
	}
	c.source = src
	c.released = false

	c.log.Log(diaglog.LogEntry{
		Component: diaglog.ComponentController,
		Event:     diaglog.EventSourceOpen,
		Payload:   map[string]interface{}{"device": c.device},
	})

	sf, err := c.pullWithDeadline(openPullTimeout)
	if err == nil && sf == nil {
		err = fmt.Errorf("%w: no frame within %v of opening %q", ErrNotReady, openPullTimeout, c.device)
	}
	if err != nil {
		_ = src.Close()
		c.source = nil
		return err
	}

	c.opened = true
	if _, err := c.enqueueFrame(sf); err != nil {
		return err
	}
	return nil
}

// Record begins a recording session. When streamOnly is false a frame writer
// is opened against a fresh temp session sized from the latest stream
// metadata; when true, frames keep flowing but nothing is written. Any
// previous unsaved session is discarded. The microphone, if attached, is
// started in the same call, best effort.
func (c *Controller) Record(streamOnly bool) error {
	if c.mode == ModePhoto {
		return fmt.Errorf("%w: photo mode cannot record", ErrMisuse)
	}
	if c.source == nil || c.released {
		return fmt.Errorf("%w: frame source is not open", ErrNotReady)
	}

	// A re-record before Save throws the old session away. A writer still
	// open against it is finalized first so the handle never outlives its
	// directory; the content is discarded either way, so failures only log.
	if c.writer != nil {
		if err := c.closeWriter(); err != nil {
			c.log.Log(diaglog.LogEntry{
				Component: diaglog.ComponentFrameWriter,
				Event:     diaglog.EventRecordStop,
				SessionID: c.sessionID(),
				Reason:    "finalizing superseded writer: " + err.Error(),
			})
		}
	}
	if c.session != nil {
		c.sweepSession("superseded by new recording")
	}

	c.lastFrame = nil
	c.latched = false
	c.startPts = invalidTimestamp
	c.pts = invalidTimestamp

	if !streamOnly {
		if c.meta == nil {
			return fmt.Errorf("%w: no stream metadata to size the writer", ErrNotReady)
		}
		sess, err := fileutil.NewSession(c.tempDir)
		if err != nil {
			return fmt.Errorf("%w: creating temp session: %v", ErrOperation, err)
		}
		if c.stack.OpenWriter == nil {
			_ = sess.Sweep()
			return fmt.Errorf("%w: media stack has no frame writer factory", ErrMisuse)
		}
		w, err := c.stack.OpenWriter(sess.VideoPath, media.WriterConfig{
			PixelFormatIn: writerPixelFormat,
			Width:         c.meta.Width,
			Height:        c.meta.Height,
			FrameRate:     c.meta.FrameRate,
		})
		if err != nil {
			_ = sess.Sweep()
			return fmt.Errorf("%w: opening frame writer: %v", ErrOperation, err)
		}
		c.session = sess
		c.writer = w
	}

	c.status = StatusRecording
	c.startedAt = c.now()

	sessionID := ""
	if c.session != nil {
		sessionID = c.session.ID
	}
	c.log.Log(diaglog.LogEntry{
		Component: diaglog.ComponentController,
		Event:     diaglog.EventRecordStart,
		SessionID: sessionID,
		Payload:   map[string]interface{}{"stream_only": streamOnly},
	})

	if c.mic != nil && c.session != nil {
		// Fire and forget: audio and video start in the same call
		// sequence, nothing stronger. The track lands inside the session
		// so a sweep takes it along. Stream-only sessions have no
		// destination and capture no audio.
		if err := c.mic.Record(c.session.AudioPath); err != nil {
			c.log.Log(diaglog.LogEntry{
				Component: diaglog.ComponentMicrophone,
				Event:     diaglog.EventMicStart,
				SessionID: sessionID,
				Reason:    err.Error(),
			})
		} else {
			c.log.Log(diaglog.LogEntry{
				Component: diaglog.ComponentMicrophone,
				Event:     diaglog.EventMicStart,
				SessionID: sessionID,
			})
		}
	}
	return nil
}

// GetVideoFrame pulls the next decoded frame, blocking up to timeout. A
// timeout with no frame is a normal outcome and returns (nil, nil). Zero or
// negative timeout makes a single attempt and returns immediately.
func (c *Controller) GetVideoFrame(timeout time.Duration) (*Frame, error) {
	if c.source == nil || c.released {
		return nil, fmt.Errorf("%w: frame source is not open", ErrNotReady)
	}
	sf, err := c.pullWithDeadline(timeout)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, nil
	}
	return c.enqueueFrame(sf)
}

// pullWithDeadline is the one place the blocking contract lives: it polls
// the source's single-attempt PullFrame until a frame arrives or the
// deadline passes. The clock and sleep are injectable for tests.
func (c *Controller) pullWithDeadline(timeout time.Duration) (*media.SourceFrame, error) {
	deadline := c.now().Add(timeout)
	for {
		sf, err := c.source.PullFrame()
		if err != nil {
			return nil, fmt.Errorf("%w: pulling frame: %v", ErrOperation, err)
		}
		if sf != nil {
			return sf, nil
		}
		if timeout <= 0 || !c.now().Before(deadline) {
			return nil, nil
		}
		c.sleep(pollInterval)
	}
}

// enqueueFrame runs the per-frame bookkeeping: refresh metadata, advance the
// timestamps, latch the recording start on the first recorded frame, push to
// the writer when recording, and handle end-of-stream.
func (c *Controller) enqueueFrame(sf *media.SourceFrame) (*Frame, error) {
	c.meta = metadataFromStream(c.source.Metadata())
	c.absPts = sf.Timestamp

	if c.status == StatusRecording {
		if !c.latched {
			c.startPts = sf.Timestamp
			c.latched = true
		}
		c.pts = c.absPts - c.startPts
	} else {
		c.pts = invalidTimestamp
	}

	frame := &Frame{
		Index:     c.frameIndex,
		AbsTime:   sf.Timestamp,
		Width:     sf.Width,
		Height:    sf.Height,
		ColorData: sf.Buffer,
	}
	c.frameIndex++

	if c.writer != nil && c.status == StatusRecording {
		buf := sf.Buffer
		if c.stack.Converter != nil && sf.PixelFormat != writerPixelFormat {
			converted, err := c.stack.Converter.Convert(sf.Buffer, sf.Width, sf.Height, sf.PixelFormat, writerPixelFormat)
			if err != nil {
				return nil, fmt.Errorf("%w: converting %s frame to %s: %v", ErrOperation, sf.PixelFormat, writerPixelFormat, err)
			}
			buf = converted
		}
		if err := c.writer.WriteFrame(buf, c.pts, 0); err != nil {
			c.log.Log(diaglog.LogEntry{
				Component: diaglog.ComponentFrameWriter,
				Event:     diaglog.EventFrameWriteFailed,
				SessionID: c.sessionID(),
				Reason:    err.Error(),
			})
			return nil, fmt.Errorf("%w: writing frame at %.3fs: %v", ErrOperation, c.pts, err)
		}
	}

	if sf.EndOfStream && c.status == StatusRecording {
		c.status = StatusStopping
		c.log.Log(diaglog.LogEntry{
			Component: diaglog.ComponentController,
			Event:     diaglog.EventEndOfStream,
			SessionID: c.sessionID(),
		})
	}

	c.lastFrame = frame
	return frame, nil
}

// Stop ends the recording session: stops the microphone and finalizes the
// writer. The controller transitions to Stopped and the clip becomes
// eligible for Save. The frame source handle stays open so a new Record can
// restart the cycle; Close releases it.
func (c *Controller) Stop() error {
	if c.source == nil || c.released {
		return fmt.Errorf("%w: frame source is not open", ErrNotReady)
	}

	c.status = StatusStopped
	c.stoppedAt = c.now()

	if c.mic != nil {
		if err := c.mic.Stop(); err != nil {
			c.log.Log(diaglog.LogEntry{
				Component: diaglog.ComponentMicrophone,
				Event:     diaglog.EventMicStop,
				SessionID: c.sessionID(),
				Reason:    err.Error(),
			})
		}
	}

	err := c.closeWriter()

	c.log.Log(diaglog.LogEntry{
		Component: diaglog.ComponentController,
		Event:     diaglog.EventRecordStop,
		SessionID: c.sessionID(),
	})
	return err
}

// closeWriter finalizes the writer handle and resets all timestamp state to
// the invalid sentinel. Idempotent.
func (c *Controller) closeWriter() error {
	var err error
	if c.writer != nil {
		if cerr := c.writer.Close(); cerr != nil {
			err = fmt.Errorf("%w: finalizing frame writer: %v", ErrOperation, cerr)
		}
		c.writer = nil
	}
	c.startPts = invalidTimestamp
	c.absPts = invalidTimestamp
	c.pts = invalidTimestamp
	c.latched = false
	return err
}

// Close releases everything the controller still holds. It is a misuse
// error to call Close on a controller that was never opened. Secondary
// errors from already-partially-released collaborators are swallowed;
// teardown is best effort.
func (c *Controller) Close() error {
	if !c.opened {
		return fmt.Errorf("%w: controller was never opened", ErrMisuse)
	}
	if c.writer != nil {
		_ = c.writer.Close()
		c.writer = nil
	}
	if c.source != nil && !c.released {
		_ = c.source.Close()
		c.released = true
	}
	c.source = nil
	c.startPts = invalidTimestamp
	c.absPts = invalidTimestamp
	c.pts = invalidTimestamp
	c.latched = false
	return nil
}

// Save muxes the recorded video track and the microphone's audio track (if
// any) into path and returns the size in bytes of the produced file. Only
// valid while Stopped; a path of "" uses the configured output file. The
// temp session is swept after a successful mux.
func (c *Controller) Save(path string) (int64, error) {
	if c.status != StatusStopped {
		return 0, fmt.Errorf("%w: save requires a stopped recording, status is %s", ErrMisuse, c.status)
	}
	if c.session == nil {
		return 0, fmt.Errorf("%w: no recorded session to save", ErrNotReady)
	}
	if path == "" {
		path = c.outFile
	}
	if path == "" {
		return 0, fmt.Errorf("%w: no output path configured", ErrMisuse)
	}
	if c.stack.Muxer == nil {
		return 0, fmt.Errorf("%w: media stack has no muxer", ErrMisuse)
	}

	// The microphone streams into the session's audio file; it joins the
	// mux only when a capture actually landed there.
	audioPath := ""
	if _, err := os.Stat(c.session.AudioPath); err == nil {
		audioPath = c.session.AudioPath
	}

	c.log.Log(diaglog.LogEntry{
		Component: diaglog.ComponentMuxer,
		Event:     diaglog.EventMuxStart,
		SessionID: c.session.ID,
		Payload:   map[string]interface{}{"output": path, "has_audio": audioPath != ""},
	})

	if err := c.stack.Muxer.Combine(c.session.VideoPath, audioPath, path); err != nil {
		c.log.Log(diaglog.LogEntry{
			Component: diaglog.ComponentMuxer,
			Event:     diaglog.EventMuxFailed,
			SessionID: c.session.ID,
			Reason:    err.Error(),
		})
		return 0, fmt.Errorf("%w: muxing to %q: %v", ErrOperation, path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: muxed file missing at %q: %v", ErrOperation, path, err)
	}

	sidecar := &fileutil.ClipMetadata{
		Version:    diaglog.Version,
		SessionID:  c.session.ID,
		Device:     c.device,
		StartedAt:  c.startedAt,
		StoppedAt:  c.stoppedAt,
		Duration:   c.stoppedAt.Sub(c.startedAt).String(),
		DurationMs: c.stoppedAt.Sub(c.startedAt).Milliseconds(),
		FrameCount: c.frameIndex,
		HasAudio:   audioPath != "",
		OutputFile: path,
		SizeBytes:  info.Size(),
	}
	if c.meta != nil {
		sidecar.Width = c.meta.Width
		sidecar.Height = c.meta.Height
		sidecar.FrameRate = c.meta.FrameRate
		sidecar.PixelFormat = c.meta.PixelFormat
	}
	if err := fileutil.WriteMetadata(path, sidecar); err != nil {
		// The clip itself is intact; the sidecar is advisory.
		c.log.Log(diaglog.LogEntry{
			Component: diaglog.ComponentController,
			Event:     diaglog.EventMuxDone,
			SessionID: c.session.ID,
			Reason:    "sidecar write failed: " + err.Error(),
		})
	}

	c.log.Log(diaglog.LogEntry{
		Component: diaglog.ComponentMuxer,
		Event:     diaglog.EventMuxDone,
		SessionID: c.session.ID,
		Payload:   map[string]interface{}{"output": path, "bytes": info.Size()},
	})

	c.lastClip = path
	c.sweepSession("saved")
	return info.Size(), nil
}

// Snapshot is the single-photo entry point. It only applies in photo mode;
// the recording pipeline treats it as a no-op.
func (c *Controller) Snapshot() error {
	if c.mode != ModePhoto {
		return fmt.Errorf("%w: snapshot requires photo mode, controller is in %s mode", ErrMisuse, string(c.mode))
	}
	return nil
}

// SetOutFile configures the default Save destination. The path cannot
// change while a frame writer is open.
func (c *Controller) SetOutFile(path string) error {
	if c.writer != nil {
		return fmt.Errorf("%w: output path cannot change while the writer is open", ErrMisuse)
	}
	c.outFile = path
	return nil
}

func (c *Controller) sweepSession(reason string) {
	if c.session == nil {
		return
	}
	id := c.session.ID
	if err := c.session.Sweep(); err != nil {
		c.log.Log(diaglog.LogEntry{
			Component: diaglog.ComponentController,
			Event:     diaglog.EventTempSweep,
			SessionID: id,
			Reason:    reason + "; sweep failed: " + err.Error(),
		})
	} else {
		c.log.Log(diaglog.LogEntry{
			Component: diaglog.ComponentController,
			Event:     diaglog.EventTempSweep,
			SessionID: id,
			Reason:    reason,
		})
	}
	c.session = nil
}

func (c *Controller) sessionID() string {
	if c.session == nil {
		return ""
	}
	return c.session.ID
}

// ── Read-only accessors ──────────────────────────────────────────────────────

// Status reports the controller's lifecycle state.
func (c *Controller) Status() Status { return c.status }

// Mode reports the capture mode chosen at construction.
func (c *Controller) Mode() Mode { return c.mode }

// Device reports the device identifier the controller was built for.
func (c *Controller) Device() string { return c.device }

// IsReady reports whether the source is open and metadata has been primed.
func (c *Controller) IsReady() bool {
	return c.source != nil && !c.released && c.meta != nil
}

// StreamTime is the absolute timestamp of the most recent frame, in seconds
// since the source was opened, or -1 when no frame has been pulled.
func (c *Controller) StreamTime() float64 { return c.absPts }

// RecordingTime is the recording-relative timestamp of the most recent
// frame, or -1 outside a Recording session.
func (c *Controller) RecordingTime() float64 { return c.pts }

// Metadata returns the latest stream metadata, or nil before the first pull.
func (c *Controller) Metadata() *StreamMetadata { return c.meta }

// LastFrame returns the most recently pulled frame, or nil when none exists
// (never pulled, or reset by Record).
func (c *Controller) LastFrame() *Frame { return c.lastFrame }

// OutFile returns the configured default Save destination.
func (c *Controller) OutFile() string { return c.outFile }

// LastClip returns the path of the most recently saved clip, or "".
func (c *Controller) LastClip() string { return c.lastClip }

// FrameCount returns the number of frames delivered since construction.
func (c *Controller) FrameCount() int64 { return c.frameIndex }
