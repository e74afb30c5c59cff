package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"

	"github.com/camcord/camcord/internal/media"
)

// writerTimeBase is the encoder time base denominator. Recording-relative
// timestamps arrive as float seconds and are quantized against it.
const writerTimeBase = 90000

// Writer encodes raw frames into an H.264 MP4 file. It satisfies
// media.FrameWriter.
type Writer struct {
	closer    *astikit.Closer
	formatCtx *astiav.FormatContext
	codecCtx  *astiav.CodecContext
	stream    *astiav.Stream
	frame     *astiav.Frame
	packet    *astiav.Packet
	closed    bool
}

// OpenWriter creates path as an MP4 container with a single H.264 video
// stream sized from cfg. Frames pushed through WriteFrame must already be
// in cfg.PixelFormatIn.
func OpenWriter(path string, cfg media.WriterConfig) (_ *Writer, errRet error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("writer needs a positive frame size, got %dx%d", cfg.Width, cfg.Height)
	}
	frameRate := cfg.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}

	w := &Writer{closer: astikit.NewCloser()}
	defer func() {
		if errRet != nil {
			w.closer.Close()
		}
	}()

	formatCtx, err := astiav.AllocOutputFormatContext(nil, "mp4", path)
	if err != nil {
		return nil, fmt.Errorf("allocating output format context failed: %w", err)
	}
	if formatCtx == nil {
		return nil, errors.New("unable to allocate the output format context")
	}
	w.formatCtx = formatCtx
	w.closer.Add(w.formatCtx.Free)

	codec := astiav.FindEncoder(astiav.CodecIDH264)
	if codec == nil {
		return nil, errors.New("no H.264 encoder compiled into libav")
	}

	pixFmt := astiav.FindPixelFormatByName(cfg.PixelFormatIn)
	if pixFmt == astiav.PixelFormatNone {
		return nil, fmt.Errorf("unknown pixel format %q", cfg.PixelFormatIn)
	}

	w.codecCtx = astiav.AllocCodecContext(codec)
	if w.codecCtx == nil {
		return nil, errors.New("unable to allocate codec context")
	}
	w.closer.Add(w.codecCtx.Free)

	w.codecCtx.SetWidth(cfg.Width)
	w.codecCtx.SetHeight(cfg.Height)
	w.codecCtx.SetPixelFormat(pixFmt)
	w.codecCtx.SetTimeBase(astiav.NewRational(1, writerTimeBase))
	w.codecCtx.SetFramerate(astiav.NewRational(int(frameRate+0.5), 1))
	// MP4 wants stream-global codec config, not in-band headers.
	w.codecCtx.SetFlags(w.codecCtx.Flags().Add(astiav.CodecContextFlagGlobalHeader))

	if err := w.codecCtx.Open(codec, nil); err != nil {
		return nil, fmt.Errorf("opening codec context failed: %w", err)
	}

	w.stream = w.formatCtx.NewStream(nil)
	if w.stream == nil {
		return nil, errors.New("unable to create output stream")
	}
	if err := w.stream.CodecParameters().FromCodecContext(w.codecCtx); err != nil {
		return nil, fmt.Errorf("updating codec parameters failed: %w", err)
	}
	w.stream.SetTimeBase(w.codecCtx.TimeBase())

	if !w.formatCtx.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		ioCtx, err := astiav.OpenIOContext(path, astiav.NewIOContextFlags(astiav.IOContextFlagWrite))
		if err != nil {
			return nil, fmt.Errorf("opening io context failed: %w", err)
		}
		w.closer.AddWithError(ioCtx.Close)
		w.formatCtx.SetPb(ioCtx)
	}

	if err := w.formatCtx.WriteHeader(nil); err != nil {
		return nil, fmt.Errorf("writing header failed: %w", err)
	}

	w.frame = astiav.AllocFrame()
	w.closer.Add(w.frame.Free)
	w.frame.SetWidth(cfg.Width)
	w.frame.SetHeight(cfg.Height)
	w.frame.SetPixelFormat(pixFmt)
	if err := w.frame.AllocBuffer(1); err != nil {
		return nil, fmt.Errorf("allocating frame buffer failed: %w", err)
	}

	w.packet = astiav.AllocPacket()
	w.closer.Add(w.packet.Free)

	return w, nil
}

// WriteFrame encodes one frame. buf must be in the configured input pixel
// format; pts is the recording-relative timestamp in seconds.
func (w *Writer) WriteFrame(buf []byte, pts float64, streamIndex int) error {
	if w.closed {
		return errors.New("writer is closed")
	}
	if streamIndex != 0 {
		return fmt.Errorf("writer has a single stream, got index %d", streamIndex)
	}

	if err := w.frame.MakeWritable(); err != nil {
		return fmt.Errorf("making frame writable: %w", err)
	}
	if err := w.frame.Data().SetBytes(buf, 1); err != nil {
		return fmt.Errorf("filling frame data: %w", err)
	}
	w.frame.SetPts(int64(pts * writerTimeBase))

	if err := w.codecCtx.SendFrame(w.frame); err != nil {
		return fmt.Errorf("sending frame to encoder: %w", err)
	}
	return w.drainPackets()
}

// drainPackets pulls every packet the encoder has ready and writes it into
// the container.
func (w *Writer) drainPackets() error {
	for {
		if err := w.codecCtx.ReceivePacket(w.packet); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("receiving packet from encoder: %w", err)
		}
		w.packet.SetStreamIndex(w.stream.Index())
		w.packet.RescaleTs(w.codecCtx.TimeBase(), w.stream.TimeBase())
		if err := w.formatCtx.WriteInterleavedFrame(w.packet); err != nil {
			w.packet.Unref()
			return fmt.Errorf("writing packet failed: %w", err)
		}
		w.packet.Unref()
	}
}

// Close flushes the encoder, finalizes the container, and releases all
// handles. Idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if err := w.codecCtx.SendFrame(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		errs = append(errs, fmt.Errorf("flushing encoder: %w", err))
	}
	if err := w.drainPackets(); err != nil {
		errs = append(errs, err)
	}
	if err := w.formatCtx.WriteTrailer(); err != nil {
		errs = append(errs, fmt.Errorf("writing trailer failed: %w", err))
	}
	w.closer.Close()
	return errors.Join(errs...)
}
