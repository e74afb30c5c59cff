package libav

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"

	"github.com/camcord/camcord/internal/media"
)

// captureAPIForOS maps the runtime OS to its libav input device.
func captureAPIForOS(goos string) (string, error) {
	switch goos {
	case "linux":
		return "v4l2", nil
	case "darwin":
		return "avfoundation", nil
	case "windows":
		return "dshow", nil
	}
	return "", fmt.Errorf("no capture input device for %s", goos)
}

// deviceURL adapts the device identifier to the input device's addressing
// convention. dshow wants a "video=Name" pseudo-URL; the others take the
// identifier as is.
func deviceURL(api, device string) string {
	if api == "dshow" {
		return "video=" + device
	}
	return device
}

// Source is a live camera stream decoded into discrete frames. It satisfies
// media.FrameSource with single-attempt pulls: the caller owns the waiting.
type Source struct {
	closer       *astikit.Closer
	formatCtx    *astiav.FormatContext
	stream       *astiav.Stream
	codecCtx     *astiav.CodecContext
	packet       *astiav.Packet
	frame        *astiav.Frame
	draining     bool // input hit EOF, decoder flush in progress
	closed       bool
}

// OpenSource opens the camera identified by device through the platform's
// libav input device, configured with opts, and sets up a software decoder
// on its video stream.
func OpenSource(device string, opts media.SourceOptions) (_ *Source, errRet error) {
	api, err := captureAPIForOS(runtime.GOOS)
	if err != nil {
		return nil, err
	}

	s := &Source{closer: astikit.NewCloser()}
	defer func() {
		if errRet != nil {
			s.closer.Close()
		}
	}()

	inputFormat := astiav.FindInputFormat(api)
	if inputFormat == nil {
		return nil, fmt.Errorf("input device %q is not compiled into libav", api)
	}

	s.formatCtx = astiav.AllocFormatContext()
	if s.formatCtx == nil {
		return nil, errors.New("unable to allocate a format context")
	}
	s.closer.Add(s.formatCtx.Free)

	dict := astiav.NewDictionary()
	s.closer.Add(dict.Free)
	if opts.FrameRate > 0 {
		dict.Set("framerate", strconv.Itoa(opts.FrameRate), 0)
	}
	if opts.Width > 0 && opts.Height > 0 {
		dict.Set("video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height), 0)
	}
	if opts.PixelFormat != "" {
		dict.Set("pixel_format", opts.PixelFormat, 0)
	}
	if opts.BufferSize > 0 {
		dict.Set("rtbufsize", strconv.Itoa(opts.BufferSize), 0)
	}

	if err := s.formatCtx.OpenInput(deviceURL(api, device), inputFormat, dict); err != nil {
		return nil, fmt.Errorf("unable to open %q via %s: %w", device, api, err)
	}
	s.closer.Add(s.formatCtx.CloseInput)

	if err := s.formatCtx.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("unable to get stream info: %w", err)
	}

	for _, is := range s.formatCtx.Streams() {
		if is.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			s.stream = is
			break
		}
	}
	if s.stream == nil {
		return nil, fmt.Errorf("device %q exposes no video stream", device)
	}

	codec := astiav.FindDecoder(s.stream.CodecParameters().CodecID())
	if codec == nil {
		return nil, fmt.Errorf("unable to find a decoder for codec ID %v", s.stream.CodecParameters().CodecID())
	}
	s.codecCtx = astiav.AllocCodecContext(codec)
	if s.codecCtx == nil {
		return nil, errors.New("unable to allocate codec context")
	}
	s.closer.Add(s.codecCtx.Free)
	if err := s.stream.CodecParameters().ToCodecContext(s.codecCtx); err != nil {
		return nil, fmt.Errorf("updating codec context failed: %w", err)
	}
	s.codecCtx.SetFramerate(s.formatCtx.GuessFrameRate(s.stream, nil))
	if err := s.codecCtx.Open(codec, nil); err != nil {
		return nil, fmt.Errorf("opening codec context failed: %w", err)
	}

	s.packet = astiav.AllocPacket()
	s.closer.Add(s.packet.Free)
	s.frame = astiav.AllocFrame()
	s.closer.Add(s.frame.Free)

	return s, nil
}

// PullFrame makes one attempt to produce the next decoded frame. It returns
// (nil, nil) when the decoder simply has nothing ready yet. Once the input
// signals EOF the decoder is flushed and the drained frames carry
// EndOfStream.
func (s *Source) PullFrame() (*media.SourceFrame, error) {
	if s.closed {
		return nil, errors.New("source is closed")
	}

	if !s.draining {
		if err := s.formatCtx.ReadFrame(s.packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				s.draining = true
				if err := s.codecCtx.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEagain) {
					return nil, fmt.Errorf("flushing decoder: %w", err)
				}
			} else if errors.Is(err, astiav.ErrEagain) {
				return nil, nil
			} else {
				return nil, fmt.Errorf("reading from device: %w", err)
			}
		} else {
			if s.packet.StreamIndex() != s.stream.Index() {
				s.packet.Unref()
				return nil, nil
			}
			err := s.codecCtx.SendPacket(s.packet)
			s.packet.Unref()
			if err != nil && !errors.Is(err, astiav.ErrEagain) {
				return nil, fmt.Errorf("sending packet to decoder: %w", err)
			}
		}
	}

	if err := s.codecCtx.ReceiveFrame(s.frame); err != nil {
		if errors.Is(err, astiav.ErrEagain) {
			return nil, nil
		}
		if errors.Is(err, astiav.ErrEof) {
			// Decoder fully drained: one final empty end-of-stream marker.
			return nil, nil
		}
		return nil, fmt.Errorf("receiving frame from decoder: %w", err)
	}
	defer s.frame.Unref()

	buf, err := s.frame.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("extracting frame bytes: %w", err)
	}
	out := make([]byte, len(buf))
	copy(out, buf)

	return &media.SourceFrame{
		Buffer:      out,
		Width:       s.frame.Width(),
		Height:      s.frame.Height(),
		PixelFormat: s.frame.PixelFormat().Name(),
		Timestamp:   float64(s.frame.Pts()) * s.stream.TimeBase().Float64(),
		EndOfStream: s.draining,
	}, nil
}

// Metadata reports the stream parameters as the decoder currently sees them.
func (s *Source) Metadata() media.StreamInfo {
	return media.StreamInfo{
		Width:       s.codecCtx.Width(),
		Height:      s.codecCtx.Height(),
		FrameRate:   s.codecCtx.Framerate().Float64(),
		PixelFormat: s.codecCtx.PixelFormat().Name(),
	}
}

// Close releases the device and decoder resources. Idempotent.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.closer.Close()
	return nil
}
