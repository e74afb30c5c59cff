package libav

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"

	"github.com/camcord/camcord/internal/media"
)

// Muxer combines a finished video-only file and an optional audio-only file
// into one container by stream copy. No re-encode happens here; true AV
// sync correction belongs to the container interleaving.
type Muxer struct{}

var _ media.Muxer = Muxer{}

// track is one open input feeding the remux.
type track struct {
	formatCtx *astiav.FormatContext
	stream    *astiav.Stream
	outStream *astiav.Stream
}

// Combine remuxes videoPath and, when non-empty, audioPath into outputPath.
func (Muxer) Combine(videoPath, audioPath, outputPath string) (errRet error) {
	closer := astikit.NewCloser()
	defer closer.Close()

	outFormat := strings.TrimPrefix(filepath.Ext(outputPath), ".")
	if outFormat == "" {
		outFormat = "mp4"
	}
	outCtx, err := astiav.AllocOutputFormatContext(nil, outFormat, outputPath)
	if err != nil {
		return fmt.Errorf("allocating output format context failed: %w", err)
	}
	if outCtx == nil {
		return errors.New("unable to allocate the output format context")
	}
	closer.Add(outCtx.Free)

	openTrack := func(path string, mediaType astiav.MediaType) (*track, error) {
		tr := &track{}
		tr.formatCtx = astiav.AllocFormatContext()
		if tr.formatCtx == nil {
			return nil, errors.New("unable to allocate a format context")
		}
		closer.Add(tr.formatCtx.Free)
		if err := tr.formatCtx.OpenInput(path, nil, nil); err != nil {
			return nil, fmt.Errorf("unable to open %q: %w", path, err)
		}
		closer.Add(tr.formatCtx.CloseInput)
		if err := tr.formatCtx.FindStreamInfo(nil); err != nil {
			return nil, fmt.Errorf("unable to get stream info for %q: %w", path, err)
		}
		for _, is := range tr.formatCtx.Streams() {
			if is.CodecParameters().MediaType() == mediaType {
				tr.stream = is
				break
			}
		}
		if tr.stream == nil {
			return nil, fmt.Errorf("%q has no %v stream", path, mediaType)
		}
		tr.outStream = outCtx.NewStream(nil)
		if tr.outStream == nil {
			return nil, errors.New("unable to create output stream")
		}
		if err := tr.stream.CodecParameters().Copy(tr.outStream.CodecParameters()); err != nil {
			return nil, fmt.Errorf("copying codec parameters failed: %w", err)
		}
		return tr, nil
	}

	tracks := make([]*track, 0, 2)
	video, err := openTrack(videoPath, astiav.MediaTypeVideo)
	if err != nil {
		return err
	}
	tracks = append(tracks, video)

	if audioPath != "" {
		audio, err := openTrack(audioPath, astiav.MediaTypeAudio)
		if err != nil {
			return err
		}
		tracks = append(tracks, audio)
	}

	if !outCtx.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		ioCtx, err := astiav.OpenIOContext(outputPath, astiav.NewIOContextFlags(astiav.IOContextFlagWrite))
		if err != nil {
			return fmt.Errorf("opening io context for %q failed: %w", outputPath, err)
		}
		closer.AddWithError(ioCtx.Close)
		outCtx.SetPb(ioCtx)
	}

	if err := outCtx.WriteHeader(nil); err != nil {
		return fmt.Errorf("writing header failed: %w", err)
	}

	packet := astiav.AllocPacket()
	closer.Add(packet.Free)

	for _, tr := range tracks {
		for {
			if err := tr.formatCtx.ReadFrame(packet); err != nil {
				if errors.Is(err, astiav.ErrEof) {
					break
				}
				return fmt.Errorf("reading packet failed: %w", err)
			}
			if packet.StreamIndex() != tr.stream.Index() {
				packet.Unref()
				continue
			}
			packet.SetStreamIndex(tr.outStream.Index())
			packet.RescaleTs(tr.stream.TimeBase(), tr.outStream.TimeBase())
			packet.SetPos(-1)
			if err := outCtx.WriteInterleavedFrame(packet); err != nil {
				packet.Unref()
				return fmt.Errorf("writing packet failed: %w", err)
			}
			packet.Unref()
		}
	}

	if err := outCtx.WriteTrailer(); err != nil {
		return fmt.Errorf("writing trailer failed: %w", err)
	}
	return nil
}
