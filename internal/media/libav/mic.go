package libav

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"

	"github.com/camcord/camcord/internal/media"
)

// audioAPIForOS maps the runtime OS to its libav audio input device.
func audioAPIForOS(goos string) (api, defaultDevice string, err error) {
	switch goos {
	case "linux":
		return "alsa", "default", nil
	case "darwin":
		return "avfoundation", ":0", nil
	case "windows":
		return "dshow", "", nil
	}
	return "", "", fmt.Errorf("no audio input device for %s", goos)
}

// Microphone captures an OS audio device into a WAV file by stream copy.
// Record starts a background pump goroutine; Stop joins it and finalizes
// the file. It satisfies media.Microphone: start and stop are fire and
// forget from the controller's point of view.
type Microphone struct {
	device string
	path   string

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	pumpErr error
}

// NewMicrophone builds a microphone capturing from device. An empty device
// selects the platform default. The destination file is supplied per capture
// by Record.
func NewMicrophone(device string) *Microphone {
	return &Microphone{device: device}
}

var _ media.Microphone = (*Microphone)(nil)

// Record opens the audio device and starts pumping packets into a WAV
// container at path until Stop.
func (m *Microphone) Record(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh != nil {
		return errors.New("microphone is already recording")
	}
	if path == "" {
		return errors.New("microphone needs a destination file")
	}
	m.path = path

	api, defaultDevice, err := audioAPIForOS(runtime.GOOS)
	if err != nil {
		return err
	}
	device := m.device
	if device == "" {
		device = defaultDevice
	}
	if api == "dshow" {
		device = "audio=" + device
	}

	closer := astikit.NewCloser()
	ok := false
	defer func() {
		if !ok {
			closer.Close()
		}
	}()

	inputFormat := astiav.FindInputFormat(api)
	if inputFormat == nil {
		return fmt.Errorf("audio input device %q is not compiled into libav", api)
	}

	inCtx := astiav.AllocFormatContext()
	if inCtx == nil {
		return errors.New("unable to allocate a format context")
	}
	closer.Add(inCtx.Free)
	if err := inCtx.OpenInput(device, inputFormat, nil); err != nil {
		return fmt.Errorf("unable to open audio device %q via %s: %w", device, api, err)
	}
	closer.Add(inCtx.CloseInput)
	if err := inCtx.FindStreamInfo(nil); err != nil {
		return fmt.Errorf("unable to get audio stream info: %w", err)
	}

	var inStream *astiav.Stream
	for _, is := range inCtx.Streams() {
		if is.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			inStream = is
			break
		}
	}
	if inStream == nil {
		return fmt.Errorf("audio device %q exposes no audio stream", device)
	}

	outCtx, err := astiav.AllocOutputFormatContext(nil, "wav", m.path)
	if err != nil {
		return fmt.Errorf("allocating wav output failed: %w", err)
	}
	if outCtx == nil {
		return errors.New("unable to allocate the wav output context")
	}
	closer.Add(outCtx.Free)

	outStream := outCtx.NewStream(nil)
	if outStream == nil {
		return errors.New("unable to create wav output stream")
	}
	if err := inStream.CodecParameters().Copy(outStream.CodecParameters()); err != nil {
		return fmt.Errorf("copying audio codec parameters failed: %w", err)
	}

	if !outCtx.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		ioCtx, err := astiav.OpenIOContext(m.path, astiav.NewIOContextFlags(astiav.IOContextFlagWrite))
		if err != nil {
			return fmt.Errorf("opening io context for %q failed: %w", m.path, err)
		}
		closer.AddWithError(ioCtx.Close)
		outCtx.SetPb(ioCtx)
	}

	if err := outCtx.WriteHeader(nil); err != nil {
		return fmt.Errorf("writing wav header failed: %w", err)
	}

	packet := astiav.AllocPacket()
	closer.Add(packet.Free)

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.pumpErr = nil
	ok = true

	go m.pump(closer, inCtx, outCtx, inStream, outStream, packet)
	return nil
}

// pump copies packets device -> wav until the stop signal, then finalizes.
func (m *Microphone) pump(closer *astikit.Closer, inCtx, outCtx *astiav.FormatContext, inStream, outStream *astiav.Stream, packet *astiav.Packet) {
	defer close(m.doneCh)
	defer closer.Close()

	for {
		select {
		case <-m.stopCh:
			if err := outCtx.WriteTrailer(); err != nil {
				m.pumpErr = fmt.Errorf("writing wav trailer failed: %w", err)
			}
			return
		default:
		}

		if err := inCtx.ReadFrame(packet); err != nil {
			if errors.Is(err, astiav.ErrEagain) {
				continue
			}
			if !errors.Is(err, astiav.ErrEof) {
				m.pumpErr = fmt.Errorf("reading audio packet failed: %w", err)
			}
			if err := outCtx.WriteTrailer(); err != nil && m.pumpErr == nil {
				m.pumpErr = fmt.Errorf("writing wav trailer failed: %w", err)
			}
			return
		}
		if packet.StreamIndex() != inStream.Index() {
			packet.Unref()
			continue
		}
		packet.SetStreamIndex(outStream.Index())
		packet.RescaleTs(inStream.TimeBase(), outStream.TimeBase())
		packet.SetPos(-1)
		if err := outCtx.WriteInterleavedFrame(packet); err != nil {
			packet.Unref()
			m.pumpErr = fmt.Errorf("writing audio packet failed: %w", err)
			return
		}
		packet.Unref()
	}
}

// Stop signals the pump to finish and waits for the WAV file to be
// finalized. Safe to call when not recording.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh == nil {
		return nil
	}
	close(m.stopCh)
	<-m.doneCh
	m.stopCh = nil
	m.doneCh = nil
	return m.pumpErr
}
