package camera

import "fmt"

// ValueUnknown fills descriptor fields the OS could not report.
const ValueUnknown = "unknown"

// SizeUnknown is the sentinel frame-size/frame-rate component for fields the
// enumerator could not determine.
const SizeUnknown = -1

// DeviceDescriptor describes one physical camera as reported by the OS. It
// is built by the device enumerator (or directly by the user) and treated as
// immutable afterwards. The name is OS-defined: a human-readable label on
// Windows/macOS, a device path such as /dev/video0 on Linux. Exactly one of
// PixelFormat/CodecFormat is meaningfully set; the other carries
// ValueUnknown — they are alternative configuration axes, never both
// required.
type DeviceDescriptor struct {
	name           string
	frameWidth     int
	frameHeight    int
	frameRateMin   int
	frameRateMax   int
	pixelFormat    string
	codecFormat    string
	cameraLib      string // informational: backend library in use
	cameraAPI      string // informational: OS capture API, e.g. v4l2, dshow
}

// NewDeviceDescriptor returns a descriptor with every field at its unknown
// sentinel. Use the setters to fill in what the OS reported.
func NewDeviceDescriptor(name string) *DeviceDescriptor {
	return &DeviceDescriptor{
		name:         name,
		frameWidth:   SizeUnknown,
		frameHeight:  SizeUnknown,
		frameRateMin: SizeUnknown,
		frameRateMax: SizeUnknown,
		pixelFormat:  ValueUnknown,
		codecFormat:  ValueUnknown,
		cameraLib:    ValueUnknown,
		cameraAPI:    ValueUnknown,
	}
}

// Name returns the OS-defined device identifier.
func (d *DeviceDescriptor) Name() string { return d.name }

// FrameSize returns the (width, height) the device reported, or the
// SizeUnknown pair.
func (d *DeviceDescriptor) FrameSize() (int, int) { return d.frameWidth, d.frameHeight }

// FrameRateRange returns the (min, max) supported frame rate, or the
// SizeUnknown pair.
func (d *DeviceDescriptor) FrameRateRange() (int, int) { return d.frameRateMin, d.frameRateMax }

// PixelFormat returns the stream pixel format, or ValueUnknown when the
// device is configured through CodecFormat instead.
func (d *DeviceDescriptor) PixelFormat() string { return d.pixelFormat }

// CodecFormat returns the stream codec format, or ValueUnknown when the
// device is configured through PixelFormat instead.
func (d *DeviceDescriptor) CodecFormat() string { return d.codecFormat }

// CameraLib returns the capture backend label. Informational only.
func (d *DeviceDescriptor) CameraLib() string { return d.cameraLib }

// CameraAPI returns the OS capture API label. Informational only.
func (d *DeviceDescriptor) CameraAPI() string { return d.cameraAPI }

// SetFrameSize validates and records the frame size. Both components must
// be positive; malformed input fails here, at assignment time.
func (d *DeviceDescriptor) SetFrameSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("frame size components must be positive, got %dx%d", width, height)
	}
	d.frameWidth, d.frameHeight = width, height
	return nil
}

// SetFrameRateRange validates and records the supported frame-rate range.
// An inverted range (min > max) is rejected.
func (d *DeviceDescriptor) SetFrameRateRange(min, max int) error {
	if min <= 0 || max <= 0 {
		return fmt.Errorf("frame rate range components must be positive, got (%d, %d)", min, max)
	}
	if min > max {
		return fmt.Errorf("frame rate range must satisfy min <= max, got (%d, %d)", min, max)
	}
	d.frameRateMin, d.frameRateMax = min, max
	return nil
}

// SetPixelFormat records the pixel format and resets the codec format to
// its unknown sentinel.
func (d *DeviceDescriptor) SetPixelFormat(format string) {
	d.pixelFormat = format
	d.codecFormat = ValueUnknown
}

// SetCodecFormat records the codec format and resets the pixel format to
// its unknown sentinel.
func (d *DeviceDescriptor) SetCodecFormat(format string) {
	d.codecFormat = format
	d.pixelFormat = ValueUnknown
}

// SetCameraAPI records the informational capture API label.
func (d *DeviceDescriptor) SetCameraAPI(api string) { d.cameraAPI = api }

// SetCameraLib records the informational backend library label.
func (d *DeviceDescriptor) SetCameraLib(lib string) { d.cameraLib = lib }

// SupportedFrameRate reports whether rate falls inside the device's
// advertised frame-rate range.
func (d *DeviceDescriptor) SupportedFrameRate(rate float64) bool {
	return float64(d.frameRateMin) <= rate && rate <= float64(d.frameRateMax)
}
