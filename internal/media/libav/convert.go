package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/camcord/camcord/internal/media"
)

// Converter rewrites raw frame buffers between pixel formats with swscale.
// It caches one scale context per conversion signature because camera
// streams keep a fixed geometry for their lifetime. Not safe for concurrent
// use, matching the single-owner contract of the capture controller.
type Converter struct {
	contexts map[convKey]*astiav.SoftwareScaleContext
	src      *astiav.Frame
	dst      *astiav.Frame
}

type convKey struct {
	width, height int
	srcFmt        string
	dstFmt        string
}

// NewConverter returns an empty converter; scale contexts are built lazily.
func NewConverter() *Converter {
	return &Converter{
		contexts: make(map[convKey]*astiav.SoftwareScaleContext),
		src:      astiav.AllocFrame(),
		dst:      astiav.AllocFrame(),
	}
}

var _ media.PixelConverter = (*Converter)(nil)

// Convert returns buf rewritten from srcFormat to dstFormat at the same
// geometry.
func (c *Converter) Convert(buf []byte, width, height int, srcFormat, dstFormat string) ([]byte, error) {
	if srcFormat == dstFormat {
		out := make([]byte, len(buf))
		copy(out, buf)
		return out, nil
	}

	srcPF := astiav.FindPixelFormatByName(srcFormat)
	if srcPF == astiav.PixelFormatNone {
		return nil, fmt.Errorf("unknown source pixel format %q", srcFormat)
	}
	dstPF := astiav.FindPixelFormatByName(dstFormat)
	if dstPF == astiav.PixelFormatNone {
		return nil, fmt.Errorf("unknown destination pixel format %q", dstFormat)
	}

	key := convKey{width: width, height: height, srcFmt: srcFormat, dstFmt: dstFormat}
	sws, ok := c.contexts[key]
	if !ok {
		var err error
		sws, err = astiav.CreateSoftwareScaleContext(
			width, height, srcPF,
			width, height, dstPF,
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
		)
		if err != nil {
			return nil, fmt.Errorf("creating scale context %s->%s: %w", srcFormat, dstFormat, err)
		}
		c.contexts[key] = sws
	}

	c.src.Unref()
	c.src.SetWidth(width)
	c.src.SetHeight(height)
	c.src.SetPixelFormat(srcPF)
	if err := c.src.AllocBuffer(1); err != nil {
		return nil, fmt.Errorf("allocating source frame: %w", err)
	}
	if err := c.src.Data().SetBytes(buf, 1); err != nil {
		return nil, fmt.Errorf("filling source frame: %w", err)
	}

	c.dst.Unref()
	if err := sws.ScaleFrame(c.src, c.dst); err != nil {
		return nil, fmt.Errorf("scaling frame: %w", err)
	}

	out, err := c.dst.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("extracting converted bytes: %w", err)
	}
	result := make([]byte, len(out))
	copy(result, out)
	return result, nil
}

// Close frees the cached scale contexts and scratch frames.
func (c *Converter) Close() error {
	if c.contexts == nil {
		return errors.New("converter already closed")
	}
	for _, sws := range c.contexts {
		sws.Free()
	}
	c.contexts = nil
	c.src.Free()
	c.dst.Free()
	return nil
}
