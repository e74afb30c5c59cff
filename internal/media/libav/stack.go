package libav

import (
	"github.com/camcord/camcord/internal/media"
)

// NewStack bundles the libav-backed collaborators into the media.Stack the
// capture controller consumes.
func NewStack() media.Stack {
	return media.Stack{
		OpenSource: func(device string, opts media.SourceOptions) (media.FrameSource, error) {
			return OpenSource(device, opts)
		},
		OpenWriter: func(path string, cfg media.WriterConfig) (media.FrameWriter, error) {
			return OpenWriter(path, cfg)
		},
		Converter: NewConverter(),
		Muxer:     Muxer{},
	}
}
