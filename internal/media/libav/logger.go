// Package libav implements the media collaborator interfaces on top of the
// go-astiav FFmpeg bindings: a device frame source, an H.264/MP4 frame
// writer, a swscale pixel converter, a stream-copy muxer, and an audio
// capture microphone.
package libav

import (
	"strings"

	"github.com/asticode/go-astiav"

	"github.com/camcord/camcord/internal/diaglog"
)

// ConfigureLogging routes libav's own log lines into the diagnostic log.
// Call once at process start; a nil logger silences libav entirely.
func ConfigureLogging(log *diaglog.Logger) {
	if log == nil {
		log = diaglog.NewNoOp()
	}
	astiav.SetLogLevel(astiav.LogLevelError)
	astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, format, msg string) {
		var class string
		if c != nil {
			if cl := c.Class(); cl != nil {
				class = cl.String()
			}
		}
		log.Log(diaglog.LogEntry{
			Component: diaglog.ComponentFrameSource,
			Event:     diaglog.EventLibavMessage,
			Payload: map[string]interface{}{
				"level": int(l),
				"class": class,
				"msg":   strings.TrimSpace(msg),
			},
		})
	})
}
