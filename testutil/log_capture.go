package testutil

import (
	"bytes"
	"log"
	"strings"
	"sync"
)

// LogRecorder collects the output of stdlib log.Loggers so daemon tests can
// assert on what was reported. One recorder can back both the out and err
// loggers; writes are serialized.
type LogRecorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

// Logger returns a logger writing into the recorder with the given prefix.
// Flags are off so assertions see stable lines.
func (r *LogRecorder) Logger(prefix string) *log.Logger {
	return log.New(r, prefix, 0)
}

func (r *LogRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// String returns everything recorded so far.
func (r *LogRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

// Reset clears the recorded output.
func (r *LogRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.Reset()
}

// Contains reports whether the recorded output contains substr.
func (r *LogRecorder) Contains(substr string) bool {
	return strings.Contains(r.String(), substr)
}

// Count returns how many times substr appears in the recorded output.
func (r *LogRecorder) Count(substr string) int {
	return strings.Count(r.String(), substr)
}

// Lines returns the recorded output split into lines.
func (r *LogRecorder) Lines() []string {
	content := strings.TrimSpace(r.String())
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// LastLine returns the most recently recorded line, or "".
func (r *LogRecorder) LastLine() string {
	lines := r.Lines()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
