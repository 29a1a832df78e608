// Package applog wraps the standard log.Logger so every log line also
// lands in an in-memory ring buffer the Log view mode (C10) renders,
// while still writing through to the durable logfile on disk.
package applog

import (
	"io"
	"log"
	"os"
	"sync"
)

const ringCapacity = 2000

// Ring is a fixed-capacity, thread-safe line buffer feeding the TUI's
// Log view.
type Ring struct {
	mu    sync.Mutex
	lines []string
}

func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, string(p))
	if len(r.lines) > ringCapacity {
		r.lines = r.lines[len(r.lines)-ringCapacity:]
	}
	return len(p), nil
}

// Lines returns a snapshot of the buffered lines, oldest first.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Logger is the process-wide applog instance: a *log.Logger that fans
// out to the durable logfile and the in-TUI ring buffer.
type Logger struct {
	*log.Logger
	Ring *Ring
	file *os.File
}

// New opens path (creating parent directories is the caller's
// responsibility) and returns a Logger writing to both it and an
// in-memory ring for the Log view.
func New(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	ring := &Ring{}
	out := io.MultiWriter(f, ring)
	return &Logger{
		Logger: log.New(out, "", log.LstdFlags),
		Ring:   ring,
		file:   f,
	}, nil
}

// Close releases the underlying logfile handle.
func (l *Logger) Close() error {
	return l.file.Close()
}
