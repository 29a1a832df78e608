// Package activity implements the per-session activity notifier (C2): a
// transcript tailer that raises a single edge event per session when the
// agent finishes a turn the operator is waiting on.
package activity

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/waxb/c9s/internal/transcript"
)

// State is the notifier's state machine position.
type State int

const (
	Unknown State = iota
	UserSent
	Working
	Idle
	ToolWait
)

// toolWaitFallback is how long a ToolWait state may sit without the file
// growing before a bell fires anyway, for agents that stall silently after
// a tool invocation.
const toolWaitFallback = 5 * time.Second

// event is the minimal subset of a transcript line the state machine reads.
type event struct {
	Type       string `json:"type"`
	StopReason string `json:"stop_reason"`
	Compact    bool   `json:"isCompactSummary"`
}

// Notifier tails one transcript file and raises Poll()==true exactly once
// per turn the operator is waiting on.
type Notifier struct {
	projectDir string // used for lazy newest-file discovery
	path       string // resolved transcript path, "" if not yet found
	offset     int64
	state      State
	toolWaitAt time.Time
}

// New creates a notifier. path may be empty, in which case Poll lazily
// discovers the newest *.jsonl file under projectDir on each check.
func New(projectDir, path string) *Notifier {
	return &Notifier{projectDir: projectDir, path: path}
}

// Poll advances the state machine over any newly appended, complete lines
// and returns true if a bell should fire this call.
func (n *Notifier) Poll() bool {
	if n.path == "" {
		n.path = transcript.NewestSessionFile(n.projectDir)
		if n.path == "" {
			return false
		}
	}

	info, err := os.Stat(n.path)
	if err != nil {
		n.offset = 0
		return false
	}

	if info.Size() < n.offset {
		// File shrank (truncated/rotated): reset offset per spec.
		n.offset = 0
	}

	bell := false
	if info.Size() > n.offset {
		lines, newOffset := readNewLines(n.path, n.offset)
		n.offset = newOffset
		for _, line := range lines {
			if n.applyLine(line) {
				bell = true
			}
		}
	} else if n.state == ToolWait && !n.toolWaitAt.IsZero() && time.Since(n.toolWaitAt) >= toolWaitFallback {
		n.state = Working
		n.toolWaitAt = time.Time{}
		bell = true
	}

	return bell
}

func (n *Notifier) applyLine(raw []byte) bool {
	var e event
	if err := json.Unmarshal(raw, &e); err != nil {
		return false
	}

	switch {
	case e.Compact:
		n.state = Idle
		return true
	case e.Type == "user":
		n.state = UserSent
		n.toolWaitAt = time.Time{}
		return false
	case e.Type == "assistant" && e.StopReason == "end_turn":
		fire := n.state == UserSent || n.state == Working || n.state == ToolWait
		n.state = Idle
		n.toolWaitAt = time.Time{}
		return fire
	case e.Type == "assistant" && e.StopReason == "tool_use":
		n.state = ToolWait
		n.toolWaitAt = time.Now()
		return false
	case e.Type == "assistant" || e.Type == "progress" || e.Type == "result":
		if n.state != ToolWait {
			n.state = Working
		}
		return false
	default:
		return false
	}
}

func readNewLines(path string, offset int64) (lines [][]byte, newOffset int64) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, 0); err != nil {
			return nil, offset
		}
	}

	data, err := readAllFrom(f)
	if err != nil && len(data) == 0 {
		return nil, offset
	}

	newOffset = offset
	start := 0
	for i, b := range data {
		if b == '\n' {
			line := data[start:i]
			if len(line) > 0 {
				lines = append(lines, line)
			}
			newOffset += int64(i - start + 1)
			start = i + 1
		}
	}
	return lines, newOffset
}

func readAllFrom(f *os.File) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := f.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return buf, nil
			}
			return buf, err
		}
	}
}

// State returns the notifier's current state machine position, for tests
// and debugging.
func (n *Notifier) State() State { return n.state }

// TranscriptPath returns the resolved transcript path, if discovered.
func (n *Notifier) TranscriptPath() string { return n.path }
