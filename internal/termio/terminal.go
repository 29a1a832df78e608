// Package termio embeds a child process in a pseudo-terminal and keeps a
// scrollback-aware VT100 screen for it (C3).
package termio

import (
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/creack/pty"
	"github.com/hinshun/vt10x"
)

// ScrollbackLines is the fixed scrollback depth per embedded terminal.
// hinshun/vt10x renders only the live screen grid, so c9s layers a ring
// buffer of prior screen rows on top of it to satisfy the scrollback
// requirement (see DESIGN.md).
const ScrollbackLines = 10000

// Terminal is one embedded pseudo-terminal plus its VT100 screen. The PTY
// master write half belongs to whichever goroutine calls Write/Resize
// (the UI thread in practice); the read half belongs exclusively to the
// reader goroutine spawned by Spawn. The VT100 parser (vt) and the
// scrollback ring are guarded by mu since both the reader and the UI
// thread (on resize/scroll) touch them.
type Terminal struct {
	SessionKey  string
	DisplayName string

	cmd    *exec.Cmd
	master *os.File

	mu           sync.Mutex
	vt           vt10x.Terminal
	scrollback   [][]byte // ring of prior rendered rows, oldest first
	scrollOffset int      // 0 = pinned to live screen; >0 = rows scrolled back

	exited    atomic.Bool
	bell      atomic.Bool
	bellBlink atomic.Bool
	dirty     atomic.Bool
}

// Spawn opens a PTY of the given size and launches a login-shell wrapper
// that exports GPG_TTY then execs cmdline, matching the documented child
// command contract. A reader goroutine feeds the master's output into the
// VT100 parser until EOF or error, at which point it sets exited and
// dirty and returns.
func Spawn(sessionKey, displayName, cmdline string, rows, cols int) (*Terminal, error) {
	shellCmd := "export GPG_TTY=$(tty); exec " + cmdline
	cmd := exec.Command("bash", "-l", "-c", shellCmd)

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, err
	}

	t := &Terminal{
		SessionKey:  sessionKey,
		DisplayName: displayName,
		cmd:         cmd,
		master:      master,
		vt:          vt10x.New(vt10x.WithSize(cols, rows)),
	}

	go t.readLoop()
	return t, nil
}

func (t *Terminal) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := t.master.Read(buf)
		if n > 0 {
			t.mu.Lock()
			t.pushScrollback()
			t.vt.Write(buf[:n])
			t.mu.Unlock()
			t.dirty.Store(true)
		}
		if err != nil {
			t.exited.Store(true)
			t.dirty.Store(true)
			return
		}
	}
}

// pushScrollback snapshots the top row of the live screen into the ring,
// called with mu held before every chunk of output is fed to the parser,
// whether or not that chunk scrolls the screen; the ring is capped at
// ScrollbackLines.
func (t *Terminal) pushScrollback() {
	cols, rows := t.vt.Size()
	if rows == 0 {
		return
	}
	row := make([]byte, 0, cols)
	for x := 0; x < cols; x++ {
		ch, _, _ := t.vt.Cell(x, 0)
		row = append(row, []byte(string(ch))...)
	}
	t.scrollback = append(t.scrollback, row)
	if len(t.scrollback) > ScrollbackLines {
		t.scrollback = t.scrollback[len(t.scrollback)-ScrollbackLines:]
	}
}

// Write sends bytes to the PTY master (keystrokes forwarded to the child).
// Per the write-path contract this resets scrollback, clears bell/blink,
// and marks dirty.
func (t *Terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	t.scrollOffset = 0
	t.mu.Unlock()
	t.bell.Store(false)
	t.bellBlink.Store(false)
	n, err := t.master.Write(p)
	t.dirty.Store(true)
	return n, err
}

// ScrollUp moves the scrollback offset up (toward history) by n lines.
func (t *Terminal) ScrollUp(n int) {
	t.mu.Lock()
	t.scrollOffset += n
	if t.scrollOffset > len(t.scrollback) {
		t.scrollOffset = len(t.scrollback)
	}
	t.mu.Unlock()
	t.dirty.Store(true)
}

// ScrollDown moves the scrollback offset down (toward live) by n lines.
func (t *Terminal) ScrollDown(n int) {
	t.mu.Lock()
	t.scrollOffset -= n
	if t.scrollOffset < 0 {
		t.scrollOffset = 0
	}
	t.mu.Unlock()
	t.dirty.Store(true)
}

// ScrollOffset returns the current scrollback offset (0 = pinned to live).
func (t *Terminal) ScrollOffset() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollOffset
}

// Resize resizes the PTY and the VT100 screen together.
func (t *Terminal) Resize(rows, cols int) error {
	t.mu.Lock()
	t.vt.Resize(cols, rows)
	t.mu.Unlock()
	return pty.Setsize(t.master, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Exited reports whether the child process has exited (read returned EOF
// or error on the master).
func (t *Terminal) Exited() bool { return t.exited.Load() }

// Bell reports whether a bell is currently flagged on this terminal.
func (t *Terminal) Bell() bool { return t.bell.Load() }

// BellBlink reports the blink phase used to render the bell indicator.
func (t *Terminal) BellBlink() bool { return t.bellBlink.Load() }

// SetBell raises the bell and bell-blink flags, used by the multiplexer
// when a session's activity notifier fires.
func (t *Terminal) SetBell() {
	t.bell.Store(true)
	t.bellBlink.Store(true)
}

// ClearBell clears both bell flags, on attach/cycle/write of this terminal.
func (t *Terminal) ClearBell() {
	t.bell.Store(false)
	t.bellBlink.Store(false)
}

// TakeDirty is a swap-false that returns the prior dirty value.
func (t *Terminal) TakeDirty() bool {
	return t.dirty.Swap(false)
}

// WithScreen runs fn with the VT100 parser locked, for the renderer to
// read cells/cursor without racing the reader goroutine.
func (t *Terminal) WithScreen(fn func(vt vt10x.Terminal)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.vt)
}

// Close releases the PTY master. It neither signals nor waits for the
// child process.
func (t *Terminal) Close() error {
	return t.master.Close()
}

// Signal sends a signal to the child process.
func (t *Terminal) Signal(sig os.Signal) error {
	if t.cmd.Process == nil {
		return nil
	}
	return t.cmd.Process.Signal(sig)
}

// Pid returns the child process's pid, or 0 if not started.
func (t *Terminal) Pid() int {
	if t.cmd.Process == nil {
		return 0
	}
	return t.cmd.Process.Pid
}
