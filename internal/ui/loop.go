package ui

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/waxb/c9s/internal/applog"
	"github.com/waxb/c9s/internal/discovery"
	"github.com/waxb/c9s/internal/inputx"
	"github.com/waxb/c9s/internal/tervezo"
)

const (
	tickInterval      = 16 * time.Millisecond
	discoveryInterval = 5 * time.Second
	readChunk         = 256
)

// Loop owns the raw-mode terminal, the single-threaded event poll, and
// the five dirty sources an App frame can be redrawn from: key input,
// PTY output, discovery refresh, tervezo list/detail updates, and
// resize. This is the hand-rolled C11 loop: c9s owns the PTYs and the
// mouse-capture toggle directly rather than handing the terminal to a
// separate runtime.
type Loop struct {
	State     *State
	Discovery *discovery.Discovery
	ListFetch *tervezo.ListFetcher
	Client    *tervezo.Client
	Log       *applog.Logger
	AgentCmd  string

	stdinFD int
}

// NewLoop wires a Loop around an already-constructed State.
func NewLoop(s *State, disc *discovery.Discovery, lf *tervezo.ListFetcher, client *tervezo.Client, logger *applog.Logger, agentCmd string) *Loop {
	return &Loop{
		State:     s,
		Discovery: disc,
		ListFetch: lf,
		Client:    client,
		Log:       logger,
		AgentCmd:  agentCmd,
		stdinFD:   int(os.Stdin.Fd()),
	}
}

// Run enters raw mode, drives the event loop until Quit is confirmed or
// a panic is recovered, then always restores the terminal before
// returning — so a crash never leaves the user's shell in raw mode or
// mouse-capture on.
func (l *Loop) Run() error {
	oldState, err := term.MakeRaw(l.stdinFD)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}

	l.enableMouse()
	defer func() {
		l.disableMouse()
		term.Restore(l.stdinFD, oldState)
		if r := recover(); r != nil {
			if l.Log != nil {
				l.Log.Printf("panic recovered: %v", r)
			}
			fmt.Fprintf(os.Stderr, "c9s: fatal: %v\n", r)
		}
	}()

	keys := make(chan inputx.KeyEvent, 64)
	go l.readKeys(keys)

	resize := make(chan os.Signal, 1)
	signal.Notify(resize, syscall.SIGWINCH)
	defer signal.Stop(resize)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	lastDiscovery := time.Time{}

	for {
		select {
		case k := <-keys:
			wasMouseOn := mouseModeFor(l.State.Mode)
			Apply(l.State, k)
			if l.State.QuitConfirmPending {
				return nil
			}
			if mouseModeFor(l.State.Mode) != wasMouseOn {
				l.syncMouse()
			}

		case <-resize:
			l.handleResize()
			l.State.Dirty = true

		case <-ticker.C:
			now := time.Now()
			l.State.ExpireFlash(now)

			if l.State.Mux != nil {
				l.State.Mux.PollBells()
				l.State.Mux.CleanupInactiveExited()
				if term := l.State.Mux.Active(); term != nil && term.TakeDirty() {
					l.State.Dirty = true
				}
			}

			if l.State.Detail != nil {
				if l.State.Detail.Drain() {
					l.State.Dirty = true
				}
				if msg := l.State.Detail.TakeStreamErr(); msg != "" {
					l.State.SetFlash(msg, true)
				}
			}

			l.drainActionResults()

			if l.ListFetch != nil && l.ListFetch.TakeDirty() {
				if items, _ := l.ListFetch.Snapshot(); items != nil {
					l.State.ReplaceRemoteItems(items)
				}
			}

			if l.State.Mode != inputx.ModeTerminal && l.State.Mode != inputx.ModeTerminalQSwitcher &&
				now.Sub(lastDiscovery) >= discoveryInterval {
				if l.Discovery != nil {
					l.State.ReplaceLocalSessions(l.Discovery.Refresh())
				}
				lastDiscovery = now
			}

			if l.State.Dirty {
				l.draw()
				l.State.Dirty = false
			}
		}
	}
}

// drainActionResults applies every outcome the action dispatcher has
// queued (success/error flash, restart navigation) since the last tick.
func (l *Loop) drainActionResults() {
	if l.State.Dispatcher == nil {
		return
	}
	for {
		select {
		case result := <-l.State.Dispatcher.Results:
			ApplyActionResult(l.State, result)
			l.State.Dirty = true
		default:
			return
		}
	}
}

func (l *Loop) draw() {
	frame := Render(l.State)
	// Clear screen and home cursor, then draw; a full redraw every dirty
	// tick keeps the renderer stateless and simple at 16ms granularity.
	os.Stdout.WriteString("\x1b[2J\x1b[H")
	os.Stdout.WriteString(frame)
}

func (l *Loop) readKeys(out chan<- inputx.KeyEvent) {
	buf := make([]byte, readChunk)
	pending := make([]byte, 0, readChunk)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			close(out)
			return
		}
		pending = append(pending, buf[:n]...)
		for len(pending) > 0 {
			k, consumed := decodeKey(pending)
			if consumed == 0 {
				break
			}
			out <- k
			pending = pending[consumed:]
		}
	}
}

func (l *Loop) handleResize() {
	cols, rows, err := term.GetSize(l.stdinFD)
	if err != nil {
		return
	}
	l.State.Width, l.State.Height = cols, rows
	if l.State.Mux != nil {
		if active := l.State.Mux.Active(); active != nil {
			active.Resize(rows, cols)
		}
	}
}

// mouseModeFor reports whether the mouse should be captured in mode.
// Capture is enabled everywhere except Terminal and Log, where wheel
// events and selections belong to the child PTY or the raw log text
// instead of scrolling c9s's own list/detail views.
func mouseModeFor(mode inputx.ViewMode) bool {
	return mode != inputx.ModeTerminal && mode != inputx.ModeLog
}

func (l *Loop) enableMouse() {
	if mouseModeFor(l.State.Mode) {
		os.Stdout.WriteString("\x1b[?1000h")
	}
}

func (l *Loop) disableMouse() {
	os.Stdout.WriteString("\x1b[?1000l")
}

func (l *Loop) syncMouse() {
	if mouseModeFor(l.State.Mode) {
		os.Stdout.WriteString("\x1b[?1000h")
	} else {
		os.Stdout.WriteString("\x1b[?1000l")
	}
}
