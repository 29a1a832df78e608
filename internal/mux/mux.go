// Package mux implements the terminal multiplexer (C4): a keyed collection
// of embedded terminals with a single active cursor, attach/detach/cycle
// lifecycle, and bell fan-out from each session's activity notifier.
package mux

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/waxb/c9s/internal/activity"
	"github.com/waxb/c9s/internal/termio"
)

const killGracePeriod = 500 * time.Millisecond

// LiveLookup resolves a session key to a live pid, if any, so Attach can
// decide whether to signal an existing process before resuming it.
type LiveLookup func(key string) (pid int, ok bool)

// Mux owns the multiplexer's state. It is single-threaded: only the UI
// goroutine calls its methods.
type Mux struct {
	order     []string
	terminals map[string]*termio.Terminal
	notifiers map[string]*activity.Notifier
	activeID  string

	liveLookup LiveLookup
}

func New(liveLookup LiveLookup) *Mux {
	return &Mux{
		terminals:  map[string]*termio.Terminal{},
		notifiers:  map[string]*activity.Notifier{},
		liveLookup: liveLookup,
	}
}

// Attach resumes (or creates) the terminal for key, running resumeCmd.
// If a live process already owns this session's cwd, it is asked to exit
// first: SIGTERM, wait up to 500ms, then SIGKILL if still alive. A
// notifier is registered against projectDir/transcriptPath. The new
// terminal becomes active.
func (m *Mux) Attach(key, displayName, resumeCmd, projectDir, transcriptPath string, rows, cols int) error {
	if _, exists := m.terminals[key]; exists {
		m.setActive(key)
		return nil
	}

	if pid, ok := m.liveLookup(key); ok && pid > 0 {
		terminateExisting(pid)
	}

	term, err := termio.Spawn(key, displayName, resumeCmd, rows, cols)
	if err != nil {
		return fmt.Errorf("attach %s: %w", key, err)
	}

	m.terminals[key] = term
	m.notifiers[key] = activity.New(projectDir, transcriptPath)
	m.order = append(m.order, key)
	m.setActive(key)
	return nil
}

// AttachNew opens a free-form shell under a fresh uuid key, with no
// notifier, and makes it active.
func (m *Mux) AttachNew(shell string, rows, cols int) (string, error) {
	key := uuid.NewString()
	term, err := termio.Spawn(key, "shell", shell, rows, cols)
	if err != nil {
		return "", err
	}
	m.terminals[key] = term
	m.order = append(m.order, key)
	m.setActive(key)
	return key, nil
}

// AttachSSH launches an ssh command with the same shape as Attach but
// without registering a notifier.
func (m *Mux) AttachSSH(key, displayName, sshCommand string, rows, cols int) error {
	if _, exists := m.terminals[key]; exists {
		m.setActive(key)
		return nil
	}
	term, err := termio.Spawn(key, displayName, sshCommand, rows, cols)
	if err != nil {
		return fmt.Errorf("attach ssh %s: %w", key, err)
	}
	m.terminals[key] = term
	m.order = append(m.order, key)
	m.setActive(key)
	return nil
}

func terminateExisting(pid int) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	_ = proc.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			if err := proc.Signal(syscall.Signal(0)); err != nil {
				close(done)
				return
			}
			time.Sleep(killGracePeriod / 10)
		}
		close(done)
	}()
	<-done

	if err := proc.Signal(syscall.Signal(0)); err == nil {
		_ = proc.Signal(syscall.SIGKILL)
	}
}

func (m *Mux) setActive(key string) {
	m.activeID = key
	if term, ok := m.terminals[key]; ok {
		term.ClearBell()
	}
}

// Active returns the currently active terminal, or nil if none.
func (m *Mux) Active() *termio.Terminal {
	if m.activeID == "" {
		return nil
	}
	return m.terminals[m.activeID]
}

// ActiveKey returns the active session key, or "" if none.
func (m *Mux) ActiveKey() string { return m.activeID }

// CycleNext advances the active cursor forward, wrapping, and clears the
// new active terminal's bell.
func (m *Mux) CycleNext() { m.cycle(1) }

// CyclePrev advances the active cursor backward, wrapping.
func (m *Mux) CyclePrev() { m.cycle(-1) }

func (m *Mux) cycle(dir int) {
	if len(m.order) == 0 {
		return
	}
	idx := indexOf(m.order, m.activeID)
	if idx < 0 {
		m.setActive(m.order[0])
		return
	}
	next := (idx + dir + len(m.order)) % len(m.order)
	m.setActive(m.order[next])
}

// Detach clears the active cursor; terminals stay alive.
func (m *Mux) Detach() { m.activeID = "" }

// RemoveActive drops the active terminal, releasing its PTY.
func (m *Mux) RemoveActive() {
	if m.activeID == "" {
		return
	}
	m.remove(m.activeID)
	m.activeID = ""
}

func (m *Mux) remove(key string) {
	if term, ok := m.terminals[key]; ok {
		term.Close()
		delete(m.terminals, key)
	}
	delete(m.notifiers, key)
	m.order = removeString(m.order, key)
}

// CleanupInactiveExited drops any non-active terminal whose child has
// exited.
func (m *Mux) CleanupInactiveExited() {
	for _, key := range append([]string{}, m.order...) {
		if key == m.activeID {
			continue
		}
		if term, ok := m.terminals[key]; ok && term.Exited() {
			m.remove(key)
		}
	}
}

// PollBells polls every notifier once. For each that fires, it sets that
// terminal's bell/bell_blink. At most one BEL is written to stderr per
// call, however many notifiers fire; the remaining notifiers are still
// polled and their terminals' bells still set.
func (m *Mux) PollBells() {
	emitted := false
	for _, key := range m.order {
		n, ok := m.notifiers[key]
		if !ok {
			continue
		}
		if n.Poll() {
			if term, ok := m.terminals[key]; ok {
				term.SetBell()
			}
			if !emitted {
				fmt.Fprint(os.Stderr, "\x07")
				emitted = true
			}
		}
	}
}

// Keys returns the insertion-ordered session keys currently attached.
func (m *Mux) Keys() []string {
	return append([]string{}, m.order...)
}

// Terminal returns the terminal for key, if attached.
func (m *Mux) Terminal(key string) (*termio.Terminal, bool) {
	t, ok := m.terminals[key]
	return t, ok
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
