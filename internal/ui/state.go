// Package ui implements the application state machine and render tree
// (C10) and the terminal event loop that drives it (C11).
package ui

import (
	"sort"
	"strings"
	"time"

	"github.com/waxb/c9s/internal/discovery"
	"github.com/waxb/c9s/internal/inputx"
	"github.com/waxb/c9s/internal/mux"
	"github.com/waxb/c9s/internal/tervezo"
)

// Flash is a transient status-line message shown after an action
// completes, cleared automatically after flashDuration.
type Flash struct {
	Text    string
	IsError bool
	At      time.Time
}

const flashDuration = 4 * time.Second

// State is the single root of the application's view-model. Every
// render function reads from State; every input Action mutates it.
type State struct {
	Mode inputx.ViewMode

	Width, Height int

	// Local sessions (C1).
	LocalSessions   []discovery.LocalSession
	SelectedLocal   int
	Filter          string
	FilterActive    bool
	filteredCache   []discovery.LocalSession
	lastFilterValue string

	// Remote implementations (C6-C9).
	Client         *tervezo.Client
	RemoteItems    []tervezo.Implementation
	SelectedRemote int
	RemoteFilter   string
	Detail         *tervezo.Detail
	DetailTab      tervezo.Tab
	Dispatcher     *tervezo.Dispatcher
	PendingAction  tervezo.ActionKind
	PromptInput    string

	// Terminal multiplexer (C4) and quick-switcher.
	Mux            *mux.Mux
	QSwitcherIndex int

	// Log view (C10's Log mode) backed by the applog ring buffer.
	LogLines []string

	Flash *Flash

	QuitConfirmPending bool

	// Dirty is set whenever a render is owed; the event loop clears it
	// after drawing a frame.
	Dirty bool
}

// NewState creates an initial List-mode state. client is kept to
// construct a Detail/Dispatcher when the user opens a remote item.
func NewState(m *mux.Mux, client *tervezo.Client) *State {
	return &State{
		Mode:   inputx.ModeList,
		Mux:    m,
		Client: client,
		Dirty:  true,
	}
}

// SetFlash records a status-line message to display for flashDuration.
func (s *State) SetFlash(text string, isError bool) {
	s.Flash = &Flash{Text: text, IsError: isError, At: time.Now()}
	s.Dirty = true
}

// ExpireFlash clears Flash once flashDuration has elapsed; called once
// per tick.
func (s *State) ExpireFlash(now time.Time) {
	if s.Flash != nil && now.Sub(s.Flash.At) >= flashDuration {
		s.Flash = nil
		s.Dirty = true
	}
}

// FilteredLocal returns LocalSessions matching Filter (case-insensitive
// substring over DisplayName, CWD, GitBranch, model name, and status
// label), re-deriving only when Filter or the underlying list has
// changed since the last call.
func (s *State) FilteredLocal() []discovery.LocalSession {
	if s.Filter == "" {
		return s.LocalSessions
	}
	if s.Filter == s.lastFilterValue && s.filteredCache != nil {
		return s.filteredCache
	}
	needle := strings.ToLower(s.Filter)
	out := make([]discovery.LocalSession, 0, len(s.LocalSessions))
	for _, sess := range s.LocalSessions {
		if strings.Contains(strings.ToLower(sess.DisplayName), needle) ||
			strings.Contains(strings.ToLower(sess.CWD), needle) ||
			strings.Contains(strings.ToLower(sess.GitBranch), needle) ||
			strings.Contains(strings.ToLower(sess.Model), needle) ||
			strings.Contains(strings.ToLower(sess.Status.String()), needle) {
			out = append(out, sess)
		}
	}
	s.filteredCache = out
	s.lastFilterValue = s.Filter
	return out
}

// FilteredRemote returns RemoteItems matching RemoteFilter (case-
// insensitive substring over title, branch, and status).
func (s *State) FilteredRemote() []tervezo.Implementation {
	if s.RemoteFilter == "" {
		return s.RemoteItems
	}
	needle := strings.ToLower(s.RemoteFilter)
	out := make([]tervezo.Implementation, 0, len(s.RemoteItems))
	for _, item := range s.RemoteItems {
		if strings.Contains(strings.ToLower(item.Title), needle) ||
			strings.Contains(strings.ToLower(item.Branch), needle) ||
			strings.Contains(strings.ToLower(string(item.Status)), needle) {
			out = append(out, item)
		}
	}
	return out
}

// ReplaceLocalSessions installs a fresh discovery refresh, clamping the
// selection index and invalidating the filter cache.
func (s *State) ReplaceLocalSessions(sessions []discovery.LocalSession) {
	s.LocalSessions = sessions
	s.filteredCache = nil
	s.lastFilterValue = "\x00" // force recompute even for an empty Filter
	if n := len(s.FilteredLocal()); s.SelectedLocal >= n {
		s.SelectedLocal = n - 1
	}
	if s.SelectedLocal < 0 {
		s.SelectedLocal = 0
	}
	s.Dirty = true
}

// ReplaceRemoteItems installs a fresh list-fetcher snapshot sorted by
// most-recently-updated first, clamping the selection.
func (s *State) ReplaceRemoteItems(items []tervezo.Implementation) {
	sorted := append([]tervezo.Implementation(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UpdatedAt > sorted[j].UpdatedAt })
	s.RemoteItems = sorted
	if s.SelectedRemote >= len(sorted) {
		s.SelectedRemote = len(sorted) - 1
	}
	if s.SelectedRemote < 0 {
		s.SelectedRemote = 0
	}
	s.Dirty = true
}

// CurrentLocalSession returns the selected row of FilteredLocal, if any.
func (s *State) CurrentLocalSession() (discovery.LocalSession, bool) {
	list := s.FilteredLocal()
	if s.SelectedLocal < 0 || s.SelectedLocal >= len(list) {
		return discovery.LocalSession{}, false
	}
	return list[s.SelectedLocal], true
}

// CurrentRemoteItem returns the selected row of FilteredRemote, if any.
func (s *State) CurrentRemoteItem() (tervezo.Implementation, bool) {
	list := s.FilteredRemote()
	if s.SelectedRemote < 0 || s.SelectedRemote >= len(list) {
		return tervezo.Implementation{}, false
	}
	return list[s.SelectedRemote], true
}

// MoveSelection shifts SelectedLocal (List/Filter modes), SelectedRemote
// (RemoteList mode), or QSwitcherIndex (switcher overlays) by delta,
// clamped.
func (s *State) MoveSelection(delta int) {
	switch s.Mode {
	case inputx.ModeList, inputx.ModeFilter:
		n := len(s.FilteredLocal())
		s.SelectedLocal = clamp(s.SelectedLocal+delta, 0, n-1)
	case inputx.ModeRemoteList:
		n := len(s.FilteredRemote())
		s.SelectedRemote = clamp(s.SelectedRemote+delta, 0, n-1)
	case inputx.ModeQSwitcher, inputx.ModeTerminalQSwitcher:
		n := 0
		if s.Mux != nil {
			n = len(s.Mux.Keys())
		}
		s.QSwitcherIndex = clamp(s.QSwitcherIndex+delta, 0, n-1)
	}
	s.Dirty = true
}

// activeSessionIsLive reports whether the currently-attached terminal
// (if any) belongs to a session whose status is Active or Thinking —
// the condition under which quitting from List requires confirmation.
func (s *State) activeSessionIsLive() bool {
	if s.Mux == nil {
		return false
	}
	return activeKeyIsLive(s.LocalSessions, s.Mux.ActiveKey())
}

// activeKeyIsLive is the pure core of activeSessionIsLive, split out so
// it can be tested without a real Mux attachment.
func activeKeyIsLive(sessions []discovery.LocalSession, activeKey string) bool {
	if activeKey == "" {
		return false
	}
	for _, sess := range sessions {
		if sess.ID == activeKey {
			return sess.Status == discovery.StatusActive || sess.Status == discovery.StatusThinking
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
