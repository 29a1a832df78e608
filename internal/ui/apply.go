package ui

import (
	"os"

	"github.com/waxb/c9s/internal/inputx"
	"github.com/waxb/c9s/internal/tervezo"
)

// Apply mutates State in response to a decoded key event, dispatching
// through inputx.Translate for the current mode. It owns all
// mode-transition logic; render.go only reads the result.
func Apply(s *State, raw inputx.KeyEvent) {
	// Mode-local editing (Filter text entry, Prompt input) intercepts
	// printable runes before falling through to Translate's static
	// action table.
	switch s.Mode {
	case inputx.ModeFilter:
		if handleFilterEditing(s, raw) {
			return
		}
	case inputx.ModeTervezoPromptInput:
		if handlePromptEditing(s, raw) {
			return
		}
	case inputx.ModeTervezoActionMenu:
		if handleActionMenu(s, raw) {
			return
		}
	case inputx.ModeTervezoConfirm:
		if handleConfirm(s, raw) {
			return
		}
	}

	action := inputx.Translate(s.Mode, raw)
	applyAction(s, action, raw)
}

func handleFilterEditing(s *State, k inputx.KeyEvent) bool {
	switch k.Named {
	case "esc":
		s.Mode = inputx.ModeList
		s.Dirty = true
		return true
	case "enter":
		s.Mode = inputx.ModeList
		s.Dirty = true
		return true
	case "backspace":
		if n := len(s.Filter); n > 0 {
			s.Filter = s.Filter[:n-1]
			s.Dirty = true
		}
		return true
	}
	if k.Rune != 0 && !k.Ctrl && !k.Alt {
		s.Filter += string(k.Rune)
		s.Dirty = true
		return true
	}
	return false
}

func handlePromptEditing(s *State, k inputx.KeyEvent) bool {
	switch k.Named {
	case "esc":
		s.Mode = inputx.ModeTervezoDetail
		s.PromptInput = ""
		s.Dirty = true
		return true
	case "enter":
		if s.Dispatcher != nil && s.PromptInput != "" {
			s.Dispatcher.Dispatch(tervezo.ActionSendPrompt, s.PromptInput)
		}
		s.Mode = inputx.ModeTervezoDetail
		s.PromptInput = ""
		s.Dirty = true
		return true
	case "backspace":
		if n := len(s.PromptInput); n > 0 {
			s.PromptInput = s.PromptInput[:n-1]
			s.Dirty = true
		}
		return true
	}
	if k.Rune != 0 && !k.Ctrl && !k.Alt {
		s.PromptInput += string(k.Rune)
		s.Dirty = true
		return true
	}
	return false
}

// handleActionMenu maps the action-menu's letter bindings to a pending
// action, routing destructive ones through a confirm step first.
func handleActionMenu(s *State, k inputx.KeyEvent) bool {
	var kind tervezo.ActionKind
	switch k.Rune {
	case 'c':
		kind = tervezo.ActionCreatePR
	case 'm':
		kind = tervezo.ActionMergePR
	case 'x':
		kind = tervezo.ActionClosePR
	case 'o':
		kind = tervezo.ActionReopenPR
	case 'r':
		kind = tervezo.ActionRestart
	default:
		if k.Named == "esc" {
			s.Mode = inputx.ModeTervezoDetail
			s.Dirty = true
			return true
		}
		return false
	}

	s.PendingAction = kind
	if kind.RequiresConfirm() {
		s.Mode = inputx.ModeTervezoConfirm
	} else {
		dispatchPending(s)
		s.Mode = inputx.ModeTervezoDetail
	}
	s.Dirty = true
	return true
}

func handleConfirm(s *State, k inputx.KeyEvent) bool {
	switch k.Rune {
	case 'y', 'Y':
		dispatchPending(s)
		s.Mode = inputx.ModeTervezoDetail
		s.Dirty = true
		return true
	case 'n', 'N':
		s.Mode = inputx.ModeTervezoDetail
		s.Dirty = true
		return true
	}
	if k.Named == "esc" {
		s.Mode = inputx.ModeTervezoDetail
		s.Dirty = true
		return true
	}
	return false
}

func dispatchPending(s *State) {
	if s.Dispatcher != nil {
		s.Dispatcher.Dispatch(s.PendingAction, "")
	}
}

func applyAction(s *State, a inputx.Action, raw inputx.KeyEvent) {
	switch a.Kind {
	case inputx.NoOp:
		return

	case inputx.Quit:
		s.QuitConfirmPending = true
		return

	case inputx.RequestQuit:
		if s.Mode == inputx.ModeList && s.activeSessionIsLive() {
			s.Mode = inputx.ModeConfirmQuit
			s.Dirty = true
			return
		}
		s.QuitConfirmPending = true
		return

	case inputx.MoveUp:
		s.MoveSelection(-1)
	case inputx.MoveDown:
		s.MoveSelection(1)
	case inputx.ScrollUp10:
		s.MoveSelection(-10)
	case inputx.ScrollDown10:
		s.MoveSelection(10)

	case inputx.OpenQSwitcher:
		if s.Mode == inputx.ModeTerminal {
			s.Mode = inputx.ModeTerminalQSwitcher
		} else {
			s.Mode = inputx.ModeQSwitcher
		}
		s.QSwitcherIndex = 0
		s.Dirty = true

	case inputx.CycleNext:
		if s.Mux != nil {
			s.Mux.CycleNext()
			s.Dirty = true
		}
	case inputx.CyclePrev:
		if s.Mux != nil {
			s.Mux.CyclePrev()
			s.Dirty = true
		}

	case inputx.Detach:
		if s.Mux != nil {
			s.Mux.Detach()
		}
		s.Mode = inputx.ModeList
		s.Dirty = true

	case inputx.ForwardKey:
		if s.Mux != nil {
			if term := s.Mux.Active(); term != nil {
				encoded := inputx.EncodeKey(a.Key)
				term.Write(encoded)
			}
		}

	case inputx.WheelScroll3:
		if s.Mux != nil {
			if term := s.Mux.Active(); term != nil {
				if a.Key.Named == "up" {
					term.ScrollUp(3)
				} else {
					term.ScrollDown(3)
				}
				s.Dirty = true
			}
		}

	case inputx.SwitchListPane:
		if s.Mode == inputx.ModeList {
			s.Mode = inputx.ModeRemoteList
		} else if s.Mode == inputx.ModeRemoteList {
			s.Mode = inputx.ModeList
		}
		s.Dirty = true

	case inputx.NextTab:
		s.DetailTab = (s.DetailTab + 1) % 6
		if s.Detail != nil {
			s.Detail.ActivateTab(s.DetailTab)
		}
		s.Dirty = true
	case inputx.PrevTab:
		s.DetailTab = (s.DetailTab + 5) % 6
		if s.Detail != nil {
			s.Detail.ActivateTab(s.DetailTab)
		}
		s.Dirty = true

	case inputx.OpenActionsMenu:
		s.Mode = inputx.ModeTervezoActionMenu
		s.Dirty = true

	case inputx.OpenPrompt:
		s.Mode = inputx.ModeTervezoPromptInput
		s.PromptInput = ""
		s.Dirty = true

	case inputx.RefreshDetail:
		s.Dirty = true

	case inputx.OpenFilter:
		s.Mode = inputx.ModeFilter
		s.Dirty = true

	case inputx.ToggleHelp:
		if s.Mode == inputx.ModeHelp {
			s.Mode = inputx.ModeList
		} else {
			s.Mode = inputx.ModeHelp
		}
		s.Dirty = true

	case inputx.CloseOverlay:
		if s.Mode == inputx.ModeTervezoDetail {
			closeDetail(s)
		}
		s.Mode = closeOverlayTarget(s.Mode)
		s.Dirty = true

	case inputx.SelectEnter:
		openSelection(s)

	case inputx.AttachShell:
		if s.Mux != nil {
			shell := os.Getenv("SHELL")
			if shell == "" {
				shell = "/bin/bash"
			}
			if _, err := s.Mux.AttachNew(shell, s.Height, s.Width); err == nil {
				s.Mode = inputx.ModeTerminal
				s.Dirty = true
			}
		}
	}
}

// closeOverlayTarget returns the mode Esc falls back to from each
// dismissable overlay.
func closeOverlayTarget(mode inputx.ViewMode) inputx.ViewMode {
	switch mode {
	case inputx.ModeHelp, inputx.ModeQSwitcher, inputx.ModeConfirmQuit, inputx.ModeLog:
		return inputx.ModeList
	case inputx.ModeTerminalQSwitcher:
		return inputx.ModeTerminal
	case inputx.ModeDetail:
		return inputx.ModeList
	case inputx.ModeTervezoDetail:
		return inputx.ModeRemoteList
	default:
		return mode
	}
}

// ApplyActionResult applies one drained tervezo.ActionResult to State:
// it flashes the outcome and, if the action restarted into a fresh
// implementation, rebuilds the detail view for the new id.
func ApplyActionResult(s *State, result tervezo.ActionResult) {
	if result.Navigate != "" {
		if s.Client != nil {
			if impl, err := s.Client.Get(result.Navigate); err == nil {
				openDetailFor(s, impl)
			}
		}
		s.SetFlash("Restarted -> "+result.Navigate, false)
		return
	}
	if result.Err != nil {
		s.SetFlash(result.Err.Error(), true)
		return
	}
	s.SetFlash(result.Message, false)
}

// closeDetail tears down the open detail controller and its SSE stream
// before leaving ModeTervezoDetail, per the construct-on-enter/
// tear-down-on-leave lifecycle.
func closeDetail(s *State) {
	if s.Detail != nil {
		s.Detail.Close()
		s.Detail = nil
	}
	s.Dispatcher = nil
	s.DetailTab = 0
}

// openSelection opens the currently highlighted row: a local session
// resumes its embedded terminal, entries in the quick switcher activate
// directly.
func openSelection(s *State) {
	switch s.Mode {
	case inputx.ModeList, inputx.ModeFilter:
		sess, ok := s.CurrentLocalSession()
		if !ok || s.Mux == nil {
			return
		}
		key := sess.ID
		resumeCmd := "claude --resume " + sess.ID
		if err := s.Mux.Attach(key, sess.DisplayName, resumeCmd, sess.CWD, "", s.Height, s.Width); err == nil {
			s.Mode = inputx.ModeTerminal
		}
		s.Dirty = true

	case inputx.ModeQSwitcher, inputx.ModeTerminalQSwitcher:
		if s.Mux == nil {
			return
		}
		keys := s.Mux.Keys()
		if s.QSwitcherIndex < 0 || s.QSwitcherIndex >= len(keys) {
			return
		}
		s.Mux.Attach(keys[s.QSwitcherIndex], "", "", "", "", s.Height, s.Width)
		s.Mode = inputx.ModeTerminal
		s.Dirty = true

	case inputx.ModeRemoteList:
		openDetailForSelection(s)
	}
}

// openDetailForSelection constructs a fresh Detail/Dispatcher for the
// highlighted remote item and enters the detail view.
func openDetailForSelection(s *State) {
	item, ok := s.CurrentRemoteItem()
	if !ok || s.Client == nil {
		return
	}
	openDetailFor(s, item)
}

// openDetailFor tears down any existing detail controller and opens a
// new one for impl, entering ModeTervezoDetail.
func openDetailFor(s *State, impl tervezo.Implementation) {
	closeDetail(s)
	s.Detail = tervezo.OpenDetail(s.Client, impl)
	s.Dispatcher = tervezo.NewDispatcher(s.Client, impl.ID)
	s.DetailTab = tervezo.TabTimeline
	s.Mode = inputx.ModeTervezoDetail
	s.Dirty = true
}
