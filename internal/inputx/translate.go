// Package inputx translates raw key events into abstract Actions per view
// mode (C5), and encodes key events into the raw bytes forwarded to an
// attached PTY.
package inputx

import "github.com/charmbracelet/bubbles/key"

// ViewMode is the subset of C10's view modes the translator needs to
// discriminate Terminal-like modes (which absorb most keys as PTY input)
// from every other mode (where keys map to Actions).
type ViewMode int

const (
	ModeList ViewMode = iota
	ModeFilter
	ModeDetail
	ModeHelp
	ModeQSwitcher
	ModeTerminal
	ModeTerminalQSwitcher
	ModeCommand
	ModeConfirmQuit
	ModeRemoteList
	ModeTervezoDetail
	ModeTervezoActionMenu
	ModeTervezoConfirm
	ModeTervezoPromptInput
	ModeLog
)

func (m ViewMode) isTerminal() bool {
	return m == ModeTerminal || m == ModeTerminalQSwitcher
}

// Action is the small abstract vocabulary the main loop interprets. Key is
// set only for ForwardKey (the key to forward) and WheelScroll3 (Named
// "up" or "down").
type Action struct {
	Kind ActionKind
	Key  KeyEvent
}

type ActionKind int

const (
	NoOp ActionKind = iota
	Quit
	RequestQuit
	Detach
	OpenQSwitcher
	CycleNext
	CyclePrev
	ScrollUp10
	ScrollDown10
	ForwardKey
	NextTab
	PrevTab
	ScrollTimelineUp
	ScrollTimelineDown
	ToggleAutoscroll
	ScrollTabContentUp
	ScrollTabContentDown
	HalfPageUp
	HalfPageDown
	TimelineTop
	TimelineBottom
	ToggleExpandChanges
	OpenSSH
	RefreshDetail
	OpenActionsMenu
	OpenPrompt
	ToggleRawMarkdown
	WheelScroll3
	MoveUp
	MoveDown
	OpenFilter
	CloseOverlay
	SelectEnter
	ToggleHelp
	AttachShell
	SwitchListPane
)

// KeyEvent is the minimal shape of a terminal key event the translator
// reads: a rune for printable keys, a named special key otherwise, and
// the standard modifier flags.
type KeyEvent struct {
	Rune  rune
	Named string // "enter", "esc", "backspace", "tab", "up", "down", "left", "right",
	// "home", "end", "pgup", "pgdown", "delete", "insert", "f1".."f12",
	// "wheelup", "wheeldown", ""
	Ctrl  bool
	Alt   bool
	Shift bool
}

// Translate is the pure (ViewMode, KeyEvent) -> Action function.
func Translate(mode ViewMode, k KeyEvent) Action {
	if k.Named == "wheelup" {
		return WheelAction(mode, true)
	}
	if k.Named == "wheeldown" {
		return WheelAction(mode, false)
	}

	if mode == ModeConfirmQuit {
		return translateConfirmQuit(k)
	}

	if !mode.isTerminal() && k.Ctrl && k.Rune == 'c' {
		return Action{Kind: Quit}
	}

	if mode == ModeTerminalQSwitcher {
		if a, ok := translateListLike(k, false); ok {
			return a
		}
		if k.Named == "esc" {
			return Action{Kind: CloseOverlay}
		}
	}

	if mode.isTerminal() {
		return translateTerminal(k)
	}

	if mode == ModeTervezoDetail {
		if a, ok := translateTervezoDetail(k); ok {
			return a
		}
	}

	if mode == ModeList || mode == ModeRemoteList || mode == ModeQSwitcher || mode == ModeTerminalQSwitcher {
		if a, ok := translateListLike(k, mode == ModeList); ok {
			return a
		}
	}

	switch k.Named {
	case "esc":
		return Action{Kind: CloseOverlay}
	case "tab":
		if mode == ModeList || mode == ModeRemoteList {
			return Action{Kind: SwitchListPane}
		}
	}
	if k.Rune == 'q' && !k.Ctrl {
		return Action{Kind: RequestQuit}
	}
	if k.Rune == '?' {
		return Action{Kind: ToggleHelp}
	}

	return Action{Kind: NoOp}
}

// translateConfirmQuit handles the y/n confirmation overlay: y/Y quits
// immediately, n/N/esc cancels back to List, and a second q (the prior
// behavior) also confirms.
func translateConfirmQuit(k KeyEvent) Action {
	switch {
	case k.Ctrl && k.Rune == 'c':
		return Action{Kind: Quit}
	case k.Rune == 'y' || k.Rune == 'Y' || k.Rune == 'q':
		return Action{Kind: Quit}
	case k.Rune == 'n' || k.Rune == 'N' || k.Named == "esc":
		return Action{Kind: CloseOverlay}
	}
	return Action{Kind: NoOp}
}

// translateListLike covers the session list, remote list, and the
// quick-switcher overlays, which share the same navigation bindings.
// allowAttachShell restricts the 'n' binding to the local session list,
// where it means "attach a new shell".
func translateListLike(k KeyEvent, allowAttachShell bool) (Action, bool) {
	switch {
	case k.Rune == 'j' || k.Named == "down":
		return Action{Kind: MoveDown}, true
	case k.Rune == 'k' || k.Named == "up":
		return Action{Kind: MoveUp}, true
	case k.Named == "pgdown":
		return Action{Kind: ScrollDown10}, true
	case k.Named == "pgup":
		return Action{Kind: ScrollUp10}, true
	case k.Rune == '/':
		return Action{Kind: OpenFilter}, true
	case k.Named == "enter":
		return Action{Kind: SelectEnter}, true
	case k.Rune == 'n' && allowAttachShell:
		return Action{Kind: AttachShell}, true
	}
	return Action{}, false
}

func translateTerminal(k KeyEvent) Action {
	switch {
	case k.Ctrl && k.Rune == 'd':
		return Action{Kind: Detach}
	case k.Ctrl && k.Rune == ' ':
		return Action{Kind: OpenQSwitcher}
	case k.Ctrl && (k.Rune == 'n'):
		return Action{Kind: CycleNext}
	case k.Ctrl && (k.Rune == 'p'):
		return Action{Kind: CyclePrev}
	case k.Ctrl && k.Rune == 'j':
		return Action{Kind: ScrollDown10}
	case k.Ctrl && k.Rune == 'k':
		return Action{Kind: ScrollUp10}
	default:
		return Action{Kind: ForwardKey, Key: k}
	}
}

func translateTervezoDetail(k KeyEvent) (Action, bool) {
	switch {
	case k.Named == "tab" || k.Rune == 'l':
		return Action{Kind: NextTab}, true
	case k.Rune == 'h':
		return Action{Kind: PrevTab}, true
	case k.Rune == 'j':
		return Action{Kind: ScrollTimelineDown}, true
	case k.Rune == 'k':
		return Action{Kind: ScrollTimelineUp}, true
	case k.Rune == 'J':
		return Action{Kind: ScrollTabContentDown}, true
	case k.Rune == 'K':
		return Action{Kind: ScrollTabContentUp}, true
	case k.Ctrl && k.Rune == 'd':
		return Action{Kind: HalfPageDown}, true
	case k.Ctrl && k.Rune == 'u':
		return Action{Kind: HalfPageUp}, true
	case k.Rune == 'g':
		return Action{Kind: TimelineTop}, true
	case k.Rune == 'G':
		return Action{Kind: TimelineBottom}, true
	case k.Named == "enter":
		return Action{Kind: ToggleExpandChanges}, true
	case k.Rune == 's':
		return Action{Kind: OpenSSH}, true
	case k.Rune == 'r':
		return Action{Kind: RefreshDetail}, true
	case k.Rune == 'a':
		return Action{Kind: OpenActionsMenu}, true
	case k.Rune == 'p':
		return Action{Kind: OpenPrompt}, true
	case k.Rune == 'm':
		return Action{Kind: ToggleRawMarkdown}, true
	}
	return Action{}, false
}

// EncodeKey renders a KeyEvent to the raw bytes forwarded to the PTY.
func EncodeKey(k KeyEvent) []byte {
	if k.Ctrl && k.Rune >= 'a' && k.Rune <= 'z' {
		b := []byte{byte(k.Rune-'a') + 1}
		return alt(k, b)
	}

	switch k.Named {
	case "esc":
		return alt(k, []byte{0x1b})
	case "enter":
		if k.Shift {
			return alt(k, []byte("\x1b[13;2u"))
		}
		return alt(k, []byte("\r"))
	case "backspace":
		return alt(k, []byte{0x7f})
	case "tab":
		if k.Shift {
			return alt(k, []byte("\x1b[Z"))
		}
		return alt(k, []byte("\t"))
	case "up":
		return alt(k, []byte("\x1b[A"))
	case "down":
		return alt(k, []byte("\x1b[B"))
	case "right":
		return alt(k, []byte("\x1b[C"))
	case "left":
		return alt(k, []byte("\x1b[D"))
	case "home":
		return alt(k, []byte("\x1b[H"))
	case "end":
		return alt(k, []byte("\x1b[F"))
	case "pgup":
		return alt(k, []byte("\x1b[5~"))
	case "pgdown":
		return alt(k, []byte("\x1b[6~"))
	case "delete":
		return alt(k, []byte("\x1b[3~"))
	case "insert":
		return alt(k, []byte("\x1b[2~"))
	case "f1":
		return alt(k, []byte("\x1bOP"))
	case "f2":
		return alt(k, []byte("\x1bOQ"))
	case "f3":
		return alt(k, []byte("\x1bOR"))
	case "f4":
		return alt(k, []byte("\x1bOS"))
	case "f5":
		return alt(k, []byte("\x1b[15~"))
	case "f6":
		return alt(k, []byte("\x1b[17~"))
	case "f7":
		return alt(k, []byte("\x1b[18~"))
	case "f8":
		return alt(k, []byte("\x1b[19~"))
	case "f9":
		return alt(k, []byte("\x1b[20~"))
	case "f10":
		return alt(k, []byte("\x1b[21~"))
	case "f11":
		return alt(k, []byte("\x1b[23~"))
	case "f12":
		return alt(k, []byte("\x1b[24~"))
	}

	if k.Rune != 0 {
		return alt(k, []byte(string(k.Rune)))
	}
	return nil
}

func alt(k KeyEvent, b []byte) []byte {
	if !k.Alt || len(b) == 0 {
		return b
	}
	out := make([]byte, 0, len(b)+1)
	out = append(out, 0x1b)
	out = append(out, b...)
	return out
}

// WheelAction maps a mouse wheel event to an Action depending on mode:
// Terminal modes scroll 3 lines, other modes move the list cursor.
func WheelAction(mode ViewMode, up bool) Action {
	if mode.isTerminal() {
		dir := "down"
		if up {
			dir = "up"
		}
		return Action{Kind: WheelScroll3, Key: KeyEvent{Named: dir}}
	}
	if up {
		return Action{Kind: MoveUp}
	}
	return Action{Kind: MoveDown}
}

// bindingHelp exposes the declarative key tables for the Help view (C10),
// built with bubbles/key the same way the teacher's app.KeyMap does.
type bindingHelp struct {
	Up, Down, Enter, Quit, Detach, NextTab, PrevTab key.Binding
}

// DefaultBindings returns the key.Binding table used to render the Help
// overlay's cheat sheet.
func DefaultBindings() bindingHelp {
	return bindingHelp{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "move up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "move down")),
		Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Detach:  key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "detach")),
		NextTab: key.NewBinding(key.WithKeys("tab", "l"), key.WithHelp("tab/l", "next tab")),
		PrevTab: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "prev tab")),
	}
}
