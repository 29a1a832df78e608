package inputx

import "testing"

func TestCtrlCQuitsOutsideTerminalModes(t *testing.T) {
	modes := []ViewMode{ModeList, ModeFilter, ModeDetail, ModeHelp, ModeCommand}
	for _, m := range modes {
		a := Translate(m, KeyEvent{Rune: 'c', Ctrl: true})
		if a.Kind != Quit {
			t.Errorf("mode %v: Ctrl+C = %v, want Quit", m, a.Kind)
		}
	}
}

func TestCtrlCIsNotQuitInTerminalMode(t *testing.T) {
	a := Translate(ModeTerminal, KeyEvent{Rune: 'c', Ctrl: true})
	if a.Kind == Quit {
		t.Error("Ctrl+C in Terminal mode must not be Quit")
	}
	if a.Kind != ForwardKey {
		t.Errorf("expected Ctrl+C forwarded as PTY input, got %v", a.Kind)
	}
}

func TestTerminalModeSpecialBindings(t *testing.T) {
	if a := Translate(ModeTerminal, KeyEvent{Rune: 'd', Ctrl: true}); a.Kind != Detach {
		t.Errorf("Ctrl+D = %v, want Detach", a.Kind)
	}
	if a := Translate(ModeTerminal, KeyEvent{Rune: ' ', Ctrl: true}); a.Kind != OpenQSwitcher {
		t.Errorf("Ctrl+Space = %v, want OpenQSwitcher", a.Kind)
	}
	if a := Translate(ModeTerminal, KeyEvent{Rune: 'n', Ctrl: true}); a.Kind != CycleNext {
		t.Errorf("Ctrl+N = %v, want CycleNext", a.Kind)
	}
}

func TestEncodeKeyPrintableASCII(t *testing.T) {
	for r := rune('a'); r <= 'z'; r++ {
		got := string(EncodeKey(KeyEvent{Rune: r}))
		if got != string(r) {
			t.Errorf("EncodeKey(%q) = %q, want %q", r, got, string(r))
		}
	}
}

func TestEncodeKeyCtrlLetterMapsToC0(t *testing.T) {
	for r := rune('a'); r <= 'z'; r++ {
		got := EncodeKey(KeyEvent{Rune: r, Ctrl: true})
		want := byte(r-'a') + 1
		if len(got) != 1 || got[0] != want {
			t.Errorf("EncodeKey(Ctrl+%q) = %v, want [%d]", r, got, want)
		}
	}
}

func TestEncodeKeyAltPrependsESC(t *testing.T) {
	got := EncodeKey(KeyEvent{Rune: 'x', Alt: true})
	want := []byte{0x1b, 'x'}
	if string(got) != string(want) {
		t.Errorf("EncodeKey(Alt+x) = %v, want %v", got, want)
	}
}

func TestEncodeKeyEnterAndShiftEnter(t *testing.T) {
	if got := string(EncodeKey(KeyEvent{Named: "enter"})); got != "\r" {
		t.Errorf("EncodeKey(enter) = %q, want CR", got)
	}
	if got := string(EncodeKey(KeyEvent{Named: "enter", Shift: true})); got != "\x1b[13;2u" {
		t.Errorf("EncodeKey(shift+enter) = %q, want ESC[13;2u", got)
	}
}

func TestEncodeKeyArrows(t *testing.T) {
	cases := map[string]string{"up": "\x1b[A", "down": "\x1b[B", "right": "\x1b[C", "left": "\x1b[D"}
	for name, want := range cases {
		if got := string(EncodeKey(KeyEvent{Named: name})); got != want {
			t.Errorf("EncodeKey(%s) = %q, want %q", name, got, want)
		}
	}
}

func TestWheelActionByMode(t *testing.T) {
	if a := WheelAction(ModeTerminal, true); a.Kind != WheelScroll3 {
		t.Errorf("wheel in Terminal mode = %v, want WheelScroll3", a.Kind)
	}
	if a := WheelAction(ModeList, true); a.Kind != MoveUp {
		t.Errorf("wheel up elsewhere = %v, want MoveUp", a.Kind)
	}
	if a := WheelAction(ModeList, false); a.Kind != MoveDown {
		t.Errorf("wheel down elsewhere = %v, want MoveDown", a.Kind)
	}
}
