package ui

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/waxb/c9s/internal/inputx"
)

// decodeKey turns one lexical unit of raw terminal input into a
// inputx.KeyEvent, returning the number of bytes consumed. It handles
// C0 control bytes, CSI/SS3 escape sequences for arrows/function keys,
// Alt-prefixed printables, and plain UTF-8 runes.
func decodeKey(buf []byte) (inputx.KeyEvent, int) {
	if len(buf) == 0 {
		return inputx.KeyEvent{}, 0
	}

	b := buf[0]

	if b == 0x1b {
		if len(buf) == 1 {
			return inputx.KeyEvent{Named: "esc"}, 1
		}
		if k, n, ok := decodeEscapeSeq(buf); ok {
			return k, n
		}
		// Alt+<key>: ESC followed by one more lexical unit.
		inner, n := decodeKey(buf[1:])
		inner.Alt = true
		return inner, n + 1
	}

	switch b {
	case 0x0d:
		return inputx.KeyEvent{Named: "enter"}, 1
	case 0x7f, 0x08:
		return inputx.KeyEvent{Named: "backspace"}, 1
	case 0x09:
		return inputx.KeyEvent{Named: "tab"}, 1
	case 0x03: // Ctrl+C
		return inputx.KeyEvent{Rune: 'c', Ctrl: true}, 1
	}

	if b < 0x20 {
		// Other C0 controls map to Ctrl+<letter>.
		return inputx.KeyEvent{Rune: rune('a' + b - 1), Ctrl: true}, 1
	}

	r, n := decodeRune(buf)
	return inputx.KeyEvent{Rune: r}, n
}

func decodeRune(buf []byte) (rune, int) {
	r, size := utf8.DecodeRune(buf)
	if r == utf8.RuneError && size <= 1 {
		return rune(buf[0]), 1
	}
	return r, size
}

// decodeEscapeSeq recognizes CSI ("\x1b[...") and SS3 ("\x1bO...")
// sequences for arrows, navigation, and function keys.
func decodeEscapeSeq(buf []byte) (inputx.KeyEvent, int, bool) {
	if len(buf) < 3 {
		return inputx.KeyEvent{}, 0, false
	}

	switch buf[1] {
	case 'O':
		switch buf[2] {
		case 'P':
			return inputx.KeyEvent{Named: "f1"}, 3, true
		case 'Q':
			return inputx.KeyEvent{Named: "f2"}, 3, true
		case 'R':
			return inputx.KeyEvent{Named: "f3"}, 3, true
		case 'S':
			return inputx.KeyEvent{Named: "f4"}, 3, true
		}
		return inputx.KeyEvent{}, 0, false

	case '[':
		// X10 mouse report: ESC [ M Cb Cx Cy, three raw (unescaped) data
		// bytes follow — must be consumed atomically before the generic
		// terminator scan below, which would otherwise treat the 'M' as
		// an ordinary CSI terminator and leave the data bytes to be
		// misread as keystrokes.
		if buf[2] == 'M' {
			if len(buf) < 6 {
				return inputx.KeyEvent{}, 0, false
			}
			return decodeX10Mouse(buf[3], buf[4], buf[5]), 6, true
		}

		// Find the terminating alphabetic byte, 'm' (SGR release), or '~'.
		for i := 2; i < len(buf) && i < 32; i++ {
			c := buf[i]
			if (c >= 'A' && c <= 'Z') || c == 'm' || c == '~' {
				seq := buf[2 : i+1]
				k, ok := csiKey(seq)
				if ok {
					return k, i + 1, true
				}
				return inputx.KeyEvent{}, i + 1, true
			}
		}
	}
	return inputx.KeyEvent{}, 0, false
}

// decodeX10Mouse decodes the three raw data bytes of an X10 mouse
// report (each offset by 32) into a wheel KeyEvent, or a no-op event
// for button/motion reports the app doesn't act on.
func decodeX10Mouse(cb, cx, cy byte) inputx.KeyEvent {
	_ = cx
	_ = cy
	return mouseCbToKey(int(cb) - 32)
}

// mouseCbToKey maps a mouse button/event code (already normalized, not
// offset) to a wheel KeyEvent. Cb 64/65 are wheel-up/wheel-down in both
// the X10 and SGR encodings.
func mouseCbToKey(cb int) inputx.KeyEvent {
	switch cb {
	case 64:
		return inputx.KeyEvent{Named: "wheelup"}
	case 65:
		return inputx.KeyEvent{Named: "wheeldown"}
	}
	return inputx.KeyEvent{}
}

// decodeSGRMouse parses the body of an SGR mouse report ("Cb;Cx;Cy",
// with the trailing M/m already stripped by the caller) into a wheel
// KeyEvent.
func decodeSGRMouse(body string) inputx.KeyEvent {
	parts := strings.SplitN(body, ";", 3)
	if len(parts) == 0 {
		return inputx.KeyEvent{}
	}
	cb, err := strconv.Atoi(parts[0])
	if err != nil {
		return inputx.KeyEvent{}
	}
	return mouseCbToKey(cb)
}

func csiKey(seq []byte) (inputx.KeyEvent, bool) {
	s := string(seq)
	if len(s) > 1 && s[0] == '<' {
		// SGR mouse report: "<Cb;Cx;CyM" (press) or "...m" (release).
		body := s[1 : len(s)-1]
		if s[len(s)-1] == 'm' {
			return inputx.KeyEvent{}, false
		}
		k := decodeSGRMouse(body)
		return k, k.Named != ""
	}
	switch s {
	case "A":
		return inputx.KeyEvent{Named: "up"}, true
	case "B":
		return inputx.KeyEvent{Named: "down"}, true
	case "C":
		return inputx.KeyEvent{Named: "right"}, true
	case "D":
		return inputx.KeyEvent{Named: "left"}, true
	case "H":
		return inputx.KeyEvent{Named: "home"}, true
	case "F":
		return inputx.KeyEvent{Named: "end"}, true
	case "Z":
		return inputx.KeyEvent{Named: "tab", Shift: true}, true
	case "3~":
		return inputx.KeyEvent{Named: "delete"}, true
	case "2~":
		return inputx.KeyEvent{Named: "insert"}, true
	case "5~":
		return inputx.KeyEvent{Named: "pgup"}, true
	case "6~":
		return inputx.KeyEvent{Named: "pgdown"}, true
	case "15~":
		return inputx.KeyEvent{Named: "f5"}, true
	case "17~":
		return inputx.KeyEvent{Named: "f6"}, true
	case "18~":
		return inputx.KeyEvent{Named: "f7"}, true
	case "19~":
		return inputx.KeyEvent{Named: "f8"}, true
	case "20~":
		return inputx.KeyEvent{Named: "f9"}, true
	case "21~":
		return inputx.KeyEvent{Named: "f10"}, true
	case "23~":
		return inputx.KeyEvent{Named: "f11"}, true
	case "24~":
		return inputx.KeyEvent{Named: "f12"}, true
	case "13;2u":
		return inputx.KeyEvent{Named: "enter", Shift: true}, true
	}
	return inputx.KeyEvent{}, false
}
