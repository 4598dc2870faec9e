package vip

import (
	"fmt"
	"unicode"

	"golang.org/x/mobile/event/key"
)

// Keymap maps host keys, as lower case runes, to CHIP-8 keypad keys.
type Keymap map[rune]byte

// QWERTY lays the keypad out on the left of a QWERTY keyboard:
//
//	1 2 3 4      1 2 3 C
//	Q W E R  ->  4 5 6 D
//	A S D F      7 8 9 E
//	Z X C V      A 0 B F
var QWERTY = Keymap{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xc,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xd,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xe,
	'z': 0xa, 'x': 0x0, 'c': 0xb, 'v': 0xf,
}

// Hex maps the keys 0-9 and a-f to the keypad key of the same name.
var Hex = Keymap{
	'0': 0x0, '1': 0x1, '2': 0x2, '3': 0x3,
	'4': 0x4, '5': 0x5, '6': 0x6, '7': 0x7,
	'8': 0x8, '9': 0x9, 'a': 0xa, 'b': 0xb,
	'c': 0xc, 'd': 0xd, 'e': 0xe, 'f': 0xf,
}

// KeymapByName returns the keymap called name ("qwerty" or "hex").
func KeymapByName(name string) (Keymap, error) {
	switch name {
	case "qwerty":
		return QWERTY, nil
	case "hex", "vip":
		return Hex, nil
	}
	return nil, fmt.Errorf("unknown keymap %q", name)
}

// Lookup returns the keypad key for host key r.
func (km Keymap) Lookup(r rune) (byte, bool) {
	k, ok := km[unicode.ToLower(r)]
	return k, ok
}

// codeRune returns the rune for a letter or digit key code, or -1.
func codeRune(c key.Code) rune {
	switch {
	case c >= key.CodeA && c <= key.CodeZ:
		return 'a' + rune(c-key.CodeA)
	case c >= key.Code1 && c <= key.Code9:
		return '1' + rune(c-key.Code1)
	case c == key.Code0:
		return '0'
	}
	return -1
}
