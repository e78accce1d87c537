package keyevent

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Keysym is an X11/xkb key symbol.
type Keysym uint32

// Keysyms the text input path acts on.
const (
	KeyBackSpace Keysym = 0xff08
	KeyTab       Keysym = 0xff09
	KeyReturn    Keysym = 0xff0d
	KeyEscape    Keysym = 0xff1b
	KeyHome      Keysym = 0xff50
	KeyLeft      Keysym = 0xff51
	KeyUp        Keysym = 0xff52
	KeyRight     Keysym = 0xff53
	KeyDown      Keysym = 0xff54
	KeyEnd       Keysym = 0xff57
	KeyDelete    Keysym = 0xffff
	KeyISOEnter  Keysym = 0xfe34

	KeyKPSpace     Keysym = 0xff80
	KeyKPEnter     Keysym = 0xff8d
	KeyKPHome      Keysym = 0xff95
	KeyKPLeft      Keysym = 0xff96
	KeyKPRight     Keysym = 0xff98
	KeyKPEnd       Keysym = 0xff9c
	KeyKPDelete    Keysym = 0xff9f
	KeyKPMultiply  Keysym = 0xffaa
	KeyKPAdd       Keysym = 0xffab
	KeyKPSeparator Keysym = 0xffac
	KeyKPSubtract  Keysym = 0xffad
	KeyKPDecimal   Keysym = 0xffae
	KeyKPDivide    Keysym = 0xffaf
	KeyKP0         Keysym = 0xffb0
	KeyKP9         Keysym = 0xffb9
	KeyKPEqual     Keysym = 0xffbd

	KeyShiftL   Keysym = 0xffe1
	KeyShiftR   Keysym = 0xffe2
	KeyControlL Keysym = 0xffe3
	KeyControlR Keysym = 0xffe4
	KeyAltL     Keysym = 0xffe9
	KeyAltR     Keysym = 0xffea

	// unicodeBase is added to a code point to form a Unicode keysym.
	unicodeBase Keysym = 0x01000000
)

var keysymNames = map[string]Keysym{
	"BackSpace":    KeyBackSpace,
	"Tab":          KeyTab,
	"Return":       KeyReturn,
	"Escape":       KeyEscape,
	"Home":         KeyHome,
	"Left":         KeyLeft,
	"Up":           KeyUp,
	"Right":        KeyRight,
	"Down":         KeyDown,
	"End":          KeyEnd,
	"Delete":       KeyDelete,
	"ISO_Enter":    KeyISOEnter,
	"KP_Space":     KeyKPSpace,
	"KP_Enter":     KeyKPEnter,
	"KP_Home":      KeyKPHome,
	"KP_Left":      KeyKPLeft,
	"KP_Right":     KeyKPRight,
	"KP_End":       KeyKPEnd,
	"KP_Delete":    KeyKPDelete,
	"KP_Multiply":  KeyKPMultiply,
	"KP_Add":       KeyKPAdd,
	"KP_Separator": KeyKPSeparator,
	"KP_Subtract":  KeyKPSubtract,
	"KP_Decimal":   KeyKPDecimal,
	"KP_Divide":    KeyKPDivide,
	"KP_Equal":     KeyKPEqual,
	"Shift_L":      KeyShiftL,
	"Shift_R":      KeyShiftR,
	"Control_L":    KeyControlL,
	"Control_R":    KeyControlR,
	"Alt_L":        KeyAltL,
	"Alt_R":        KeyAltR,
	"space":        ' ',
}

// keysymByValue names each keysym once. Aliases resolve to the
// lexically first name.
var keysymByValue = func() map[Keysym]string {
	byValue := make(map[Keysym]string, len(keysymNames))
	names := make([]string, 0, len(keysymNames))
	for name := range keysymNames {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, ok := byValue[keysymNames[name]]; !ok {
			byValue[keysymNames[name]] = name
		}
	}
	return byValue
}()

var keypadRunes = map[Keysym]rune{
	KeyKPSpace:     ' ',
	KeyKPMultiply:  '*',
	KeyKPAdd:       '+',
	KeyKPSeparator: ',',
	KeyKPSubtract:  '-',
	KeyKPDecimal:   '.',
	KeyKPDivide:    '/',
	KeyKPEqual:     '=',
}

// FromRune returns the keysym that produces r.
func FromRune(r rune) Keysym {
	if (r >= 0x20 && r <= 0x7e) || (r >= 0xa0 && r <= 0xff) {
		return Keysym(r)
	}
	return unicodeBase + Keysym(r)
}

// ParseKeysym parses a keysym name ("Return", "KP_Enter"), a single
// character, or a hexadecimal value ("0xff0d").
func ParseKeysym(s string) (Keysym, error) {
	if k, ok := keysymNames[s]; ok {
		return k, nil
	}
	if strings.HasPrefix(s, "0x") && len(s) > 2 {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("keyevent: bad keysym %q: %w", s, err)
		}
		return Keysym(v), nil
	}
	if r, size := utf8.DecodeRuneInString(s); r != utf8.RuneError && size == len(s) {
		return FromRune(r), nil
	}
	return 0, fmt.Errorf("keyevent: unknown keysym %q", s)
}

// Rune returns the printable character the keysym produces, or 0 when it
// produces none. Latin-1 keysyms map to themselves and Unicode keysyms
// carry their code point above 0x01000000.
func (k Keysym) Rune() rune {
	var r rune
	switch {
	case (k >= 0x20 && k <= 0x7e) || (k >= 0xa0 && k <= 0xff):
		return rune(k)
	case k >= KeyKP0 && k <= KeyKP9:
		return '0' + rune(k-KeyKP0)
	case k >= unicodeBase+0x100 && k <= unicodeBase+unicode.MaxRune:
		r = rune(k - unicodeBase)
	default:
		return keypadRunes[k]
	}
	if !utf8.ValidRune(r) || unicode.IsControl(r) {
		return 0
	}
	return r
}

func (k Keysym) String() string {
	if name, ok := keysymByValue[k]; ok {
		return name
	}
	if r := k.Rune(); r != 0 {
		return strconv.QuoteRune(r)
	}
	return fmt.Sprintf("%#x", uint32(k))
}
