// Package keyevent carries raw key events from the keyboard layer to the
// consumers that act on them.
//
// Events are X keysyms with xkb scan codes and GDK-style modifier masks.
// A Dispatcher offers each event to its consumers in priority order and
// the first consumer that claims it is the only one that handles it. The
// Forwarder consumer sends events to the framework on flutter/keyevent and
// hands them back to lower-priority consumers when the framework does not
// handle them.
package keyevent

import "fmt"

// Type is the transition a key event reports.
type Type int

const (
	Down Type = iota
	Up
)

func (t Type) String() string {
	switch t {
	case Down:
		return "keydown"
	case Up:
		return "keyup"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ParseType parses the wire name of a transition.
func ParseType(s string) (Type, error) {
	switch s {
	case "keydown", "down":
		return Down, nil
	case "keyup", "up":
		return Up, nil
	default:
		return 0, fmt.Errorf("keyevent: unknown event type %q", s)
	}
}

// State is the key state reported by the compositor for a key.
type State uint32

const (
	StateReleased State = 0
	StatePressed  State = 1
)

// Modifiers is a GDK-style modifier mask.
type Modifiers uint32

const (
	ModShift   Modifiers = 1 << 0
	ModLock    Modifiers = 1 << 1
	ModControl Modifiers = 1 << 2
	ModAlt     Modifiers = 1 << 3 // Mod1
	ModSuper   Modifiers = 1 << 6 // Mod4
)

// Has reports whether all bits of m are set.
func (mods Modifiers) Has(m Modifiers) bool {
	return mods&m == m
}

// Shortcut reports whether a modifier that turns a key into a shortcut is
// held. Shift and Lock only change the produced character.
func (mods Modifiers) Shortcut() bool {
	return mods&(ModControl|ModAlt|ModSuper) != 0
}

// Event is one physical key transition.
type Event struct {
	Type      Type
	ScanCode  uint32
	Keysym    Keysym
	Modifiers Modifiers
}

// State returns the compositor key state matching the event type.
func (e Event) State() State {
	if e.Type == Down {
		return StatePressed
	}
	return StateReleased
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s (scan %d, mods %#x)", e.Type, e.Keysym, e.ScanCode, uint32(e.Modifiers))
}
