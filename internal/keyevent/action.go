package keyevent

// ActionKind is the editing operation a key press resolves to.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionInsert
	ActionEnter
	ActionBackspace
	ActionDelete
	ActionMoveBack
	ActionMoveForward
	ActionMoveToBeginning
	ActionMoveToEnd
)

var actionNames = [...]string{
	ActionNone:            "none",
	ActionInsert:          "insert",
	ActionEnter:           "enter",
	ActionBackspace:       "backspace",
	ActionDelete:          "delete",
	ActionMoveBack:        "move-back",
	ActionMoveForward:     "move-forward",
	ActionMoveToBeginning: "move-to-beginning",
	ActionMoveToEnd:       "move-to-end",
}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) {
		return actionNames[k]
	}
	return "unknown"
}

// Action is a resolved key press. Rune is set for ActionInsert.
type Action struct {
	Kind ActionKind
	Rune rune
}

// Resolve maps a pressed keysym to an editing action. Printable keys held
// with a shortcut modifier resolve to ActionNone.
func Resolve(sym Keysym, mods Modifiers) Action {
	switch sym {
	case KeyLeft, KeyKPLeft:
		return Action{Kind: ActionMoveBack}
	case KeyRight, KeyKPRight:
		return Action{Kind: ActionMoveForward}
	case KeyHome, KeyKPHome:
		return Action{Kind: ActionMoveToBeginning}
	case KeyEnd, KeyKPEnd:
		return Action{Kind: ActionMoveToEnd}
	case KeyBackSpace:
		return Action{Kind: ActionBackspace}
	case KeyDelete, KeyKPDelete:
		return Action{Kind: ActionDelete}
	case KeyReturn, KeyKPEnter, KeyISOEnter:
		return Action{Kind: ActionEnter}
	}
	if mods.Shortcut() {
		return Action{}
	}
	if r := sym.Rune(); r != 0 {
		return Action{Kind: ActionInsert, Rune: r}
	}
	return Action{}
}
