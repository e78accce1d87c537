package textinput

import "textbridge/internal/keyevent"

// DelegateLookup finds a key event still waiting for the engine's verdict.
// *keyevent.Forwarder implements it.
type DelegateLookup interface {
	Delegate(typ keyevent.Type, scanCode uint32, sym keyevent.Keysym) (*keyevent.Delegate, bool)
}

// KeyAdapter feeds key presses into a Plugin. Register it with a
// keyevent.Dispatcher below the forwarder, if there is one.
type KeyAdapter struct {
	plugin *Plugin
	lookup DelegateLookup
}

// NewKeyAdapter returns an adapter for p. lookup may be nil when key
// events are not forwarded to the engine.
func NewKeyAdapter(p *Plugin, lookup DelegateLookup) *KeyAdapter {
	return &KeyAdapter{plugin: p, lookup: lookup}
}

// Claim takes presses while a client is bound, unless the engine still
// owes a verdict on the same key. An event being handed back by the
// forwarder is claimed.
func (a *KeyAdapter) Claim(ev keyevent.Event) bool {
	if ev.Type != keyevent.Down || !a.plugin.Active() {
		return false
	}
	if a.lookup == nil {
		return true
	}
	d, ok := a.lookup.Delegate(ev.Type, ev.ScanCode, ev.Keysym)
	return !ok || d.Resolving()
}

// Handle applies the press to the plugin.
func (a *KeyAdapter) Handle(ev keyevent.Event) {
	a.plugin.HandleKey(ev.Keysym, ev.State(), ev.Modifiers)
}
