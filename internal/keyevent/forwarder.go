package keyevent

import (
	"encoding/json"
	"log/slog"

	"textbridge/internal/channel"
)

// ChannelName is the channel key events are forwarded on.
const ChannelName = "flutter/keyevent"

// Message is the flutter/keyevent payload for one event.
type Message struct {
	Type                string `json:"type"`
	Keymap              string `json:"keymap"`
	Toolkit             string `json:"toolkit"`
	ScanCode            uint32 `json:"scanCode"`
	KeyCode             uint32 `json:"keyCode"`
	Modifiers           uint32 `json:"modifiers"`
	UnicodeScalarValues uint32 `json:"unicodeScalarValues"`
}

// NewMessage builds the wire message for ev.
func NewMessage(ev Event) Message {
	return Message{
		Type:                ev.Type.String(),
		Keymap:              "linux",
		Toolkit:             "gtk",
		ScanCode:            ev.ScanCode,
		KeyCode:             uint32(ev.Keysym),
		Modifiers:           uint32(ev.Modifiers),
		UnicodeScalarValues: uint32(ev.Keysym.Rune()),
	}
}

// Response is the framework's verdict on a forwarded event.
type Response struct {
	Handled bool `json:"handled"`
}

// delegateKey identifies a physical key transition.
type delegateKey struct {
	typ      Type
	scanCode uint32
	keysym   Keysym
}

// Delegate is an event waiting for the framework's verdict.
type Delegate struct {
	Event Event
	// Outstanding counts forwarded copies of the same transition, which
	// happens with key repeat.
	Outstanding int

	resolving bool
}

// Resolving reports whether the delegate is handing one of its events
// back to lower-priority consumers right now.
func (d *Delegate) Resolving() bool {
	return d.resolving
}

// Forwarder sends every key event to the framework first. Events the
// framework does not handle are redispatched to the consumers ordered
// after the forwarder.
type Forwarder struct {
	channel    *channel.MessageChannel
	dispatcher *Dispatcher
	logger     *slog.Logger
	pending    map[delegateKey]*Delegate
	closed     bool
}

// NewForwarder returns a forwarder sending on messenger. Register it with
// d at a priority above the consumers it falls back to.
func NewForwarder(messenger channel.BinaryMessenger, d *Dispatcher, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		channel:    channel.NewMessageChannel(messenger, ChannelName),
		dispatcher: d,
		logger:     logger,
		pending:    make(map[delegateKey]*Delegate),
	}
}

// Claim takes every event.
func (f *Forwarder) Claim(Event) bool {
	return true
}

// Handle forwards ev and records a delegate until the reply arrives.
func (f *Forwarder) Handle(ev Event) {
	if f.closed {
		return
	}
	key := delegateKey{typ: ev.Type, scanCode: ev.ScanCode, keysym: ev.Keysym}
	d, ok := f.pending[key]
	if !ok {
		d = &Delegate{Event: ev}
		f.pending[key] = d
	}
	d.Outstanding++

	err := f.channel.Send(NewMessage(ev), func(raw json.RawMessage, err error) {
		f.resolve(key, ev, raw, err)
	})
	if err != nil {
		f.logger.Warn("forward key event", "event", ev.String(), "error", err)
		f.resolve(key, ev, nil, err)
	}
}

// Delegate looks up a pending event by transition, scan code and keysym.
func (f *Forwarder) Delegate(typ Type, scanCode uint32, sym Keysym) (*Delegate, bool) {
	d, ok := f.pending[delegateKey{typ: typ, scanCode: scanCode, keysym: sym}]
	return d, ok
}

// Pending returns the number of transitions awaiting a verdict.
func (f *Forwarder) Pending() int {
	return len(f.pending)
}

// Close drops every pending delegate. Replies arriving afterwards, such as
// the nil replies released when the connection goes away, are ignored.
func (f *Forwarder) Close() {
	f.closed = true
	clear(f.pending)
}

func (f *Forwarder) resolve(key delegateKey, ev Event, raw json.RawMessage, err error) {
	if f.closed {
		return
	}
	d, ok := f.pending[key]
	if !ok {
		return
	}
	d.Outstanding--
	if d.Outstanding <= 0 {
		delete(f.pending, key)
	}

	var resp Response
	if err == nil && raw != nil {
		if uerr := json.Unmarshal(raw, &resp); uerr != nil {
			f.logger.Debug("undecodable key event reply", "error", uerr)
		}
	}
	if resp.Handled {
		return
	}
	d.resolving = true
	f.dispatcher.Redispatch(ev, f)
	d.resolving = false
}
