package textinput

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbridge/internal/channel"
	"textbridge/internal/keyevent"
	"textbridge/internal/textmodel"
)

// outcome is what the engine saw in reply to one call.
type outcome struct {
	success        bool
	result         any
	code           string
	message        string
	notImplemented bool
}

// engine drives a plugin through an in-process pipe and records the
// calls the plugin makes back.
type engine struct {
	t        *testing.T
	channel  *channel.MethodChannel
	outbound []channel.MethodCall
}

func newEngine(t *testing.T, m channel.BinaryMessenger) *engine {
	e := &engine{t: t, channel: channel.NewMethodChannel(m, ChannelName)}
	e.channel.SetMethodCallHandler(func(call *channel.MethodCall, result channel.MethodResult) {
		e.outbound = append(e.outbound, *call)
		result.Success(nil)
	})
	return e
}

func (e *engine) call(method string, args any) outcome {
	e.t.Helper()
	var out outcome
	err := e.channel.InvokeMethod(method, args, channel.ResultFunctions{
		OnSuccess: func(r any) {
			out.success = true
			out.result = r
		},
		OnError: func(code, message string, _ any) {
			out.code = code
			out.message = message
		},
		OnNotImplemented: func() { out.notImplemented = true },
	})
	require.NoError(e.t, err)
	return out
}

func (e *engine) lastOutbound() (string, []json.RawMessage) {
	e.t.Helper()
	require.NotEmpty(e.t, e.outbound)
	call := e.outbound[len(e.outbound)-1]
	var args []json.RawMessage
	require.NoError(e.t, call.DecodeArgs(&args))
	return call.Method, args
}

type recordingPanel struct {
	shown, hidden int
	err           error
}

func (p *recordingPanel) Show() error { p.shown++; return p.err }
func (p *recordingPanel) Hide() error { p.hidden++; return p.err }

func setup(t *testing.T) (*Plugin, *engine, *recordingPanel) {
	platform, eng := channel.NewPipe()
	panel := &recordingPanel{}
	p := New(platform, panel, nil)
	return p, newEngine(t, eng), panel
}

func clientArgs(id int, action, inputType string) []any {
	return []any{id, map[string]any{
		"inputAction": action,
		"inputType":   map[string]any{"name": inputType},
	}}
}

func press(p *Plugin, sym keyevent.Keysym) {
	p.HandleKey(sym, keyevent.StatePressed, 0)
}

func TestSetClient(t *testing.T) {
	p, e, _ := setup(t)
	assert.Equal(t, Unbound, p.State())

	out := e.call(MethodSetClient, clientArgs(3, "TextInputAction.done", "TextInputType.text"))
	require.True(t, out.success)
	assert.Equal(t, json.RawMessage("null"), out.result)

	assert.Equal(t, BoundEmpty, p.State())
	assert.Equal(t, 3, p.ClientID())
	assert.Equal(t, ClientConfig{
		InputAction: "TextInputAction.done",
		InputType:   InputType{Name: "TextInputType.text"},
	}, p.Config())

	s, ok := p.EditingState()
	require.True(t, ok)
	assert.Equal(t, "", s.Text)
	assert.Empty(t, e.outbound)
}

func TestSetClientBadArguments(t *testing.T) {
	tests := []struct {
		name string
		args any
	}{
		{"no args", nil},
		{"not a list", map[string]any{"id": 1}},
		{"id only", []any{3}},
		{"string id", []any{"3", map[string]any{"inputAction": "a", "inputType": map[string]any{"name": "b"}}}},
		{"fractional id", []any{3.5, map[string]any{"inputAction": "a", "inputType": map[string]any{"name": "b"}}}},
		{"config not a map", []any{3, "config"}},
		{"missing input type", []any{3, map[string]any{"inputAction": "a"}}},
		{"input type without name", []any{3, map[string]any{"inputAction": "a", "inputType": map[string]any{}}}},
		{"numeric action", []any{3, map[string]any{"inputAction": 1, "inputType": map[string]any{"name": "b"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, e, _ := setup(t)
			out := e.call(MethodSetClient, tt.args)
			assert.Equal(t, ErrorBadArguments, out.code)
			assert.Equal(t, Unbound, p.State())
			assert.Equal(t, NoClient, p.ClientID())
		})
	}
}

func TestSetClientReplacesSession(t *testing.T) {
	p, e, _ := setup(t)
	e.call(MethodSetClient, clientArgs(1, "TextInputAction.next", "TextInputType.text"))
	e.call(MethodSetEditingState, map[string]any{"text": "hello", "selectionBase": 5, "selectionExtent": 5})
	require.Equal(t, BoundEditing, p.State())

	e.call(MethodSetClient, clientArgs(2, "TextInputAction.done", MultilineInputType))
	assert.Equal(t, BoundEmpty, p.State())
	assert.Equal(t, 2, p.ClientID())
	s, _ := p.EditingState()
	assert.Equal(t, "", s.Text)
}

func TestSetEditingState(t *testing.T) {
	p, e, _ := setup(t)
	e.call(MethodSetClient, clientArgs(3, "TextInputAction.done", "TextInputType.text"))

	out := e.call(MethodSetEditingState, map[string]any{
		"text":                   "héllo",
		"selectionBase":          1,
		"selectionExtent":        4,
		"selectionAffinity":      "TextAffinity.upstream",
		"selectionIsDirectional": true,
		"composingBase":          0,
		"composingExtent":        5,
	})
	require.True(t, out.success)
	assert.Equal(t, BoundEditing, p.State())

	s, _ := p.EditingState()
	assert.Equal(t, textmodel.State{
		Text:                   "héllo",
		SelectionBase:          1,
		SelectionExtent:        4,
		SelectionAffinity:      textmodel.AffinityUpstream,
		SelectionIsDirectional: true,
		ComposingBase:          0,
		ComposingExtent:        5,
	}, s)
	assert.Empty(t, e.outbound, "engine-pushed state is never echoed")
}

func TestSetEditingStateDefaults(t *testing.T) {
	tests := []struct {
		name string
		args any
		want textmodel.State
	}{
		{
			name: "collapsed selection",
			args: map[string]any{"text": "abc", "selectionBase": 2, "selectionExtent": 2},
			want: textmodel.State{
				Text: "abc", SelectionBase: 2, SelectionExtent: 2,
				SelectionAffinity: textmodel.AffinityDownstream,
				ComposingBase:     -1, ComposingExtent: -1,
			},
		},
		{
			name: "wrapped in a list",
			args: []any{map[string]any{"text": "abc", "selectionBase": 0, "selectionExtent": 3}},
			want: textmodel.State{
				Text: "abc", SelectionBase: 0, SelectionExtent: 3,
				SelectionAffinity: textmodel.AffinityDownstream,
				ComposingBase:     -1, ComposingExtent: -1,
			},
		},
		{
			name: "no selection yet",
			args: map[string]any{"text": "abc", "selectionBase": -1, "selectionExtent": -1},
			want: textmodel.State{
				Text:              "abc",
				SelectionAffinity: textmodel.AffinityDownstream,
				ComposingBase:     -1, ComposingExtent: -1,
			},
		},
		{
			name: "unknown affinity",
			args: map[string]any{"text": "", "selectionBase": 0, "selectionExtent": 0, "selectionAffinity": "sideways"},
			want: textmodel.State{
				SelectionAffinity: textmodel.AffinityDownstream,
				ComposingBase:     -1, ComposingExtent: -1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, e, _ := setup(t)
			e.call(MethodSetClient, clientArgs(1, "TextInputAction.done", "TextInputType.text"))
			out := e.call(MethodSetEditingState, tt.args)
			require.True(t, out.success, "error %s: %s", out.code, out.message)
			s, _ := p.EditingState()
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestSetEditingStateRoundTrip(t *testing.T) {
	p, e, _ := setup(t)
	e.call(MethodSetClient, clientArgs(1, "TextInputAction.done", "TextInputType.text"))

	in := textmodel.State{
		Text:                   "round trip ✓",
		SelectionBase:          11,
		SelectionExtent:        6,
		SelectionAffinity:      textmodel.AffinityUpstream,
		SelectionIsDirectional: true,
		ComposingBase:          6,
		ComposingExtent:        11,
	}
	require.True(t, e.call(MethodSetEditingState, in).success)
	out, _ := p.EditingState()
	assert.Equal(t, in, out)
}

func TestSetEditingStateBadArguments(t *testing.T) {
	tests := []struct {
		name string
		args any
	}{
		{"missing text", map[string]any{"selectionBase": 0, "selectionExtent": 0}},
		{"missing selection", map[string]any{"text": "ab"}},
		{"text not a string", map[string]any{"text": 12, "selectionBase": 0, "selectionExtent": 0}},
		{"selection past end", map[string]any{"text": "ab", "selectionBase": 10, "selectionExtent": 10}},
		{"negative selection", map[string]any{"text": "ab", "selectionBase": -2, "selectionExtent": 0}},
		{"composing past end", map[string]any{"text": "ab", "selectionBase": 0, "selectionExtent": 0, "composingBase": 0, "composingExtent": 3}},
		{"composing reversed", map[string]any{"text": "ab", "selectionBase": 0, "selectionExtent": 0, "composingBase": 2, "composingExtent": 1}},
		{"half composing", map[string]any{"text": "ab", "selectionBase": 0, "selectionExtent": 0, "composingBase": 1}},
		{"caret outside composing", map[string]any{"text": "abc", "selectionBase": 0, "selectionExtent": 0, "composingBase": 1, "composingExtent": 2}},
		{"two states", []any{map[string]any{"text": ""}, map[string]any{"text": ""}}},
		{"no args", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, e, _ := setup(t)
			e.call(MethodSetClient, clientArgs(1, "TextInputAction.done", "TextInputType.text"))
			require.True(t, e.call(MethodSetEditingState, map[string]any{"text": "xy", "selectionBase": 1, "selectionExtent": 1}).success)
			before, _ := p.EditingState()

			out := e.call(MethodSetEditingState, tt.args)
			assert.Equal(t, ErrorBadArguments, out.code)
			after, _ := p.EditingState()
			assert.Equal(t, before, after, "state must not change")
		})
	}
}

func TestSetEditingStateWithoutClient(t *testing.T) {
	p, e, _ := setup(t)
	out := e.call(MethodSetEditingState, map[string]any{"text": "ab", "selectionBase": 0, "selectionExtent": 0})
	assert.Equal(t, ErrorInternalConsistency, out.code)
	assert.Equal(t, Unbound, p.State())

	// The bridge stays usable.
	require.True(t, e.call(MethodSetClient, clientArgs(1, "TextInputAction.done", "TextInputType.text")).success)
	assert.True(t, e.call(MethodSetEditingState, map[string]any{"text": "ab", "selectionBase": 0, "selectionExtent": 0}).success)
}

func TestClearClient(t *testing.T) {
	p, e, _ := setup(t)
	e.call(MethodSetClient, clientArgs(3, "TextInputAction.done", "TextInputType.text"))
	e.call(MethodSetEditingState, map[string]any{"text": "ab", "selectionBase": 2, "selectionExtent": 2})

	require.True(t, e.call(MethodClearClient, nil).success)
	assert.Equal(t, Unbound, p.State())
	assert.Equal(t, NoClient, p.ClientID())
	_, ok := p.EditingState()
	assert.False(t, ok)

	press(p, 'x')
	press(p, keyevent.KeyReturn)
	press(p, keyevent.KeyBackSpace)
	assert.Empty(t, e.outbound, "keys are no-ops once the client is cleared")

	assert.True(t, e.call(MethodClearClient, nil).success, "clearClient is idempotent")
	assert.Equal(t, Unbound, p.State())
}

func TestShowHide(t *testing.T) {
	p, e, panel := setup(t)

	assert.True(t, e.call(MethodShow, nil).success)
	assert.True(t, e.call(MethodHide, nil).success)
	assert.Zero(t, panel.shown, "no-op while unbound")
	assert.Zero(t, panel.hidden)

	e.call(MethodSetClient, clientArgs(1, "TextInputAction.done", "TextInputType.text"))
	assert.True(t, e.call(MethodShow, nil).success)
	assert.True(t, e.call(MethodHide, nil).success)
	assert.Equal(t, 1, panel.shown)
	assert.Equal(t, 1, panel.hidden)

	panel.err = errors.New("no keyboard")
	assert.True(t, e.call(MethodShow, nil).success, "panel failures are not reported to the engine")
	assert.Equal(t, BoundEmpty, p.State(), "visibility does not touch the model")
}

func TestUnknownMethod(t *testing.T) {
	p, e, _ := setup(t)
	for _, m := range []string{"TextInput.setStyle", "TextInput.setEditableSizeAndTransform", "Nonsense"} {
		out := e.call(m, map[string]any{"x": 1})
		assert.True(t, out.notImplemented, m)
	}
	assert.Equal(t, Unbound, p.State())
}

func TestEnterPerformsAction(t *testing.T) {
	p, e, _ := setup(t)
	e.call(MethodSetClient, clientArgs(3, "done", "TextInputType.text"))
	e.call(MethodSetEditingState, map[string]any{"text": "ab", "selectionBase": 2, "selectionExtent": 2})

	press(p, keyevent.KeyReturn)

	method, args := e.lastOutbound()
	assert.Equal(t, MethodPerformAction, method)
	require.Len(t, args, 2)
	assert.JSONEq(t, `3`, string(args[0]))
	assert.JSONEq(t, `"done"`, string(args[1]))
	assert.Len(t, e.outbound, 1)

	s, _ := p.EditingState()
	assert.Equal(t, "ab", s.Text)
}

func TestEnterMultilineInsertsNewline(t *testing.T) {
	p, e, _ := setup(t)
	e.call(MethodSetClient, clientArgs(3, "done", MultilineInputType))
	e.call(MethodSetEditingState, map[string]any{"text": "ab", "selectionBase": 2, "selectionExtent": 2})

	press(p, keyevent.KeyKPEnter)

	method, args := e.lastOutbound()
	assert.Equal(t, MethodUpdateEditingState, method)
	require.Len(t, args, 2)
	assert.JSONEq(t, `3`, string(args[0]))

	var s textmodel.State
	require.NoError(t, json.Unmarshal(args[1], &s))
	assert.Equal(t, "ab\n", s.Text)
	assert.Equal(t, 3, s.SelectionBase)
	assert.Equal(t, 3, s.SelectionExtent)
	assert.Equal(t, -1, s.ComposingBase)
	for _, c := range e.outbound {
		assert.NotEqual(t, MethodPerformAction, c.Method)
	}
}

func TestEnterMultilineIsCaseSensitive(t *testing.T) {
	p, e, _ := setup(t)
	e.call(MethodSetClient, clientArgs(3, "done", "textinputtype.multiline"))
	press(p, keyevent.KeyReturn)

	method, _ := e.lastOutbound()
	assert.Equal(t, MethodPerformAction, method)
	s, _ := p.EditingState()
	assert.Equal(t, "", s.Text)
}

func TestEnterPressedWithoutClient(t *testing.T) {
	p, e, _ := setup(t)
	p.EnterPressed()
	assert.Empty(t, e.outbound)
}

func TestHandleKeyEdits(t *testing.T) {
	p, e, _ := setup(t)
	e.call(MethodSetClient, clientArgs(7, "done", "TextInputType.text"))

	for _, r := range "hi!" {
		press(p, keyevent.FromRune(r))
	}
	assert.Equal(t, BoundEditing, p.State())
	require.Len(t, e.outbound, 3)

	press(p, keyevent.KeyLeft)
	press(p, keyevent.KeyBackSpace)
	press(p, keyevent.KeyHome)
	press(p, keyevent.KeyDelete)
	press(p, keyevent.KeyEnd)

	s, _ := p.EditingState()
	assert.Equal(t, "!", s.Text)
	assert.Equal(t, 1, s.SelectionBase)
	assert.Len(t, e.outbound, 8)

	_, args := e.lastOutbound()
	var last textmodel.State
	require.NoError(t, json.Unmarshal(args[1], &last))
	assert.Equal(t, s, last)
}

func TestHandleKeyOnlyEmitsOnChange(t *testing.T) {
	p, e, _ := setup(t)
	e.call(MethodSetClient, clientArgs(7, "done", "TextInputType.text"))

	press(p, keyevent.KeyBackSpace)
	press(p, keyevent.KeyLeft)
	press(p, keyevent.KeyHome)
	press(p, keyevent.KeyEscape)
	assert.Empty(t, e.outbound)
	assert.Equal(t, BoundEmpty, p.State())
}

func TestHandleKeyIgnoresReleasesAndShortcuts(t *testing.T) {
	p, e, _ := setup(t)
	e.call(MethodSetClient, clientArgs(7, "done", "TextInputType.text"))

	p.HandleKey('a', keyevent.StateReleased, 0)
	p.HandleKey('c', keyevent.StatePressed, keyevent.ModControl)
	p.HandleKey('f', keyevent.StatePressed, keyevent.ModAlt)
	assert.Empty(t, e.outbound)

	p.HandleKey('A', keyevent.StatePressed, keyevent.ModShift)
	s, _ := p.EditingState()
	assert.Equal(t, "A", s.Text)
}

func TestHandleKeyWithoutClientIsDropped(t *testing.T) {
	p, e, _ := setup(t)
	press(p, 'a')
	press(p, keyevent.KeyReturn)
	assert.Empty(t, e.outbound)
	assert.Equal(t, Unbound, p.State())
}

func TestHandleKeyReplacesSelection(t *testing.T) {
	p, e, _ := setup(t)
	e.call(MethodSetClient, clientArgs(1, "done", "TextInputType.text"))
	e.call(MethodSetEditingState, map[string]any{"text": "hello", "selectionBase": 1, "selectionExtent": 4})

	press(p, 'E')
	s, _ := p.EditingState()
	assert.Equal(t, "hEo", s.Text)
	assert.Equal(t, 2, s.SelectionBase)
	assert.Equal(t, 2, s.SelectionExtent)
}

func TestClose(t *testing.T) {
	p, e, _ := setup(t)
	p.Close()
	out := e.call(MethodSetClient, clientArgs(1, "done", "TextInputType.text"))
	assert.True(t, out.notImplemented, "no handler answers with an empty reply")
}
