// Package textinput implements the platform side of the flutter/textinput
// channel.
//
// A Plugin tracks the one focused text field the engine has bound with
// TextInput.setClient, keeps its editing state in a textmodel.Model and
// reports key-driven edits back with TextInputClient.updateEditingState.
// Enter either inserts a newline (multiline fields) or is reported as the
// field's input action with TextInputClient.performAction.
//
// All methods run on the connection's dispatch loop and take no locks.
package textinput

import (
	"encoding/json"
	"fmt"

	"textbridge/internal/textmodel"
)

// ChannelName is the channel the engine sends text input calls on.
const ChannelName = "flutter/textinput"

// Inbound methods.
const (
	MethodSetClient       = "TextInput.setClient"
	MethodSetEditingState = "TextInput.setEditingState"
	MethodClearClient     = "TextInput.clearClient"
	MethodShow            = "TextInput.show"
	MethodHide            = "TextInput.hide"
)

// Outbound methods.
const (
	MethodUpdateEditingState = "TextInputClient.updateEditingState"
	MethodPerformAction      = "TextInputClient.performAction"
)

// MultilineInputType is the input type whose Enter key inserts a newline.
const MultilineInputType = "TextInputType.multiline"

// NoClient is the client id while no field is bound.
const NoClient = -1

// ClientConfig is the configuration sent with setClient.
type ClientConfig struct {
	InputAction string    `json:"inputAction"`
	InputType   InputType `json:"inputType"`
}

// InputType describes the keyboard a field wants.
type InputType struct {
	Name string `json:"name"`
}

// Multiline reports whether Enter inserts a newline for this type. The
// comparison is exact and case sensitive.
func (t InputType) Multiline() bool {
	return t.Name == MultilineInputType
}

// editingState is the inbound setEditingState record. Optional fields are
// pointers so absence can be told apart from zero values.
type editingState struct {
	Text                   string  `json:"text"`
	SelectionBase          int     `json:"selectionBase"`
	SelectionExtent        int     `json:"selectionExtent"`
	SelectionAffinity      *string `json:"selectionAffinity"`
	SelectionIsDirectional *bool   `json:"selectionIsDirectional"`
	ComposingBase          *int    `json:"composingBase"`
	ComposingExtent        *int    `json:"composingExtent"`
}

// toState fills defaults and converts to a model snapshot. A -1/-1
// selection means the engine has no selection yet and becomes a caret at 0.
func (e editingState) toState() textmodel.State {
	s := textmodel.State{
		Text:              e.Text,
		SelectionBase:     e.SelectionBase,
		SelectionExtent:   e.SelectionExtent,
		SelectionAffinity: textmodel.AffinityDownstream,
		ComposingBase:     textmodel.NoComposing,
		ComposingExtent:   textmodel.NoComposing,
	}
	if s.SelectionBase == -1 && s.SelectionExtent == -1 {
		s.SelectionBase, s.SelectionExtent = 0, 0
	}
	if e.SelectionAffinity != nil {
		s.SelectionAffinity = textmodel.ParseAffinity(*e.SelectionAffinity)
	}
	if e.SelectionIsDirectional != nil {
		s.SelectionIsDirectional = *e.SelectionIsDirectional
	}
	if e.ComposingBase != nil {
		s.ComposingBase = *e.ComposingBase
	}
	if e.ComposingExtent != nil {
		s.ComposingExtent = *e.ComposingExtent
	}
	return s
}

// decodeSetClient validates and decodes setClient arguments.
func decodeSetClient(raw json.RawMessage) (int, ClientConfig, error) {
	if err := validate(setClientSchema, raw); err != nil {
		return 0, ClientConfig{}, err
	}
	var args []json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return 0, ClientConfig{}, err
	}
	var (
		id  int
		cfg ClientConfig
	)
	if err := json.Unmarshal(args[0], &id); err != nil {
		return 0, ClientConfig{}, fmt.Errorf("client id: %w", err)
	}
	if err := json.Unmarshal(args[1], &cfg); err != nil {
		return 0, ClientConfig{}, fmt.Errorf("client config: %w", err)
	}
	return id, cfg, nil
}

// decodeEditingState validates and decodes setEditingState arguments.
// The state may arrive bare or wrapped in a one-element list.
func decodeEditingState(raw json.RawMessage) (textmodel.State, error) {
	var wrapped []json.RawMessage
	if json.Unmarshal(raw, &wrapped) == nil {
		if len(wrapped) != 1 {
			return textmodel.State{}, fmt.Errorf("expected one editing state, got %d arguments", len(wrapped))
		}
		raw = wrapped[0]
	}
	if err := validate(editingStateSchema, raw); err != nil {
		return textmodel.State{}, err
	}
	var e editingState
	if err := json.Unmarshal(raw, &e); err != nil {
		return textmodel.State{}, err
	}
	return e.toState(), nil
}
