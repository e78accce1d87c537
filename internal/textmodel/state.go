package textmodel

import "fmt"

// NoComposing is the composing offset reported when no composition is active.
const NoComposing = -1

// State is a full snapshot of a model, shaped like the editing-state
// record exchanged with the engine.
type State struct {
	Text                   string   `json:"text"`
	SelectionBase          int      `json:"selectionBase"`
	SelectionExtent        int      `json:"selectionExtent"`
	SelectionAffinity      Affinity `json:"selectionAffinity"`
	SelectionIsDirectional bool     `json:"selectionIsDirectional"`
	ComposingBase          int      `json:"composingBase"`
	ComposingExtent        int      `json:"composingExtent"`
}

// State returns a snapshot of the model.
func (m *Model) State() State {
	s := State{
		Text:                   string(m.text),
		SelectionBase:          m.selection.Base,
		SelectionExtent:        m.selection.Extent,
		SelectionAffinity:      m.affinity,
		SelectionIsDirectional: m.directional,
		ComposingBase:          NoComposing,
		ComposingExtent:        NoComposing,
	}
	if m.composing {
		s.ComposingBase = m.composingRange.Base
		s.ComposingExtent = m.composingRange.Extent
	}
	return s
}

// Validate checks every offset in s against the length of s.Text. While
// composing, the selection must lie within the composing region.
func (s State) Validate() error {
	n := len([]rune(s.Text))
	if s.SelectionBase < 0 || s.SelectionBase > n || s.SelectionExtent < 0 || s.SelectionExtent > n {
		return fmt.Errorf("%w: selection [%d, %d] outside text of length %d",
			ErrOutOfRange, s.SelectionBase, s.SelectionExtent, n)
	}
	if s.ComposingBase == NoComposing && s.ComposingExtent == NoComposing {
		return nil
	}
	if s.ComposingBase < 0 || s.ComposingExtent > n || s.ComposingBase > s.ComposingExtent {
		return fmt.Errorf("%w: composing [%d, %d] invalid for text of length %d",
			ErrOutOfRange, s.ComposingBase, s.ComposingExtent, n)
	}
	composing := NewRange(s.ComposingBase, s.ComposingExtent)
	if !composing.Contains(NewRange(s.SelectionBase, s.SelectionExtent)) {
		return fmt.Errorf("%w: selection [%d, %d] outside composing region %s",
			ErrOutOfRange, s.SelectionBase, s.SelectionExtent, composing)
	}
	return nil
}

// SetState replaces the whole model with s. The model is left untouched
// when s is invalid.
func (m *Model) SetState(s State) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.text = []rune(s.Text)
	m.selection = NewRange(s.SelectionBase, s.SelectionExtent)
	m.affinity = ParseAffinity(string(s.SelectionAffinity))
	m.directional = s.SelectionIsDirectional
	if s.ComposingBase == NoComposing {
		m.composing = false
		m.composingRange = Caret(0)
	} else {
		m.composing = true
		m.composingRange = NewRange(s.ComposingBase, s.ComposingExtent)
	}
	return nil
}
