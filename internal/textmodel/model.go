// Package textmodel holds the editing state of a single text field: its
// content, the selection and the IME composing region.
//
// All offsets count Unicode code points. The model is not safe for
// concurrent use; its owner serializes access.
package textmodel

import (
	"errors"
	"slices"
	"unicode/utf8"
)

// ErrOutOfRange is returned when an offset falls outside the text.
var ErrOutOfRange = errors.New("textmodel: offset out of range")

// Affinity tells which side of a line-wrap boundary the caret binds to.
type Affinity string

const (
	AffinityDownstream Affinity = "TextAffinity.downstream"
	AffinityUpstream   Affinity = "TextAffinity.upstream"
)

// ParseAffinity maps a wire value to an Affinity. Unknown values fall back
// to downstream.
func ParseAffinity(s string) Affinity {
	if Affinity(s) == AffinityUpstream {
		return AffinityUpstream
	}
	return AffinityDownstream
}

// Model is the editing state of one text field.
type Model struct {
	text      []rune
	selection Range

	// composingRange is only meaningful while composing is set.
	composing      bool
	composingRange Range

	affinity    Affinity
	directional bool
}

// New returns an empty model with a caret at 0.
func New() *Model {
	return &Model{affinity: AffinityDownstream}
}

// Text returns the current content.
func (m *Model) Text() string {
	return string(m.text)
}

// Len returns the content length in code points.
func (m *Model) Len() int {
	return len(m.text)
}

// Selection returns the current selection.
func (m *Model) Selection() Range {
	return m.selection
}

// Composing reports whether an IME composition is in progress.
func (m *Model) Composing() bool {
	return m.composing
}

// ComposingRange returns the composing region. It is only meaningful when
// Composing reports true.
func (m *Model) ComposingRange() Range {
	return m.composingRange
}

// Affinity returns the selection affinity.
func (m *Model) Affinity() Affinity {
	return m.affinity
}

// Directional reports whether the selection has a meaningful direction.
func (m *Model) Directional() bool {
	return m.directional
}

// CursorOffset returns the caret position as a UTF-8 byte offset into Text.
func (m *Model) CursorOffset() int {
	n := 0
	for _, r := range m.text[:m.selection.Position()] {
		n += utf8.RuneLen(r)
	}
	return n
}

// SetText replaces the content, resets the caret to 0 and ends any
// composition.
func (m *Model) SetText(s string) {
	m.text = []rune(s)
	m.composing = false
	m.composingRange = Caret(0)
	m.setCaret(0)
}

// SetSelection moves the selection to r. It fails if r falls outside the
// text or, while composing, outside the composing region.
func (m *Model) SetSelection(r Range) bool {
	if m.composing && !m.composingRange.Contains(r) {
		return false
	}
	if !m.textRange().Contains(r) {
		return false
	}
	m.selection = r
	return true
}

// BeginComposing starts a composition at the start of the selection.
func (m *Model) BeginComposing() {
	m.composing = true
	m.composingRange = Caret(m.selection.Start())
}

// SetComposingRange sets the composing region and places the caret
// cursorOffset code points after its start. It fails when not composing
// or when r falls outside the text.
func (m *Model) SetComposingRange(r Range, cursorOffset int) bool {
	if !m.composing || !m.textRange().Contains(r) {
		return false
	}
	pos := r.Start() + cursorOffset
	if !r.ContainsOffset(pos) {
		return false
	}
	m.composingRange = r
	m.setCaret(pos)
	return true
}

// UpdateComposingText replaces the composing text with s, or the selection
// when nothing has been composed yet.
func (m *Model) UpdateComposingText(s string) {
	if !m.composing {
		return
	}
	if m.composingRange.Collapsed() && !m.selection.Collapsed() {
		start := m.selection.Start()
		m.text = slices.Delete(m.text, start, m.selection.End())
		m.composingRange = Caret(start)
	}
	runes := []rune(s)
	start := m.composingRange.Start()
	m.text = slices.Replace(m.text, start, m.composingRange.End(), runes...)
	m.composingRange = NewRange(start, start+len(runes))
	m.setCaret(m.composingRange.End())
}

// CommitComposing accepts the composing text. The composition stays open
// with an empty region after the committed text.
func (m *Model) CommitComposing() {
	if !m.composing || m.composingRange.Collapsed() {
		return
	}
	m.composingRange = Caret(m.composingRange.End())
	m.setCaret(m.composingRange.End())
}

// EndComposing closes the composition.
func (m *Model) EndComposing() {
	m.composing = false
	m.composingRange = Caret(0)
}

// AddCodePoint inserts r in place of the selection.
func (m *Model) AddCodePoint(r rune) {
	m.AddText(string(r))
}

// AddText inserts s in place of the selection. While composing, the
// composing text is replaced instead.
func (m *Model) AddText(s string) {
	runes := []rune(s)
	m.deleteSelected()
	if m.composing {
		start := m.composingRange.Start()
		m.text = slices.Delete(m.text, start, m.composingRange.End())
		m.setCaret(start)
		m.composingRange = NewRange(start, start+len(runes))
	}
	pos := m.selection.Position()
	m.text = slices.Insert(m.text, pos, runes...)
	m.setCaret(pos + len(runes))
}

// Backspace deletes the selection, or the code point before the caret.
// It reports whether the text changed.
func (m *Model) Backspace() bool {
	if m.deleteSelected() {
		return true
	}
	pos := m.selection.Position()
	if pos <= m.editableRange().Start() {
		return false
	}
	m.remove(pos-1, pos)
	m.setCaret(pos - 1)
	return true
}

// Delete deletes the selection, or the code point after the caret. It
// reports whether the text changed.
func (m *Model) Delete() bool {
	if m.deleteSelected() {
		return true
	}
	pos := m.selection.Position()
	editable := m.editableRange()
	if pos < editable.Start() || pos >= editable.End() {
		return false
	}
	m.remove(pos, pos+1)
	return true
}

// DeleteSurrounding deletes count code points starting offset code points
// away from the caret, clamped to the editable region. It reports whether
// anything was deleted.
func (m *Model) DeleteSurrounding(offset, count int) bool {
	editable := m.editableRange()
	start := min(max(m.selection.Extent+offset, editable.Start()), editable.End())
	end := min(start+max(count, 0), editable.End())
	if start == end {
		return false
	}
	m.remove(start, end)
	deleted := end - start
	pos := m.selection.Position()
	switch {
	case pos >= end:
		pos -= deleted
	case pos > start:
		pos = start
	}
	m.setCaret(pos)
	return true
}

// MoveCursorToBeginning moves the caret to the start of the editable
// region. It reports whether the selection changed.
func (m *Model) MoveCursorToBeginning() bool {
	start := m.editableRange().Start()
	if m.selection.Collapsed() && m.selection.Position() == start {
		return false
	}
	m.setCaret(start)
	return true
}

// MoveCursorToEnd moves the caret to the end of the editable region. It
// reports whether the selection changed.
func (m *Model) MoveCursorToEnd() bool {
	end := m.editableRange().End()
	if m.selection.Collapsed() && m.selection.Position() == end {
		return false
	}
	m.setCaret(end)
	return true
}

// MoveCursorForward collapses a selection to its end, or advances the
// caret by one code point. It reports whether the selection changed.
func (m *Model) MoveCursorForward() bool {
	if !m.selection.Collapsed() {
		m.setCaret(m.selection.End())
		return true
	}
	pos := m.selection.Position()
	if pos >= m.editableRange().End() {
		return false
	}
	m.setCaret(pos + 1)
	return true
}

// MoveCursorBack collapses a selection to its start, or moves the caret
// back by one code point. It reports whether the selection changed.
func (m *Model) MoveCursorBack() bool {
	if !m.selection.Collapsed() {
		m.setCaret(m.selection.Start())
		return true
	}
	pos := m.selection.Position()
	if pos <= m.editableRange().Start() {
		return false
	}
	m.setCaret(pos - 1)
	return true
}

func (m *Model) deleteSelected() bool {
	if m.selection.Collapsed() {
		return false
	}
	start := m.selection.Start()
	m.remove(start, m.selection.End())
	m.setCaret(start)
	return true
}

// setCaret collapses the selection at pos. Local edits always leave a
// plain downstream caret.
func (m *Model) setCaret(pos int) {
	m.selection = Caret(pos)
	m.affinity = AffinityDownstream
	m.directional = false
}

func (m *Model) textRange() Range {
	return NewRange(0, len(m.text))
}

func (m *Model) editableRange() Range {
	if m.composing {
		return m.composingRange
	}
	return m.textRange()
}

// remove deletes text[start:end] and moves the composing region with the
// text it covers.
func (m *Model) remove(start, end int) {
	m.text = slices.Delete(m.text, start, end)
	if !m.composing {
		return
	}
	shift := func(pos int) int {
		switch {
		case pos >= end:
			return pos - (end - start)
		case pos > start:
			return start
		}
		return pos
	}
	m.composingRange = NewRange(shift(m.composingRange.Start()), shift(m.composingRange.End()))
}
