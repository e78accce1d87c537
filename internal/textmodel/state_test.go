package textmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	states := []State{
		{Text: "", SelectionAffinity: AffinityDownstream, ComposingBase: -1, ComposingExtent: -1},
		{Text: "ab", SelectionBase: 2, SelectionExtent: 2, SelectionAffinity: AffinityDownstream, ComposingBase: -1, ComposingExtent: -1},
		{Text: "hello", SelectionBase: 4, SelectionExtent: 1, SelectionAffinity: AffinityUpstream, SelectionIsDirectional: true, ComposingBase: -1, ComposingExtent: -1},
		{Text: "かな", SelectionBase: 2, SelectionExtent: 2, SelectionAffinity: AffinityDownstream, ComposingBase: 0, ComposingExtent: 2},
		{Text: "abc", SelectionBase: 1, SelectionExtent: 1, SelectionAffinity: AffinityDownstream, ComposingBase: 1, ComposingExtent: 1},
	}

	for _, s := range states {
		t.Run(s.Text, func(t *testing.T) {
			m := New()
			require.NoError(t, m.SetState(s))
			assert.Equal(t, s, m.State())
		})
	}
}

func TestSetStateCollapsedSelection(t *testing.T) {
	for k := 0; k <= 3; k++ {
		m := New()
		require.NoError(t, m.SetState(State{
			Text:            "abc",
			SelectionBase:   k,
			SelectionExtent: k,
			ComposingBase:   NoComposing,
			ComposingExtent: NoComposing,
		}))
		assert.Equal(t, Caret(k), m.Selection())
		got := m.State()
		assert.Equal(t, NoComposing, got.ComposingBase)
		assert.Equal(t, NoComposing, got.ComposingExtent)
	}
}

func TestSetStateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		state State
	}{
		{"base past end", State{Text: "ab", SelectionBase: 10, SelectionExtent: 2, ComposingBase: -1, ComposingExtent: -1}},
		{"extent past end", State{Text: "ab", SelectionBase: 0, SelectionExtent: 3, ComposingBase: -1, ComposingExtent: -1}},
		{"negative base", State{Text: "ab", SelectionBase: -1, SelectionExtent: 0, ComposingBase: -1, ComposingExtent: -1}},
		{"counts runes", State{Text: "é", SelectionBase: 2, SelectionExtent: 2, ComposingBase: -1, ComposingExtent: -1}},
		{"composing past end", State{Text: "ab", ComposingBase: 0, ComposingExtent: 5}},
		{"composing reversed", State{Text: "ab", ComposingBase: 2, ComposingExtent: 1}},
		{"composing half set", State{Text: "ab", ComposingBase: -1, ComposingExtent: 1}},
		{"caret before composing", State{Text: "abc", SelectionBase: 0, SelectionExtent: 0, ComposingBase: 1, ComposingExtent: 2}},
		{"caret after composing", State{Text: "abcd", SelectionBase: 4, SelectionExtent: 4, ComposingBase: 1, ComposingExtent: 2}},
		{"selection straddles composing", State{Text: "abcd", SelectionBase: 0, SelectionExtent: 3, ComposingBase: 1, ComposingExtent: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.SetText("keep")
			err := m.SetState(tt.state)
			require.ErrorIs(t, err, ErrOutOfRange)
			assert.Equal(t, "keep", m.Text())
		})
	}
}

func TestParseAffinity(t *testing.T) {
	assert.Equal(t, AffinityUpstream, ParseAffinity("TextAffinity.upstream"))
	assert.Equal(t, AffinityDownstream, ParseAffinity("TextAffinity.downstream"))
	assert.Equal(t, AffinityDownstream, ParseAffinity(""))
	assert.Equal(t, AffinityDownstream, ParseAffinity("textaffinity.upstream"))
}
