package textmodel

import "fmt"

// Range is a span of code point offsets. Base is where the span was
// anchored and Extent is where it ends; Extent may precede Base.
type Range struct {
	Base   int
	Extent int
}

// Caret returns a collapsed range at pos.
func Caret(pos int) Range {
	return Range{Base: pos, Extent: pos}
}

// NewRange returns a range anchored at base and extending to extent.
func NewRange(base, extent int) Range {
	return Range{Base: base, Extent: extent}
}

// Start returns the smaller offset.
func (r Range) Start() int {
	return min(r.Base, r.Extent)
}

// End returns the larger offset.
func (r Range) End() int {
	return max(r.Base, r.Extent)
}

// Position is the caret position, which is always the extent.
func (r Range) Position() int {
	return r.Extent
}

// Length returns End-Start.
func (r Range) Length() int {
	return r.End() - r.Start()
}

// Collapsed reports whether the range is a caret.
func (r Range) Collapsed() bool {
	return r.Base == r.Extent
}

// ContainsOffset reports whether pos lies within [Start, End].
func (r Range) ContainsOffset(pos int) bool {
	return pos >= r.Start() && pos <= r.End()
}

// Contains reports whether other lies entirely within r.
func (r Range) Contains(other Range) bool {
	return r.ContainsOffset(other.Start()) && r.ContainsOffset(other.End())
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Base, r.Extent)
}
