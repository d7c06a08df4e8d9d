package dom

// Selection is the native text selection as the host sees it. A selection
// that is visually single may be fragmented into several ranges by inline
// markup.
type Selection interface {
	Ranges() []Range
}

// StaticSelection is a fixed list of ranges.
type StaticSelection []Range

func (s StaticSelection) Ranges() []Range {
	return s
}

// NativeSelection is a mutable selection owned by the host and updated as
// the user drags. Readers always see the latest ranges.
type NativeSelection struct {
	ranges []Range
}

// Set replaces the current ranges.
func (s *NativeSelection) Set(ranges ...Range) {
	s.ranges = append(s.ranges[:0], ranges...)
}

// Clear removes all ranges.
func (s *NativeSelection) Clear() {
	s.ranges = s.ranges[:0]
}

// Ranges returns a copy of the current ranges.
func (s *NativeSelection) Ranges() []Range {
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}
