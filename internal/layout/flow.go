// Package layout flows sentence text into lines the way an inline block with
// white-space: normal would, and measures where a piece of text ends up.
package layout

import (
	"fmt"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Options controls the font and box a content root is laid out in.
type Options struct {
	FontSize   float64 // Font size in px.
	LineHeight float64 // Line box height in px.
	Width      float64 // Container width in px.
}

// DefaultOptions returns a 16px face in a 640px wide container.
func DefaultOptions() Options {
	return Options{
		FontSize:   16,
		LineHeight: 20,
		Width:      640,
	}
}

// NewFace builds a font face for opts from the embedded Go regular font.
func NewFace(opts Options) (font.Face, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    opts.FontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	return face, nil
}

// Flow lays out text for one content root. It is not safe for concurrent use.
type Flow struct {
	face       font.Face
	width      float64
	lineHeight float64
	advances   map[rune]float64
}

// NewFlow builds a Flow with its own face.
func NewFlow(opts Options) (*Flow, error) {
	face, err := NewFace(opts)
	if err != nil {
		return nil, err
	}
	return NewFlowWithFace(face, opts), nil
}

// NewFlowWithFace builds a Flow around an existing face.
func NewFlowWithFace(face font.Face, opts Options) *Flow {
	if opts.LineHeight <= 0 {
		opts.LineHeight = DefaultOptions().LineHeight
	}
	if opts.Width <= 0 {
		opts.Width = DefaultOptions().Width
	}
	return &Flow{
		face:       face,
		width:      opts.Width,
		lineHeight: opts.LineHeight,
		advances:   make(map[rune]float64),
	}
}

// Width returns the container width.
func (f *Flow) Width() float64 { return f.width }

// LineHeight returns the line box height.
func (f *Flow) LineHeight() float64 { return f.lineHeight }

// SetWidth changes the container width, e.g. when a sentence is expanded or
// collapsed. Later measurements reflow against the new width.
func (f *Flow) SetWidth(w float64) {
	if w > 0 {
		f.width = w
	}
}

// MeasureString returns the advance width of s on a single line.
func (f *Flow) MeasureString(s string) float64 {
	total := 0.0
	for _, r := range s {
		total += f.advance(r)
	}
	return total
}

func (f *Flow) advance(r rune) float64 {
	if unicode.IsSpace(r) {
		r = ' '
	}
	if a, ok := f.advances[r]; ok {
		return a
	}
	adv, ok := f.face.GlyphAdvance(r)
	if !ok {
		adv, _ = f.face.GlyphAdvance('?')
	}
	a := float64(adv) / 64
	f.advances[r] = a
	return a
}

// glyph is the placed box of one rune. Collapsed runes take no space.
type glyph struct {
	line      int
	x         float64
	width     float64
	collapsed bool
}

// place flows text and returns one glyph per rune.
func (f *Flow) place(text []rune) []glyph {
	out := make([]glyph, len(text))
	line := 0
	x := 0.0

	for i := 0; i < len(text); {
		j := i
		if unicode.IsSpace(text[i]) {
			for j < len(text) && unicode.IsSpace(text[j]) {
				j++
			}
			// A whitespace run collapses to one space, and disappears
			// entirely at the start of a line.
			for k := i; k < j; k++ {
				out[k] = glyph{line: line, x: x, collapsed: true}
			}
			if x > 0 {
				w := f.advance(' ')
				out[i] = glyph{line: line, x: x, width: w}
				x += w
			}
			i = j
			continue
		}

		for j < len(text) && !unicode.IsSpace(text[j]) {
			j++
		}
		w := 0.0
		for k := i; k < j; k++ {
			w += f.advance(text[k])
		}
		// Words longer than the line overflow on a line of their own.
		if x > 0 && x+w > f.width {
			line++
			x = 0
		}
		for k := i; k < j; k++ {
			a := f.advance(text[k])
			out[k] = glyph{line: line, x: x, width: a}
			x += a
		}
		i = j
	}
	return out
}

// Measure lays out prefix followed by piece and returns the box of piece,
// relative to the container. A piece that wraps yields the union of its
// line boxes; use MeasureLines to keep them apart.
func (f *Flow) Measure(prefix, piece string) Rect {
	boxes := f.MeasureLines(prefix, piece)
	if len(boxes) == 0 {
		return Rect{}
	}
	box := boxes[0]
	for _, r := range boxes[1:] {
		box = box.Union(r)
	}
	return box
}

// MeasureLines lays out prefix followed by piece and returns one box per
// line the piece occupies, top to bottom. prefix is only there to push piece
// to where it renders; it is never drawn. A piece made entirely of collapsed
// whitespace yields a single zero-size box at the position it would have had.
func (f *Flow) MeasureLines(prefix, piece string) []Rect {
	p := []rune(prefix)
	q := []rune(piece)
	if len(q) == 0 {
		return nil
	}
	glyphs := f.place(append(p, q...))

	var boxes []Rect
	line := -1
	for _, g := range glyphs[len(p):] {
		if g.collapsed {
			continue
		}
		r := Rect{
			Top:    float64(g.line) * f.lineHeight,
			Left:   g.x,
			Width:  g.width,
			Height: f.lineHeight,
		}
		if g.line != line {
			boxes = append(boxes, r)
			line = g.line
			continue
		}
		boxes[len(boxes)-1] = boxes[len(boxes)-1].Union(r)
	}
	if len(boxes) > 0 {
		return boxes
	}
	g := glyphs[len(p)]
	return []Rect{{Top: float64(g.line) * f.lineHeight, Left: g.x}}
}

// Lines returns the number of line boxes text occupies.
func (f *Flow) Lines(text string) int {
	glyphs := f.place([]rune(text))
	lines := 0
	for _, g := range glyphs {
		if !g.collapsed && g.line+1 > lines {
			lines = g.line + 1
		}
	}
	return lines
}
