// Package segment turns a live range into per-line rectangles.
//
// A single bounding box of a multi-line range spans the full container
// width, so the range is measured in word-sized pieces instead and pieces
// that land on the same visual line are merged into one Segment.
package segment

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dgallion1/textanchor/internal/dom"
	"github.com/dgallion1/textanchor/internal/layout"
	"golang.org/x/net/html"
)

// Segment is one per-line rectangle covering part of a resolved range, in px
// relative to the content root's box.
type Segment = layout.Rect

// Measurer reports where piece renders when it follows prefix in the root's
// text flow, as one box per line the piece occupies. prefix is a hidden copy
// of all preceding text.
type Measurer interface {
	MeasureLines(prefix, piece string) []layout.Rect
}

// Result is the output of one Build.
type Result struct {
	Segments []Segment   `json:"segments"`
	Extent   layout.Rect `json:"extent"`
}

// Builder computes segments. It holds no geometry between calls.
type Builder struct {
	measure Measurer
}

func NewBuilder(m Measurer) *Builder {
	return &Builder{measure: m}
}

// Build computes the segments of r inside root. An empty or collapsed range
// yields an empty Result.
func (b *Builder) Build(root *html.Node, r dom.Range) (Result, error) {
	start, err := dom.TextOffset(root, r.Start)
	if err != nil {
		return Result{}, fmt.Errorf("range start: %w", err)
	}
	end, err := dom.TextOffset(root, r.End)
	if err != nil {
		return Result{}, fmt.Errorf("range end: %w", err)
	}
	if end <= start {
		return Result{}, nil
	}

	text := []rune(dom.TextContent(root))
	var prefix strings.Builder
	prefix.WriteString(string(text[:start]))

	var res Result
	var cur Segment
	open := false
	flush := func() {
		if open && !cur.Empty() {
			res.Segments = append(res.Segments, cur)
		}
		open = false
	}

	for _, piece := range Pieces(string(text[start:end])) {
		boxes := b.measure.MeasureLines(prefix.String(), piece)
		prefix.WriteString(piece)

		// A piece can wrap partway through, so each of its line boxes is
		// grouped on its own.
		for _, box := range boxes {
			switch {
			case !open || box.Top != cur.Top:
				flush()
				cur = box
				open = true
			case cur.Empty():
				cur = box
			case !box.Empty():
				cur = cur.Union(box)
			}
		}
	}
	flush()

	for i, s := range res.Segments {
		if i == 0 {
			res.Extent = s
			continue
		}
		res.Extent = res.Extent.Union(s)
	}
	return res, nil
}

// Pieces splits s into word + trailing non-word pairs. Concatenating the
// result yields s.
func Pieces(s string) []string {
	var out []string
	runes := []rune(s)
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && isWord(runes[j]) {
			j++
		}
		for j < len(runes) && !isWord(runes[j]) {
			j++
		}
		out = append(out, string(runes[i:j]))
		i = j
	}
	return out
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
