// Package anchor turns live selections into durable start/end token pairs
// scoped to one content root, and resolves them back into live ranges.
package anchor

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/dgallion1/textanchor/internal/dom"
	"github.com/dgallion1/textanchor/internal/position"
	"golang.org/x/net/html"
)

var (
	// ErrEmptySelection indicates a selection with zero length.
	ErrEmptySelection = errors.New("selection is empty")

	// ErrOrphanedAnchor indicates an anchor that no longer resolves against
	// the rendered document. The annotation data stays valid.
	ErrOrphanedAnchor = errors.New("anchor could not be resolved")

	// ErrInvalidAnchor indicates persisted anchor data that is structurally
	// wrong: missing or mistyped fields, or an end before its start.
	ErrInvalidAnchor = errors.New("invalid anchor")
)

// Anchor is the persisted form of an annotated span.
type Anchor struct {
	SentenceIndex int            `json:"sentenceIndex"`
	Start         position.Token `json:"start"`
	End           position.Token `json:"end"`
}

// RootLookup resolves a sentence index to its content root.
type RootLookup func(sentenceIndex int) (*html.Node, error)

// DocumentLookup adapts a Document to a RootLookup.
func DocumentLookup(doc *dom.Document) RootLookup {
	return doc.Root
}

// FromSelection captures sel inside root. The first range's start and the
// last range's end are used, so selections fragmented by inline markup
// become a single span.
func FromSelection(doc *dom.Document, root *html.Node, sel dom.Selection) (Anchor, error) {
	idx := doc.IndexOf(root)
	if idx < 0 {
		return Anchor{}, fmt.Errorf("%w: root is not part of the document", position.ErrOutOfBounds)
	}
	ranges := sel.Ranges()
	if len(ranges) == 0 {
		return Anchor{}, ErrEmptySelection
	}
	start := ranges[0].Start
	end := ranges[len(ranges)-1].End

	startAbs, err := dom.TextOffset(root, start)
	if err != nil {
		return Anchor{}, fmt.Errorf("%w: start: %w", position.ErrOutOfBounds, err)
	}
	endAbs, err := dom.TextOffset(root, end)
	if err != nil {
		return Anchor{}, fmt.Errorf("%w: end: %w", position.ErrOutOfBounds, err)
	}
	if endAbs < startAbs {
		start, end = end, start
		startAbs, endAbs = endAbs, startAbs
	}
	if endAbs == startAbs {
		return Anchor{}, ErrEmptySelection
	}

	startTok, err := position.EncodePoint(root, start)
	if err != nil {
		return Anchor{}, err
	}
	endTok, err := position.EncodePoint(root, end)
	if err != nil {
		return Anchor{}, err
	}
	return Anchor{SentenceIndex: idx, Start: startTok, End: endTok}, nil
}

// FromRange is FromSelection for a single range.
func FromRange(doc *dom.Document, root *html.Node, r dom.Range) (Anchor, error) {
	return FromSelection(doc, root, dom.StaticSelection{r})
}

// FromOffsets builds an anchor from absolute rune offsets within a sentence.
func FromOffsets(doc *dom.Document, sentenceIndex, from, to int) (Anchor, error) {
	root, err := doc.Root(sentenceIndex)
	if err != nil {
		return Anchor{}, fmt.Errorf("%w: %w", position.ErrOutOfBounds, err)
	}
	start, err := dom.PointAt(root, from)
	if err != nil {
		return Anchor{}, fmt.Errorf("%w: %w", position.ErrOutOfBounds, err)
	}
	end, err := dom.PointAt(root, to)
	if err != nil {
		return Anchor{}, fmt.Errorf("%w: %w", position.ErrOutOfBounds, err)
	}
	return FromRange(doc, root, dom.Range{Start: start, End: end})
}

// ToLiveRange resolves a against the root lookup returns for its sentence.
func ToLiveRange(a Anchor, lookup RootLookup) (dom.Range, error) {
	_, r, err := Resolve(a, lookup)
	return r, err
}

// Resolve is ToLiveRange that also returns the content root.
func Resolve(a Anchor, lookup RootLookup) (*html.Node, dom.Range, error) {
	root, err := lookup(a.SentenceIndex)
	if err != nil {
		return nil, dom.Range{}, fmt.Errorf("%w: sentence %d: %w", ErrOrphanedAnchor, a.SentenceIndex, err)
	}
	start, err := position.DecodePoint(root, a.Start)
	if err != nil {
		return nil, dom.Range{}, fmt.Errorf("%w: start: %w", ErrOrphanedAnchor, err)
	}
	end, err := position.DecodePoint(root, a.End)
	if err != nil {
		return nil, dom.Range{}, fmt.Errorf("%w: end: %w", ErrOrphanedAnchor, err)
	}
	startAbs, _ := dom.TextOffset(root, start)
	endAbs, _ := dom.TextOffset(root, end)
	if endAbs < startAbs {
		return nil, dom.Range{}, fmt.Errorf("%w: end precedes start", ErrInvalidAnchor)
	}
	return root, dom.Range{Start: start, End: end}, nil
}

// Validate checks the structural shape of a.
func (a Anchor) Validate() error {
	if a.SentenceIndex < 0 {
		return fmt.Errorf("%w: negative sentenceIndex", ErrInvalidAnchor)
	}
	if a.Start == "" || a.End == "" {
		return fmt.Errorf("%w: start and end are required", ErrInvalidAnchor)
	}
	startPath, startOff, err := position.Parse(a.Start)
	if err != nil {
		return fmt.Errorf("%w: start: %w", ErrInvalidAnchor, err)
	}
	endPath, endOff, err := position.Parse(a.End)
	if err != nil {
		return fmt.Errorf("%w: end: %w", ErrInvalidAnchor, err)
	}
	// Tokens on different nodes can only be ordered against the document;
	// Resolve checks those.
	if slices.Equal(startPath, endPath) && endOff < startOff {
		return fmt.Errorf("%w: end precedes start", ErrInvalidAnchor)
	}
	return nil
}

// UnmarshalJSON rejects anchors whose start or end are missing or are not
// strings.
func (a *Anchor) UnmarshalJSON(data []byte) error {
	var raw struct {
		SentenceIndex *int            `json:"sentenceIndex"`
		Start         json.RawMessage `json:"start"`
		End           json.RawMessage `json:"end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAnchor, err)
	}
	if raw.SentenceIndex == nil {
		return fmt.Errorf("%w: sentenceIndex is required", ErrInvalidAnchor)
	}
	start, err := tokenField(raw.Start, "start")
	if err != nil {
		return err
	}
	end, err := tokenField(raw.End, "end")
	if err != nil {
		return err
	}
	parsed := Anchor{SentenceIndex: *raw.SentenceIndex, Start: start, End: end}
	if err := parsed.Validate(); err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Parse decodes persisted anchor JSON.
func Parse(data []byte) (Anchor, error) {
	var a Anchor
	if err := json.Unmarshal(data, &a); err != nil {
		if errors.Is(err, ErrInvalidAnchor) {
			return Anchor{}, err
		}
		return Anchor{}, fmt.Errorf("%w: %w", ErrInvalidAnchor, err)
	}
	return a, nil
}

func tokenField(raw json.RawMessage, name string) (position.Token, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidAnchor, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidAnchor, name)
	}
	return position.Token(s), nil
}
