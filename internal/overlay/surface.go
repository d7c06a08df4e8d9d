// Package overlay renders anchored ranges as positioned elements in a layer
// beside a content root and routes pointer events to them.
//
// The layer is inserted as a sibling of the root, never inside it, so the
// root's text nodes and the position tokens addressing them are untouched.
package overlay

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/dgallion1/textanchor/internal/anchor"
	"github.com/dgallion1/textanchor/internal/dom"
	"github.com/dgallion1/textanchor/internal/segment"
	"golang.org/x/net/html"
)

// Options controls rendering and hit-testing.
type Options struct {
	HoverTolerance float64 // Slack in px around segments for hit-tests.
	Padding        float64 // Rendered padding in px around each segment.
	Controls       bool    // Render a floating control per group.
	ControlWidth   float64
	ControlHeight  float64
	ClassPrefix    string // Prefix of the CSS classes on rendered elements.
}

// DefaultOptions returns the standard overlay settings.
func DefaultOptions() Options {
	return Options{
		HoverTolerance: 2,
		Padding:        1,
		Controls:       true,
		ControlWidth:   40,
		ControlHeight:  16,
		ClassPrefix:    "overlay",
	}
}

// Source is what a new overlay is created from: a persisted anchor or the
// current native selection.
type Source struct {
	anchor    *anchor.Anchor
	selection dom.Selection
}

// FromAnchor returns a Source for a persisted anchor.
func FromAnchor(a anchor.Anchor) Source {
	return Source{anchor: &a}
}

// FromSelection returns a Source for a live selection.
func FromSelection(sel dom.Selection) Source {
	return Source{selection: sel}
}

// Surface owns every overlay group for one content root.
type Surface struct {
	doc      *dom.Document
	root     *html.Node
	index    int
	layer    *html.Node
	builder  *segment.Builder
	lookup   anchor.RootLookup
	opts     Options
	log      *slog.Logger
	observer Observer
	native   dom.Selection

	groups  []*Group
	hovered *Group
	closed  bool
}

// NewSurface creates the overlay layer for root and inserts it right after
// the root in its parent.
func NewSurface(doc *dom.Document, root *html.Node, m segment.Measurer, opts Options, log *slog.Logger) (*Surface, error) {
	idx := doc.IndexOf(root)
	if idx < 0 {
		return nil, fmt.Errorf("content root is not part of the document")
	}
	if opts.ClassPrefix == "" {
		opts.ClassPrefix = DefaultOptions().ClassPrefix
	}
	s := &Surface{
		doc:      doc,
		root:     root,
		index:    idx,
		builder:  segment.NewBuilder(m),
		lookup:   anchor.DocumentLookup(doc),
		opts:     opts,
		log:      log.With("sentence", idx),
		observer: ObserverFuncs{},
		native:   dom.StaticSelection{},
	}
	s.layer = dom.NewElement("span",
		"class", opts.ClassPrefix+"-layer",
		"data-sentence", strconv.Itoa(idx),
		"style", "position:absolute;pointer-events:none",
	)
	if root.Parent != nil {
		root.Parent.InsertBefore(s.layer, root.NextSibling)
	}
	return s, nil
}

// SetObserver registers the host's observer.
func (s *Surface) SetObserver(o Observer) {
	if o == nil {
		o = ObserverFuncs{}
	}
	s.observer = o
}

// SetSelection injects the native selection read on pointer-up.
func (s *Surface) SetSelection(sel dom.Selection) {
	if sel == nil {
		sel = dom.StaticSelection{}
	}
	s.native = sel
}

func (s *Surface) Root() *html.Node  { return s.root }
func (s *Surface) Index() int        { return s.index }
func (s *Surface) Layer() *html.Node { return s.layer }

// Groups returns the live groups in creation order.
func (s *Surface) Groups() []*Group {
	out := make([]*Group, len(s.groups))
	copy(out, s.groups)
	return out
}

// SelectionGroup returns the most recent selection-kind group, or nil.
func (s *Surface) SelectionGroup() *Group {
	for i := len(s.groups) - 1; i >= 0; i-- {
		if s.groups[i].kind == KindSelection {
			return s.groups[i]
		}
	}
	return nil
}

// AddOverlay is the single creation entry point. The new group goes on top
// of every existing one for hit-testing. If the source cannot be anchored
// or resolved, no group is created.
func (s *Surface) AddOverlay(src Source, kind Kind) (*Group, error) {
	if s.closed {
		return nil, errors.New("surface is closed")
	}
	var a anchor.Anchor
	switch {
	case src.anchor != nil:
		a = *src.anchor
	case src.selection != nil:
		var err error
		a, err = anchor.FromSelection(s.doc, s.root, src.selection)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: no anchor or selection given", anchor.ErrEmptySelection)
	}

	g := newGroup(s, a, kind)
	if err := g.Refresh(); err != nil {
		return nil, err
	}
	s.groups = append(s.groups, g)
	s.log.Debug("overlay added", "group", g.id, "kind", kind.String(), "segments", len(g.segments))
	return g, nil
}

// AddAnchor renders a persisted anchor.
func (s *Surface) AddAnchor(a anchor.Anchor, kind Kind) (*Group, error) {
	return s.AddOverlay(FromAnchor(a), kind)
}

// AddSelection renders a live selection as a selection group.
func (s *Surface) AddSelection(sel dom.Selection) (*Group, error) {
	return s.AddOverlay(FromSelection(sel), KindSelection)
}

// RemoveAll destroys every group, or only those of the given kinds.
func (s *Surface) RemoveAll(kinds ...Kind) {
	for _, g := range s.Groups() {
		if len(kinds) == 0 || slices.Contains(kinds, g.kind) {
			g.Destroy()
		}
	}
}

// Refresh recomputes every group's geometry after a layout change. A group
// that fails does not stop the others; the failures are returned joined.
func (s *Surface) Refresh() error {
	var errs []error
	for _, g := range s.Groups() {
		if err := g.Refresh(); err != nil {
			s.log.Warn("overlay refresh failed", "group", g.id, "kind", g.kind.String(), "error", err)
			errs = append(errs, fmt.Errorf("group %s: %w", g.id, err))
		}
	}
	return errors.Join(errs...)
}

// Dispatch routes a pointer event. Groups are tested most recently added
// first and the first hit wins. Pointer-up that hits nothing turns a
// non-empty native selection into a fresh selection overlay.
func (s *Surface) Dispatch(ev *PointerEvent) *Hit {
	if s.closed {
		return nil
	}
	var hit *Hit
	for i := len(s.groups) - 1; i >= 0; i-- {
		if h := s.groups[i].HitTest(ev); h != nil {
			hit = h
			break
		}
	}

	switch ev.Type {
	case PointerMove:
		s.trackHover(hit)
	case Click:
		if hit != nil && hit.Type == HitControl {
			s.observer.OnAction(hit.Group, hit.Group.target())
		}
	case PointerUp:
		if hit == nil {
			s.ReconcileSelection(ev)
		}
	}
	return hit
}

func (s *Surface) trackHover(hit *Hit) {
	var next *Group
	if hit != nil {
		next = hit.Group
	}
	if next == s.hovered {
		return
	}
	prev := s.hovered
	s.hovered = next
	if prev != nil {
		s.observer.OnHover(prev, false)
	}
	if next != nil {
		s.observer.OnHover(next, true)
	}
}

// ReconcileSelection replaces the selection overlay with one spanning the
// native selection and reports whether it did. Only the root the selection
// starts in gets an overlay; a selection that runs into another root is cut
// at the end of this one. Dispatch calls it for a pointer-up that hits
// nothing; a host calls it directly when the drag was released over a
// different root.
func (s *Surface) ReconcileSelection(ev *PointerEvent) bool {
	if s.closed {
		return false
	}
	ranges := s.native.Ranges()
	if len(ranges) == 0 {
		return false
	}
	r := dom.Range{Start: ranges[0].Start, End: ranges[len(ranges)-1].End}
	if root, _ := s.doc.RootOf(r.Start.Node); root != s.root {
		return false
	}
	if root, idx := s.doc.RootOf(r.End.Node); root != s.root {
		r.End = dom.LastPoint(s.root)
		s.log.Debug("selection truncated at sentence end", "end_sentence", idx)
	}

	a, err := anchor.FromRange(s.doc, s.root, r)
	if errors.Is(err, anchor.ErrEmptySelection) {
		return false
	}
	if err != nil {
		s.log.Warn("selection could not be anchored", "error", err)
		return false
	}

	s.RemoveAll(KindSelection)
	if _, err := s.AddOverlay(FromAnchor(a), KindSelection); err != nil {
		s.log.Warn("selection overlay failed", "error", err)
		return false
	}
	ev.suppress()
	return true
}

// Remove destroys g if it belongs to this surface.
func (s *Surface) Remove(g *Group) {
	if g != nil && g.surface == s {
		g.Destroy()
	}
}

// Close destroys every group and takes the layer out of the document.
func (s *Surface) Close() {
	if s.closed {
		return
	}
	s.RemoveAll()
	dom.Detach(s.layer)
	s.closed = true
}

func (s *Surface) detach(g *Group) {
	if i := slices.Index(s.groups, g); i >= 0 {
		s.groups = slices.Delete(s.groups, i, i+1)
	}
	if s.hovered == g {
		s.hovered = nil
	}
	s.log.Debug("overlay destroyed", "group", g.id, "kind", g.kind.String())
	s.observer.OnDestroyed(g)
}
