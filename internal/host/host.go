// Package host owns a rendered article: one layout flow and overlay surface
// per sentence, the native selection, and the persisted annotations shown as
// tag overlays.
//
// A Host is not safe for concurrent use; callers serialise access.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dgallion1/textanchor/internal/anchor"
	"github.com/dgallion1/textanchor/internal/dom"
	"github.com/dgallion1/textanchor/internal/layout"
	"github.com/dgallion1/textanchor/internal/overlay"
	"github.com/dgallion1/textanchor/internal/position"
	"github.com/dgallion1/textanchor/internal/segment"
	"github.com/dgallion1/textanchor/internal/store"
	"golang.org/x/net/html"
)

// ErrNotFound is returned for an unknown annotation ID.
var ErrNotFound = store.ErrNotFound

// Store persists annotations for an article.
type Store interface {
	List(ctx context.Context, articleID string) ([]store.Annotation, error)
	Put(ctx context.Context, articleID string, a store.Annotation) (store.Annotation, error)
	Delete(ctx context.Context, articleID, id string) error
}

// Entry is an annotation as seen by the host. Positioned is false for
// annotations whose anchor no longer resolves.
type Entry struct {
	store.Annotation
	Positioned bool   `json:"positioned"`
	Group      string `json:"group,omitempty"`
}

type entry struct {
	ann   store.Annotation
	group *overlay.Group
}

// Host wires a Document to its overlay surfaces.
type Host struct {
	doc       *dom.Document
	articleID string
	store     Store
	log       *slog.Logger

	flows     []*layout.Flow
	surfaces  []*overlay.Surface
	selection *dom.NativeSelection

	entries []*entry
	byGroup map[*overlay.Group]*entry

	pending []Event
	actions []*overlay.Group
}

var _ overlay.Observer = (*Host)(nil)

// New builds a surface for every sentence of doc. Annotations are not
// loaded until Load is called.
func New(doc *dom.Document, lopts layout.Options, oopts overlay.Options, st Store, articleID string, log *slog.Logger) (*Host, error) {
	face, err := layout.NewFace(lopts)
	if err != nil {
		return nil, err
	}
	h := &Host{
		doc:       doc,
		articleID: articleID,
		store:     st,
		log:       log.With("article", articleID),
		selection: &dom.NativeSelection{},
		byGroup:   make(map[*overlay.Group]*entry),
	}
	for _, root := range doc.Roots() {
		flow := layout.NewFlowWithFace(face, lopts)
		s, err := overlay.NewSurface(doc, root, flow, oopts, h.log)
		if err != nil {
			h.Close()
			return nil, err
		}
		s.SetObserver(h)
		s.SetSelection(h.selection)
		h.flows = append(h.flows, flow)
		h.surfaces = append(h.surfaces, s)
	}
	return h, nil
}

func (h *Host) Document() *dom.Document { return h.doc }
func (h *Host) ArticleID() string       { return h.articleID }

// Load reads the article's annotations and renders a tag overlay for each.
// Annotations whose anchor is orphaned are kept as data only.
func (h *Host) Load(ctx context.Context) error {
	anns, err := h.store.List(ctx, h.articleID)
	if err != nil {
		return fmt.Errorf("load annotations: %w", err)
	}
	for _, ann := range anns {
		e := &entry{ann: ann}
		h.entries = append(h.entries, e)

		g, err := h.addOverlay(ann.Anchor, overlay.KindTag)
		if err != nil {
			h.log.Warn("annotation could not be positioned",
				"annotation", ann.ID,
				"sentence", ann.Anchor.SentenceIndex,
				"orphaned", errors.Is(err, anchor.ErrOrphanedAnchor),
				"error", err,
			)
			continue
		}
		h.bind(e, g)
	}
	h.take()
	return nil
}

// Annotate renders a tag overlay for a and persists it with payload.
func (h *Host) Annotate(ctx context.Context, a anchor.Anchor, payload json.RawMessage) (Entry, error) {
	if err := a.Validate(); err != nil {
		return Entry{}, err
	}
	if err := h.checkNotEmpty(a); err != nil {
		return Entry{}, err
	}
	g, err := h.addOverlay(a, overlay.KindTag)
	if err != nil {
		return Entry{}, err
	}
	ann, err := h.store.Put(ctx, h.articleID, store.Annotation{Anchor: a, Payload: payload})
	if err != nil {
		g.Destroy()
		h.take()
		return Entry{}, err
	}
	e := &entry{ann: ann}
	h.entries = append(h.entries, e)
	h.bind(e, g)
	h.take()
	return e.snapshot(), nil
}

// Remove deletes an annotation and destroys its overlay.
func (h *Host) Remove(ctx context.Context, id string) error {
	err := h.remove(ctx, id)
	h.take()
	return err
}

func (h *Host) remove(ctx context.Context, id string) error {
	i := h.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := h.store.Delete(ctx, h.articleID, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	h.drop(i)
	return nil
}

// Annotations returns every annotation in load and creation order.
func (h *Host) Annotations() []Entry {
	out := make([]Entry, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e.snapshot())
	}
	return out
}

// SetWidth changes the container width of one sentence, as when a block is
// expanded or collapsed, and refreshes its overlays.
func (h *Host) SetWidth(sentence int, width float64) error {
	if err := h.checkSentence(sentence); err != nil {
		return err
	}
	if width <= 0 {
		return fmt.Errorf("width must be positive, got %v", width)
	}
	h.flows[sentence].SetWidth(width)
	err := h.surfaces[sentence].Refresh()
	h.take()
	return err
}

// Refresh recomputes every overlay. Failures are isolated per group and
// returned joined.
func (h *Host) Refresh() error {
	var errs []error
	for _, s := range h.surfaces {
		if err := s.Refresh(); err != nil {
			errs = append(errs, err)
		}
	}
	h.take()
	return errors.Join(errs...)
}

// Render writes the document, overlay layers included, as HTML.
func (h *Host) Render(w io.Writer) error {
	return html.Render(w, h.doc.Node)
}

// Segments computes the segments of an arbitrary token range without
// rendering an overlay.
func (h *Host) Segments(sentence int, start, end position.Token) (segment.Result, error) {
	if err := h.checkSentence(sentence); err != nil {
		return segment.Result{}, err
	}
	a := anchor.Anchor{SentenceIndex: sentence, Start: start, End: end}
	if err := a.Validate(); err != nil {
		return segment.Result{}, err
	}
	root, r, err := anchor.Resolve(a, anchor.DocumentLookup(h.doc))
	if err != nil {
		return segment.Result{}, err
	}
	return segment.NewBuilder(h.flows[sentence]).Build(root, r)
}

// Select replaces the native selection with the text between two absolute
// offsets, which may lie in different sentences.
func (h *Host) Select(startSentence, from, endSentence, to int) error {
	startRoot, err := h.doc.Root(startSentence)
	if err != nil {
		return err
	}
	endRoot, err := h.doc.Root(endSentence)
	if err != nil {
		return err
	}
	start, err := dom.PointAt(startRoot, from)
	if err != nil {
		return err
	}
	end, err := dom.PointAt(endRoot, to)
	if err != nil {
		return err
	}
	h.selection.Set(dom.Range{Start: start, End: end})
	return nil
}

// ClearSelection empties the native selection.
func (h *Host) ClearSelection() {
	h.selection.Clear()
}

// Close tears down every surface. Annotations stay in the store.
func (h *Host) Close() {
	for _, s := range h.surfaces {
		s.Close()
	}
	h.take()
}

func (h *Host) addOverlay(a anchor.Anchor, kind overlay.Kind) (*overlay.Group, error) {
	if a.SentenceIndex >= len(h.surfaces) {
		return nil, fmt.Errorf("%w: sentence %d: %w", anchor.ErrOrphanedAnchor, a.SentenceIndex, dom.ErrNoSuchRoot)
	}
	if a.SentenceIndex < 0 {
		return nil, fmt.Errorf("%w: negative sentenceIndex", anchor.ErrInvalidAnchor)
	}
	return h.surfaces[a.SentenceIndex].AddOverlay(overlay.FromAnchor(a), kind)
}

// checkNotEmpty rejects anchors that resolve to a collapsed range. Anchors
// that do not resolve at all are left for addOverlay to report.
func (h *Host) checkNotEmpty(a anchor.Anchor) error {
	root, r, err := anchor.Resolve(a, anchor.DocumentLookup(h.doc))
	if err != nil {
		return nil
	}
	start, err := dom.TextOffset(root, r.Start)
	if err != nil {
		return nil
	}
	end, err := dom.TextOffset(root, r.End)
	if err != nil {
		return nil
	}
	if start == end {
		return anchor.ErrEmptySelection
	}
	return nil
}

func (h *Host) bind(e *entry, g *overlay.Group) {
	e.group = g
	h.byGroup[g] = e
}

func (h *Host) drop(i int) {
	e := h.entries[i]
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	if e.group != nil {
		// OnDestroyed clears the back-reference.
		e.group.Destroy()
	}
}

func (h *Host) indexOf(id string) int {
	for i, e := range h.entries {
		if e.ann.ID == id {
			return i
		}
	}
	return -1
}

func (h *Host) checkSentence(i int) error {
	if i < 0 || i >= len(h.surfaces) {
		return fmt.Errorf("%w: %d", dom.ErrNoSuchRoot, i)
	}
	return nil
}

func (e *entry) snapshot() Entry {
	out := Entry{Annotation: e.ann}
	if e.group != nil && !e.group.Destroyed() {
		out.Group = e.group.ID()
		out.Positioned = len(e.group.Segments()) > 0
	}
	return out
}
