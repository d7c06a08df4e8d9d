package host

import (
	"context"
	"fmt"

	"github.com/dgallion1/textanchor/internal/anchor"
	"github.com/dgallion1/textanchor/internal/overlay"
	"github.com/dgallion1/textanchor/internal/store"
)

// EventType names a notification sent back to the client.
type EventType string

const (
	EventCreated   EventType = "created"
	EventHover     EventType = "hover"
	EventAction    EventType = "action"
	EventDestroyed EventType = "destroyed"
)

// Event is a notification produced while dispatching a pointer event.
type Event struct {
	Type       EventType      `json:"type"`
	Group      string         `json:"group"`
	Kind       string         `json:"kind"`
	Sentence   int            `json:"sentence"`
	Entering   *bool          `json:"entering,omitempty"`
	Label      string         `json:"label,omitempty"`
	Annotation string         `json:"annotation,omitempty"`
	Anchor     *anchor.Anchor `json:"anchor,omitempty"`
}

// DispatchResult is what a pointer event did.
type DispatchResult struct {
	Hit              bool    `json:"hit"`
	HitType          string  `json:"hit_type,omitempty"`
	DefaultPrevented bool    `json:"default_prevented"`
	Events           []Event `json:"events"`
}

// Dispatch routes a pointer event to a sentence's surface. Control actions
// are applied after the surface returns: a selection becomes a persisted
// tag, and a tag is removed along with its annotation.
func (h *Host) Dispatch(ctx context.Context, sentence int, ev *overlay.PointerEvent) (DispatchResult, error) {
	if err := h.checkSentence(sentence); err != nil {
		return DispatchResult{}, err
	}
	h.take()
	s := h.surfaces[sentence]

	before := s.SelectionGroup()
	hit := s.Dispatch(ev)
	if after := s.SelectionGroup(); after != nil && after != before {
		h.emit(EventCreated, after, nil)
	}
	if hit == nil && ev.Type == overlay.PointerUp {
		h.reconcileStart(sentence, ev)
	}

	var err error
	actions := h.actions
	h.actions = nil
	for _, g := range actions {
		if aerr := h.apply(ctx, g); aerr != nil && err == nil {
			err = aerr
		}
	}

	res := DispatchResult{
		Hit:              hit != nil,
		DefaultPrevented: ev.DefaultPrevented(),
		Events:           h.take(),
	}
	if hit != nil {
		res.HitType = hit.Type.String()
	}
	return res, err
}

func (h *Host) apply(ctx context.Context, g *overlay.Group) error {
	if g.Destroyed() {
		return nil
	}
	switch g.Kind() {
	case overlay.KindSelection:
		ann, err := h.store.Put(ctx, h.articleID, store.Annotation{Anchor: g.Anchor()})
		if err != nil {
			return fmt.Errorf("tag selection: %w", err)
		}
		g.ChangeType(overlay.KindTag)
		e := &entry{ann: ann}
		h.entries = append(h.entries, e)
		h.bind(e, g)
		h.log.Info("selection tagged", "annotation", ann.ID, "sentence", ann.Anchor.SentenceIndex)
		for i := range h.pending {
			if h.pending[i].Type == EventAction && h.pending[i].Group == g.ID() {
				h.pending[i].Annotation = ann.ID
			}
		}
	case overlay.KindTag:
		e := h.byGroup[g]
		if e == nil {
			g.Destroy()
			return nil
		}
		if err := h.remove(ctx, e.ann.ID); err != nil {
			return fmt.Errorf("remove tag: %w", err)
		}
		h.log.Info("tag removed", "annotation", e.ann.ID)
	}
	return nil
}

// reconcileStart hands a pointer-up released over one sentence to the
// surface of the sentence the selection started in.
func (h *Host) reconcileStart(released int, ev *overlay.PointerEvent) {
	ranges := h.selection.Ranges()
	if len(ranges) == 0 {
		return
	}
	_, start := h.doc.RootOf(ranges[0].Start.Node)
	if start < 0 || start == released || start >= len(h.surfaces) {
		return
	}
	s := h.surfaces[start]
	before := s.SelectionGroup()
	if !s.ReconcileSelection(ev) {
		return
	}
	if after := s.SelectionGroup(); after != nil && after != before {
		h.emit(EventCreated, after, nil)
	}
}

// OnAction queues the action; it is applied once the surface has finished
// dispatching.
func (h *Host) OnAction(g *overlay.Group, target overlay.ControlTarget) {
	h.actions = append(h.actions, g)
	h.emit(EventAction, g, func(e *Event) { e.Label = target.Label })
}

func (h *Host) OnHover(g *overlay.Group, entering bool) {
	h.emit(EventHover, g, func(e *Event) { e.Entering = &entering })
}

// OnDestroyed drops the entry's back-reference; the annotation itself is
// kept.
func (h *Host) OnDestroyed(g *overlay.Group) {
	if e, ok := h.byGroup[g]; ok {
		e.group = nil
		delete(h.byGroup, g)
	}
	h.emit(EventDestroyed, g, nil)
}

func (h *Host) emit(t EventType, g *overlay.Group, fill func(*Event)) {
	a := g.Anchor()
	ev := Event{
		Type:     t,
		Group:    g.ID(),
		Kind:     g.Kind().String(),
		Sentence: a.SentenceIndex,
		Anchor:   &a,
	}
	if e, ok := h.byGroup[g]; ok {
		ev.Annotation = e.ann.ID
	}
	if fill != nil {
		fill(&ev)
	}
	h.pending = append(h.pending, ev)
}

// take drains the pending notifications.
func (h *Host) take() []Event {
	out := h.pending
	h.pending = nil
	if out == nil {
		out = []Event{}
	}
	return out
}
