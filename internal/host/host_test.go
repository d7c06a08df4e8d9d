package host

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/textanchor/internal/anchor"
	"github.com/dgallion1/textanchor/internal/article"
	"github.com/dgallion1/textanchor/internal/dom"
	"github.com/dgallion1/textanchor/internal/layout"
	"github.com/dgallion1/textanchor/internal/overlay"
	"github.com/dgallion1/textanchor/internal/store"
)

const testArticle = `<p><span class="sentence">Hello brave new world.</span> <span class="sentence">Second <em>sentence</em> here.</span></p>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestHost(t *testing.T, st *store.Store) *Host {
	t.Helper()
	doc, err := article.Build(strings.NewReader(testArticle), article.FormatHTML, "")
	if err != nil {
		t.Fatalf("article.Build: %v", err)
	}
	h, err := New(doc, layout.DefaultOptions(), overlay.DefaultOptions(), st, "art", testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := h.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return h
}

func hasEvent(events []Event, typ EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestHost_LoadKeepsOrphanedAnnotations(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	now := time.Now()
	for _, a := range []store.Annotation{
		{ID: "ok", Anchor: anchor.Anchor{SentenceIndex: 0, Start: "0:6", End: "0:11"}, CreatedAt: now},
		{ID: "drifted", Anchor: anchor.Anchor{SentenceIndex: 0, Start: "0:6", End: "0:99"}, CreatedAt: now.Add(time.Second)},
		{ID: "gone", Anchor: anchor.Anchor{SentenceIndex: 5, Start: "0:0", End: "0:1"}, CreatedAt: now},
	} {
		if _, err := st.Put(ctx, "art", a); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	h := newTestHost(t, st)
	got := map[string]bool{}
	for _, e := range h.Annotations() {
		got[e.ID] = e.Positioned
	}
	want := map[string]bool{"ok": true, "drifted": false, "gone": false}
	if len(got) != len(want) {
		t.Fatalf("expected %d annotations, got %d", len(want), len(got))
	}
	for id, positioned := range want {
		if got[id] != positioned {
			t.Errorf("%s: expected positioned=%v, got %v", id, positioned, got[id])
		}
	}

	// Orphaned annotations are still in the store.
	stored, err := st.List(ctx, "art")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("expected 3 stored annotations, got %d", len(stored))
	}
}

func TestHost_AnnotateAndRemove(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	h := newTestHost(t, st)

	e, err := h.Annotate(ctx, anchor.Anchor{SentenceIndex: 1, Start: "0:0", End: "0:6"}, []byte(`{"note":"x"}`))
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !e.Positioned || e.Group == "" || e.ID == "" {
		t.Errorf("expected positioned entry with group, got %+v", e)
	}

	var buf bytes.Buffer
	if err := h.Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "overlay-segment overlay-tag") {
		t.Errorf("expected tag segment in rendered html: %s", buf.String())
	}

	if err := h.Remove(ctx, e.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(h.Annotations()) != 0 {
		t.Errorf("expected no annotations after remove")
	}
	stored, _ := st.List(ctx, "art")
	if len(stored) != 0 {
		t.Errorf("expected empty store, got %d", len(stored))
	}
	buf.Reset()
	h.Render(&buf)
	if strings.Contains(buf.String(), "overlay-segment") {
		t.Error("expected no segments after remove")
	}

	if err := h.Remove(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHost_AnnotateOrphanedRejected(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	h := newTestHost(t, st)

	_, err := h.Annotate(ctx, anchor.Anchor{SentenceIndex: 0, Start: "0:0", End: "0:99"}, nil)
	if !errors.Is(err, anchor.ErrOrphanedAnchor) {
		t.Errorf("expected ErrOrphanedAnchor, got %v", err)
	}
	_, err = h.Annotate(ctx, anchor.Anchor{SentenceIndex: 9, Start: "0:0", End: "0:1"}, nil)
	if !errors.Is(err, anchor.ErrOrphanedAnchor) {
		t.Errorf("expected ErrOrphanedAnchor for unknown sentence, got %v", err)
	}
	_, err = h.Annotate(ctx, anchor.Anchor{SentenceIndex: 0, Start: "bad", End: "0:1"}, nil)
	if !errors.Is(err, anchor.ErrInvalidAnchor) {
		t.Errorf("expected ErrInvalidAnchor, got %v", err)
	}
	_, err = h.Annotate(ctx, anchor.Anchor{SentenceIndex: 0, Start: "0:3", End: "0:3"}, nil)
	if !errors.Is(err, anchor.ErrEmptySelection) {
		t.Errorf("expected ErrEmptySelection, got %v", err)
	}
	stored, _ := st.List(ctx, "art")
	if len(stored) != 0 {
		t.Errorf("expected nothing stored, got %d", len(stored))
	}
}

func TestHost_SelectionTaggedThenRemovedByControl(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	h := newTestHost(t, st)

	if err := h.Select(0, 6, 0, 11); err != nil {
		t.Fatalf("Select: %v", err)
	}
	res, err := h.Dispatch(ctx, 0, &overlay.PointerEvent{Type: overlay.PointerUp, X: 1000, Y: 1000})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !hasEvent(res.Events, EventCreated) {
		t.Fatalf("expected created event, got %+v", res.Events)
	}
	g := h.surfaces[0].SelectionGroup()
	if g == nil {
		t.Fatal("expected selection group")
	}
	if g.Anchor().Start != "0:6" || g.Anchor().End != "0:11" {
		t.Errorf("unexpected selection anchor %+v", g.Anchor())
	}

	ctrl, ok := g.Control()
	if !ok {
		t.Fatal("expected control")
	}
	click := func() DispatchResult {
		t.Helper()
		res, err := h.Dispatch(ctx, 0, &overlay.PointerEvent{
			Type: overlay.Click,
			X:    ctrl.Left + ctrl.Width/2,
			Y:    ctrl.Top + ctrl.Height/2,
		})
		if err != nil {
			t.Fatalf("Dispatch click: %v", err)
		}
		return res
	}

	res = click()
	if res.HitType != "control" || !res.DefaultPrevented {
		t.Errorf("expected suppressed control hit, got %+v", res)
	}
	if !hasEvent(res.Events, EventAction) {
		t.Fatalf("expected action event, got %+v", res.Events)
	}
	if g.Kind() != overlay.KindTag {
		t.Fatalf("expected group to become a tag, got %s", g.Kind())
	}
	stored, _ := st.List(ctx, "art")
	if len(stored) != 1 || stored[0].Anchor != g.Anchor() {
		t.Fatalf("expected tagged anchor to be stored, got %+v", stored)
	}
	if anns := h.Annotations(); len(anns) != 1 || anns[0].Group != g.ID() {
		t.Fatalf("expected one annotation bound to group, got %+v", anns)
	}

	res = click()
	if !hasEvent(res.Events, EventDestroyed) {
		t.Errorf("expected destroyed event, got %+v", res.Events)
	}
	if !g.Destroyed() {
		t.Error("expected group destroyed")
	}
	stored, _ = st.List(ctx, "art")
	if len(stored) != 0 {
		t.Errorf("expected store emptied, got %d", len(stored))
	}
	if len(h.Annotations()) != 0 {
		t.Error("expected no annotations")
	}
}

func TestHost_CrossRootSelectionTruncated(t *testing.T) {
	h := newTestHost(t, openStore(t))

	if err := h.Select(0, 6, 1, 6); err != nil {
		t.Fatalf("Select: %v", err)
	}
	res, err := h.Dispatch(context.Background(), 0, &overlay.PointerEvent{Type: overlay.PointerUp, X: 1000, Y: 1000})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !hasEvent(res.Events, EventCreated) {
		t.Fatalf("expected created event, got %+v", res.Events)
	}
	g := h.surfaces[0].SelectionGroup()
	want := anchor.Anchor{SentenceIndex: 0, Start: "0:6", End: "0:22"}
	if g.Anchor() != want {
		t.Errorf("expected %+v, got %+v", want, g.Anchor())
	}
	if h.surfaces[1].SelectionGroup() != nil {
		t.Error("expected no selection overlay in the second sentence")
	}
}

func TestHost_CrossRootSelectionReleasedInEndSentence(t *testing.T) {
	h := newTestHost(t, openStore(t))

	if err := h.Select(0, 6, 1, 6); err != nil {
		t.Fatalf("Select: %v", err)
	}
	res, err := h.Dispatch(context.Background(), 1, &overlay.PointerEvent{Type: overlay.PointerUp, X: 1000, Y: 1000})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !hasEvent(res.Events, EventCreated) {
		t.Fatalf("expected created event, got %+v", res.Events)
	}
	if !res.DefaultPrevented {
		t.Error("expected pointer-up to be suppressed once the selection is rendered")
	}
	g := h.surfaces[0].SelectionGroup()
	if g == nil {
		t.Fatal("expected a selection overlay in the starting sentence")
	}
	want := anchor.Anchor{SentenceIndex: 0, Start: "0:6", End: "0:22"}
	if g.Anchor() != want {
		t.Errorf("expected %+v, got %+v", want, g.Anchor())
	}
	if h.surfaces[1].SelectionGroup() != nil {
		t.Error("expected no selection overlay in the end sentence")
	}
	for _, e := range res.Events {
		if e.Type == EventCreated && e.Sentence != 0 {
			t.Errorf("expected created event for sentence 0, got %d", e.Sentence)
		}
	}
}

func TestHost_HoverEvents(t *testing.T) {
	h := newTestHost(t, openStore(t))
	ctx := context.Background()
	if _, err := h.Annotate(ctx, anchor.Anchor{SentenceIndex: 0, Start: "0:0", End: "0:5"}, nil); err != nil {
		t.Fatalf("Annotate: %v", err)
	}

	res, err := h.Dispatch(ctx, 0, &overlay.PointerEvent{Type: overlay.PointerMove, X: 5, Y: 10})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Type != EventHover || !*res.Events[0].Entering {
		t.Fatalf("expected hover enter, got %+v", res.Events)
	}
	if res.Events[0].Annotation == "" {
		t.Error("expected hover event to carry the annotation ID")
	}
	if !res.DefaultPrevented {
		t.Error("expected move over a segment to be suppressed")
	}

	res, _ = h.Dispatch(ctx, 0, &overlay.PointerEvent{Type: overlay.PointerMove, X: 500, Y: 10})
	if len(res.Events) != 1 || res.Events[0].Type != EventHover || *res.Events[0].Entering {
		t.Fatalf("expected hover leave, got %+v", res.Events)
	}
}

func TestHost_SetWidthRefreshes(t *testing.T) {
	h := newTestHost(t, openStore(t))
	e, err := h.Annotate(context.Background(), anchor.Anchor{SentenceIndex: 0, Start: "0:0", End: "0:22"}, nil)
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	g := h.entries[0].group
	if n := len(g.Segments()); n != 1 {
		t.Fatalf("expected 1 segment at full width, got %d", n)
	}

	if err := h.SetWidth(0, 60); err != nil {
		t.Fatalf("SetWidth: %v", err)
	}
	if n := len(g.Segments()); n < 2 {
		t.Errorf("expected the range to wrap at 60px, got %d segments", n)
	}
	if anns := h.Annotations(); !anns[0].Positioned || anns[0].ID != e.ID {
		t.Errorf("expected annotation still positioned, got %+v", anns[0])
	}

	if err := h.SetWidth(7, 100); !errors.Is(err, dom.ErrNoSuchRoot) {
		t.Errorf("expected ErrNoSuchRoot, got %v", err)
	}
	if err := h.SetWidth(0, 0); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestHost_Segments(t *testing.T) {
	h := newTestHost(t, openStore(t))

	res, err := h.Segments(0, "0:6", "0:11")
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(res.Segments) != 1 || res.Extent.Width <= 0 {
		t.Errorf("unexpected result %+v", res)
	}

	if _, err := h.Segments(0, "nope", "0:1"); !errors.Is(err, anchor.ErrInvalidAnchor) {
		t.Errorf("expected ErrInvalidAnchor, got %v", err)
	}
	if _, err := h.Segments(0, "0:0", "0:99"); !errors.Is(err, anchor.ErrOrphanedAnchor) {
		t.Errorf("expected ErrOrphanedAnchor, got %v", err)
	}
}
