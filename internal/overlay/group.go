package overlay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/textanchor/internal/anchor"
	"github.com/dgallion1/textanchor/internal/dom"
	"github.com/dgallion1/textanchor/internal/layout"
	"github.com/dgallion1/textanchor/internal/segment"
	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// Group is the rendered form of one anchor: a positioned element per
// segment and an optional floating control. Groups are created and owned by
// a Surface.
type Group struct {
	id      string
	surface *Surface
	anchor  anchor.Anchor
	kind    Kind

	segments []segment.Segment
	extent   layout.Rect

	elements    []*html.Node
	control     *html.Node
	controlRect layout.Rect

	destroyed bool
}

func newGroup(s *Surface, a anchor.Anchor, kind Kind) *Group {
	return &Group{
		id:      uuid.NewString(),
		surface: s,
		anchor:  a,
		kind:    kind,
	}
}

func (g *Group) ID() string            { return g.id }
func (g *Group) Anchor() anchor.Anchor { return g.anchor }
func (g *Group) Kind() Kind            { return g.kind }
func (g *Group) Extent() layout.Rect   { return g.extent }
func (g *Group) Destroyed() bool       { return g.destroyed }

// Segments returns a copy of the current segments.
func (g *Group) Segments() []segment.Segment {
	out := make([]segment.Segment, len(g.segments))
	copy(out, g.segments)
	return out
}

// Control returns the control box, if the group has a control.
func (g *Group) Control() (layout.Rect, bool) {
	return g.controlRect, g.control != nil
}

// Elements returns the rendered segment elements.
func (g *Group) Elements() []*html.Node {
	out := make([]*html.Node, len(g.elements))
	copy(out, g.elements)
	return out
}

// Refresh re-resolves the anchor against the live document and re-renders
// the segments. On failure the group is left with no visual representation.
func (g *Group) Refresh() error {
	if g.destroyed {
		return nil
	}
	root, r, err := anchor.Resolve(g.anchor, g.surface.lookup)
	if err != nil {
		g.clear()
		return err
	}
	if root != g.surface.root {
		g.clear()
		return fmt.Errorf("%w: anchor belongs to sentence %d", anchor.ErrOrphanedAnchor, g.anchor.SentenceIndex)
	}
	res, err := g.surface.builder.Build(root, r)
	if err != nil {
		g.clear()
		return fmt.Errorf("build segments: %w", err)
	}
	g.clear()
	g.segments = res.Segments
	g.extent = res.Extent
	g.render()
	return nil
}

// ChangeType swaps the group's kind and control template. Geometry is left
// as it is.
func (g *Group) ChangeType(kind Kind) {
	if g.destroyed || kind == g.kind {
		return
	}
	g.kind = kind
	for _, el := range g.elements {
		dom.SetAttr(el, "class", g.segmentClass())
	}
	if g.control != nil {
		dom.SetAttr(g.control, "class", g.controlClass())
		for c := g.control.FirstChild; c != nil; c = g.control.FirstChild {
			g.control.RemoveChild(c)
		}
		g.control.AppendChild(dom.NewText(kind.ControlLabel()))
	} else if g.surface.opts.Controls && len(g.segments) > 0 {
		g.renderControl()
	}
}

// HitTest tests ev against the group's segments, then its control. Segments
// are tested in creation order and always beat the control. A hit on a
// segment suppresses pointer-move only; a hit on the control suppresses
// every event type so the native text selection is left alone.
func (g *Group) HitTest(ev *PointerEvent) *Hit {
	if g.destroyed {
		return nil
	}
	tol := g.surface.opts.HoverTolerance
	for i, s := range g.segments {
		if s.Contains(ev.X, ev.Y, tol) {
			if ev.Type == PointerMove {
				ev.suppress()
			}
			return &Hit{Group: g, Type: HitElement, Index: i, Segment: s}
		}
	}
	if g.control != nil && g.controlRect.Contains(ev.X, ev.Y, 0) {
		ev.suppress()
		return &Hit{Group: g, Type: HitControl, Index: -1, Segment: g.controlRect}
	}
	return nil
}

// Destroy removes every rendered element. It is safe to call more than once,
// including from the OnDestroyed callback it triggers.
func (g *Group) Destroy() {
	if g.destroyed {
		return
	}
	g.destroyed = true
	g.clear()
	g.surface.detach(g)
}

func (g *Group) clear() {
	for _, el := range g.elements {
		dom.Detach(el)
	}
	dom.Detach(g.control)
	g.elements = nil
	g.control = nil
	g.controlRect = layout.Rect{}
	g.segments = nil
	g.extent = layout.Rect{}
}

func (g *Group) render() {
	pad := g.surface.opts.Padding
	for i, s := range g.segments {
		el := dom.NewElement("span",
			"class", g.segmentClass(),
			"data-group", g.id,
			"data-segment", strconv.Itoa(i),
			"style", boxStyle(s.Grow(pad)),
		)
		g.surface.layer.AppendChild(el)
		g.elements = append(g.elements, el)
	}
	if g.surface.opts.Controls && len(g.segments) > 0 {
		g.renderControl()
	}
}

// renderControl places the control just above the first segment, or just
// below it when there is no room above.
func (g *Group) renderControl() {
	opts := g.surface.opts
	first := g.segments[0]
	r := layout.Rect{
		Top:    first.Top - opts.ControlHeight,
		Left:   first.Left,
		Width:  opts.ControlWidth,
		Height: opts.ControlHeight,
	}
	if r.Top < 0 {
		r.Top = first.Bottom()
	}
	el := dom.NewElement("span",
		"class", g.controlClass(),
		"data-group", g.id,
		"style", boxStyle(r),
	)
	el.AppendChild(dom.NewText(g.kind.ControlLabel()))
	g.surface.layer.AppendChild(el)
	g.control = el
	g.controlRect = r
}

func (g *Group) target() ControlTarget {
	return ControlTarget{
		Label: g.kind.ControlLabel(),
		Rect:  g.controlRect,
		Node:  g.control,
	}
}

func (g *Group) segmentClass() string {
	p := g.surface.opts.ClassPrefix
	return p + "-segment " + p + "-" + g.kind.String()
}

func (g *Group) controlClass() string {
	p := g.surface.opts.ClassPrefix
	return p + "-control " + p + "-control-" + g.kind.String()
}

func boxStyle(r layout.Rect) string {
	var b strings.Builder
	b.WriteString("position:absolute;")
	b.WriteString("top:" + px(r.Top) + ";")
	b.WriteString("left:" + px(r.Left) + ";")
	b.WriteString("width:" + px(r.Width) + ";")
	b.WriteString("height:" + px(r.Height))
	return b.String()
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "px"
}
