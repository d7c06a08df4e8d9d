package overlay

import (
	"fmt"

	"github.com/dgallion1/textanchor/internal/layout"
	"golang.org/x/net/html"
)

// EventType is the kind of pointer event.
type EventType int

const (
	PointerMove EventType = iota
	PointerDown
	PointerUp
	Click
)

func (t EventType) String() string {
	switch t {
	case PointerMove:
		return "move"
	case PointerDown:
		return "down"
	case PointerUp:
		return "up"
	case Click:
		return "click"
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// ParseEventType parses the String form of an EventType.
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "move":
		return PointerMove, nil
	case "down":
		return PointerDown, nil
	case "up":
		return PointerUp, nil
	case "click":
		return Click, nil
	}
	return 0, fmt.Errorf("unknown pointer event: %q", s)
}

// PointerEvent is a pointer event over a content root. X and Y are relative
// to the root's box.
type PointerEvent struct {
	Type EventType
	X, Y float64

	defaultPrevented   bool
	propagationStopped bool
}

// PreventDefault keeps the host from applying native behavior, such as
// extending the text selection.
func (e *PointerEvent) PreventDefault() { e.defaultPrevented = true }

// StopPropagation keeps the event from reaching other handlers.
func (e *PointerEvent) StopPropagation() { e.propagationStopped = true }

func (e *PointerEvent) DefaultPrevented() bool   { return e.defaultPrevented }
func (e *PointerEvent) PropagationStopped() bool { return e.propagationStopped }

func (e *PointerEvent) suppress() {
	e.PreventDefault()
	e.StopPropagation()
}

// HitType says which part of a group was hit.
type HitType int

const (
	HitElement HitType = iota
	HitControl
)

func (t HitType) String() string {
	if t == HitControl {
		return "control"
	}
	return "element"
}

// Hit is the result of a successful hit-test.
type Hit struct {
	Group   *Group
	Type    HitType
	Index   int         // Segment index, -1 for the control.
	Segment layout.Rect // The segment or control box that matched.
}

// ControlTarget describes the control a user activated.
type ControlTarget struct {
	Label string
	Rect  layout.Rect
	Node  *html.Node
}
