package dom

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Point is a DOM boundary point. Offset counts runes in a text node and
// children in any other node.
type Point struct {
	Node   *html.Node
	Offset int
}

// Range is a pair of boundary points.
type Range struct {
	Start Point
	End   Point
}

// Collapsed reports whether both points are the same node and offset.
func (r Range) Collapsed() bool {
	return r.Start.Node == r.End.Node && r.Start.Offset == r.End.Offset
}

// Length returns the boundary length of n: runes for text, children otherwise.
func Length(n *html.Node) int {
	if n == nil {
		return 0
	}
	if n.Type == html.TextNode {
		return utf8.RuneCountInString(n.Data)
	}
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

// TextContent concatenates all descendant text of n in document order.
func TextContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	if n != nil {
		extract(n)
	}
	return buf.String()
}

// TextOffset converts a boundary point into an absolute rune offset within
// the text content of root.
func TextOffset(root *html.Node, p Point) (int, error) {
	if !Contains(root, p.Node) {
		return 0, ErrNotInRoot
	}
	if p.Offset < 0 || p.Offset > Length(p.Node) {
		return 0, fmt.Errorf("%w: %d", ErrOffsetRange, p.Offset)
	}

	total := 0
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n == p.Node {
			if n.Type == html.TextNode {
				total += p.Offset
				return true
			}
			i := 0
			for c := n.FirstChild; c != nil && i < p.Offset; c = c.NextSibling {
				total += utf8.RuneCountInString(TextContent(c))
				i++
			}
			return true
		}
		if n.Type == html.TextNode {
			total += utf8.RuneCountInString(n.Data)
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return total, nil
}

// PointAt converts an absolute rune offset within root back into a boundary
// point inside a text node. Offsets that fall between two text nodes resolve
// to the end of the earlier one.
func PointAt(root *html.Node, abs int) (Point, error) {
	if abs < 0 {
		return Point{}, fmt.Errorf("%w: %d", ErrOffsetRange, abs)
	}
	acc := 0
	var found *Point
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.TextNode {
			l := utf8.RuneCountInString(n.Data)
			if abs <= acc+l {
				found = &Point{Node: n, Offset: abs - acc}
				return
			}
			acc += l
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if found != nil {
		return *found, nil
	}
	if abs == 0 {
		return Point{Node: root, Offset: 0}, nil
	}
	return Point{}, fmt.Errorf("%w: %d beyond text length %d", ErrOffsetRange, abs, acc)
}

// LastPoint returns the point just after the last character of root's last
// text-bearing child.
func LastPoint(root *html.Node) Point {
	var last *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			last = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if last == nil {
		return Point{Node: root, Offset: Length(root)}
	}
	return Point{Node: last, Offset: Length(last)}
}
