// Package dom is the document model the anchoring code works against: a
// parsed golang.org/x/net/html tree whose sentence elements are the content
// roots that text offsets are addressed in.
package dom

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"
)

var (
	// ErrNoSuchRoot indicates a sentence index that the document does not have.
	ErrNoSuchRoot = errors.New("no content root at index")

	// ErrNotInRoot indicates a node that is not a descendant of the given root.
	ErrNotInRoot = errors.New("node is not inside the content root")

	// ErrOffsetRange indicates an offset beyond the length of its node.
	ErrOffsetRange = errors.New("offset out of range")
)

// Document is the root of a parsed article.
type Document struct {
	Title string     // Article title (from <title> or the upload name)
	Node  *html.Node // Parsed tree, including any overlay layers

	roots []*html.Node
	index map[*html.Node]int
}

// NewDocument wraps a parsed tree and its content roots, in document order.
func NewDocument(node *html.Node, roots []*html.Node) *Document {
	d := &Document{
		Node:  node,
		roots: roots,
		index: make(map[*html.Node]int, len(roots)),
	}
	for i, r := range roots {
		d.index[r] = i
	}
	return d
}

// Len returns the number of content roots.
func (d *Document) Len() int {
	return len(d.roots)
}

// Roots returns the content roots in document order.
func (d *Document) Roots() []*html.Node {
	out := make([]*html.Node, len(d.roots))
	copy(out, d.roots)
	return out
}

// Root returns the content root for a sentence index.
func (d *Document) Root(i int) (*html.Node, error) {
	if i < 0 || i >= len(d.roots) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchRoot, i)
	}
	return d.roots[i], nil
}

// IndexOf returns the sentence index of root, or -1.
func (d *Document) IndexOf(root *html.Node) int {
	if i, ok := d.index[root]; ok {
		return i
	}
	return -1
}

// RootOf returns the nearest content root containing n (n itself included)
// and its index. It returns nil, -1 when n is outside every root.
func (d *Document) RootOf(n *html.Node) (*html.Node, int) {
	for ; n != nil; n = n.Parent {
		if i, ok := d.index[n]; ok {
			return n, i
		}
	}
	return nil, -1
}
