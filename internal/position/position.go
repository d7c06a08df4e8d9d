// Package position encodes a boundary point inside a content root as a
// portable token of the form "childIndex(/childIndex)*:offset".
//
// Path indices count every child node (text, element, comment) of each step
// from the root downward. The offset counts runes when the addressed node is
// text and children otherwise. A token only stays valid while the root's
// structure is unchanged; decoding it after structural edits fails with
// ErrInvalidToken rather than guessing.
package position

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/textanchor/internal/dom"
	"golang.org/x/net/html"
)

var (
	// ErrOutOfBounds indicates a node that is not under the given root, or an
	// offset beyond its node. This is a caller bug.
	ErrOutOfBounds = errors.New("position out of bounds")

	// ErrInvalidToken indicates a token that is malformed or no longer
	// resolves against the root.
	ErrInvalidToken = errors.New("invalid position token")
)

// Token is an encoded position.
type Token string

// Encode returns the token for (node, offset) relative to root.
func Encode(root, node *html.Node, offset int) (Token, error) {
	if root == nil || node == nil {
		return "", fmt.Errorf("%w: nil node", ErrOutOfBounds)
	}
	var path []int
	for n := node; n != root; n = n.Parent {
		if n.Parent == nil {
			return "", fmt.Errorf("%w: node is not a descendant of the root", ErrOutOfBounds)
		}
		path = append(path, childIndex(n))
	}
	if offset < 0 || offset > dom.Length(node) {
		return "", fmt.Errorf("%w: offset %d, node length %d", ErrOutOfBounds, offset, dom.Length(node))
	}

	var b strings.Builder
	for i := len(path) - 1; i >= 0; i-- {
		b.WriteString(strconv.Itoa(path[i]))
		if i > 0 {
			b.WriteByte('/')
		}
	}
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(offset))
	return Token(b.String()), nil
}

// Decode resolves a token against root.
func Decode(root *html.Node, tok Token) (*html.Node, int, error) {
	path, offset, err := Parse(tok)
	if err != nil {
		return nil, 0, err
	}
	n := root
	for depth, idx := range path {
		c := nthChild(n, idx)
		if c == nil {
			return nil, 0, fmt.Errorf("%w: %q: no child %d at depth %d", ErrInvalidToken, tok, idx, depth)
		}
		n = c
	}
	if offset > dom.Length(n) {
		return nil, 0, fmt.Errorf("%w: %q: offset %d beyond length %d", ErrInvalidToken, tok, offset, dom.Length(n))
	}
	return n, offset, nil
}

// EncodePoint is Encode for a dom.Point.
func EncodePoint(root *html.Node, p dom.Point) (Token, error) {
	return Encode(root, p.Node, p.Offset)
}

// DecodePoint is Decode returning a dom.Point.
func DecodePoint(root *html.Node, tok Token) (dom.Point, error) {
	n, off, err := Decode(root, tok)
	if err != nil {
		return dom.Point{}, err
	}
	return dom.Point{Node: n, Offset: off}, nil
}

// Parse splits a token into its child path and offset.
func Parse(tok Token) ([]int, int, error) {
	s := string(tok)
	colon := strings.LastIndexByte(s, ':')
	if colon < 0 {
		return nil, 0, fmt.Errorf("%w: %q: missing offset", ErrInvalidToken, tok)
	}
	offset, ok := parseIndex(s[colon+1:])
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q: bad offset", ErrInvalidToken, tok)
	}
	if colon == 0 {
		return nil, offset, nil
	}
	parts := strings.Split(s[:colon], "/")
	path := make([]int, len(parts))
	for i, p := range parts {
		idx, ok := parseIndex(p)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %q: bad child index %q", ErrInvalidToken, tok, p)
		}
		path[i] = idx
	}
	return path, offset, nil
}

// parseIndex accepts only plain decimal digits, so "+1" and " 1" are not
// tokens even though strconv would take them.
func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func childIndex(n *html.Node) int {
	i := 0
	for c := n.PrevSibling; c != nil; c = c.PrevSibling {
		i++
	}
	return i
}

func nthChild(n *html.Node, idx int) *html.Node {
	c := n.FirstChild
	for ; c != nil && idx > 0; idx-- {
		c = c.NextSibling
	}
	return c
}
