package position

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/textanchor/internal/dom"
	"golang.org/x/net/html"
)

func parseRoots(t *testing.T, src string) []*html.Node {
	t.Helper()
	node, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return dom.FindAll(node, func(n *html.Node) bool { return dom.HasClass(n, "sentence") })
}

const nested = `<p><span class="sentence">One <b>two <i>three</i></b> four.</span><span class="sentence">Other.</span></p>`

func TestEncode_NestedText(t *testing.T) {
	roots := parseRoots(t, nested)
	root := roots[0]
	i := root.FirstChild.NextSibling.FirstChild.NextSibling // <i>
	tok, err := Encode(root, i.FirstChild, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "1/1/0:3" {
		t.Errorf("expected %q, got %q", "1/1/0:3", tok)
	}
}

func TestEncodeDecode_RoundTripEveryTextPosition(t *testing.T) {
	roots := parseRoots(t, nested)
	root := roots[0]

	var texts []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			texts = append(texts, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	for _, n := range texts {
		for off := 0; off <= dom.Length(n); off++ {
			tok, err := Encode(root, n, off)
			if err != nil {
				t.Fatalf("encode %q:%d: %v", n.Data, off, err)
			}
			got, gotOff, err := Decode(root, tok)
			if err != nil {
				t.Fatalf("decode %q: %v", tok, err)
			}
			if got != n || gotOff != off {
				t.Errorf("%q decoded to %q:%d, want %q:%d", tok, got.Data, gotOff, n.Data, off)
			}
			again, _ := Encode(root, got, gotOff)
			if again != tok {
				t.Errorf("re-encoding %q gave %q", tok, again)
			}
		}
	}
}

func TestEncode_RootItself(t *testing.T) {
	roots := parseRoots(t, nested)
	tok, err := Encode(roots[0], roots[0], 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != ":2" {
		t.Errorf("expected %q, got %q", ":2", tok)
	}
	n, off, err := Decode(roots[0], tok)
	if err != nil || n != roots[0] || off != 2 {
		t.Errorf("unexpected decode result %v %d %v", n, off, err)
	}
}

func TestEncode_OutOfBounds(t *testing.T) {
	roots := parseRoots(t, nested)
	if _, err := Encode(roots[0], roots[1].FirstChild, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds for foreign node, got %v", err)
	}
	if _, err := Encode(roots[0], roots[0].FirstChild, 100); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds for long offset, got %v", err)
	}
	if _, err := Encode(roots[0], nil, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds for nil node, got %v", err)
	}
}

func TestDecode_InvalidTokens(t *testing.T) {
	roots := parseRoots(t, nested)
	for _, tok := range []Token{
		"",
		"0",
		"0:x",
		"a/1:0",
		"0:-1",
		"9:0",
		"1/5:0",
		"0:99",
		"+1:+2",
		"0:+1",
		"+0:1",
		" 0:1",
		"0: 1",
		"0/:1",
		"0:",
		"0:99999999999999999999999",
	} {
		if _, _, err := Decode(roots[0], tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestDecode_StructuralDrift(t *testing.T) {
	roots := parseRoots(t, nested)
	root := roots[0]
	tok, err := Encode(root, root.LastChild, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root.RemoveChild(root.LastChild)
	if _, _, err := Decode(root, tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken after removing child, got %v", err)
	}
}

func TestParse(t *testing.T) {
	path, off, err := Parse("2/0/3:17")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(path) != 3 || path[0] != 2 || path[1] != 0 || path[2] != 3 || off != 17 {
		t.Errorf("unexpected parse result %v %d", path, off)
	}

	for _, tok := range []Token{"+1:2", "1:+2", "-0:1", "1/-0:2", "1_0:2"} {
		if _, _, err := Parse(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}
