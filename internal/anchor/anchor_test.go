package anchor

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/textanchor/internal/dom"
	"github.com/dgallion1/textanchor/internal/position"
	"golang.org/x/net/html"
)

const article = `<p><span class="sentence">The <em>quick</em> brown fox.</span> <span class="sentence">Jumps over.</span></p>`

func parseDoc(t *testing.T) *dom.Document {
	t.Helper()
	node, err := html.Parse(strings.NewReader(article))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	roots := dom.FindAll(node, func(n *html.Node) bool { return dom.HasClass(n, "sentence") })
	return dom.NewDocument(node, roots)
}

func TestFromSelection_RoundTripOffsets(t *testing.T) {
	doc := parseDoc(t)
	root, _ := doc.Root(0)
	total := len([]rune(dom.TextContent(root)))

	for from := 0; from < total; from++ {
		for to := from + 1; to <= total; to++ {
			start, _ := dom.PointAt(root, from)
			end, _ := dom.PointAt(root, to)
			a, err := FromRange(doc, root, dom.Range{Start: start, End: end})
			if err != nil {
				t.Fatalf("[%d,%d) capture: %v", from, to, err)
			}
			r, err := ToLiveRange(a, DocumentLookup(doc))
			if err != nil {
				t.Fatalf("[%d,%d) resolve: %v", from, to, err)
			}
			gotFrom, _ := dom.TextOffset(root, r.Start)
			gotTo, _ := dom.TextOffset(root, r.End)
			if gotFrom != from || gotTo != to {
				t.Errorf("[%d,%d) resolved to [%d,%d)", from, to, gotFrom, gotTo)
			}
		}
	}
}

func TestFromSelection_FragmentedRanges(t *testing.T) {
	doc := parseDoc(t)
	root, _ := doc.Root(0)
	the := root.FirstChild
	em := the.NextSibling
	tail := em.NextSibling

	sel := dom.StaticSelection{
		{Start: dom.Point{Node: the, Offset: 1}, End: dom.Point{Node: the, Offset: 4}},
		{Start: dom.Point{Node: em.FirstChild, Offset: 0}, End: dom.Point{Node: em.FirstChild, Offset: 5}},
		{Start: dom.Point{Node: tail, Offset: 0}, End: dom.Point{Node: tail, Offset: 3}},
	}
	a, err := FromSelection(doc, root, sel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Anchor{SentenceIndex: 0, Start: "0:1", End: "2:3"}
	if a != want {
		t.Errorf("expected %+v, got %+v", want, a)
	}
}

func TestFromSelection_SentenceIndex(t *testing.T) {
	doc := parseDoc(t)
	root, _ := doc.Root(1)
	a, err := FromRange(doc, root, dom.Range{
		Start: dom.Point{Node: root.FirstChild, Offset: 0},
		End:   dom.Point{Node: root.FirstChild, Offset: 5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.SentenceIndex != 1 {
		t.Errorf("expected sentence 1, got %d", a.SentenceIndex)
	}
}

func TestFromSelection_Empty(t *testing.T) {
	doc := parseDoc(t)
	root, _ := doc.Root(0)
	p := dom.Point{Node: root.FirstChild, Offset: 2}

	if _, err := FromSelection(doc, root, dom.StaticSelection{{Start: p, End: p}}); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("expected ErrEmptySelection for collapsed range, got %v", err)
	}
	if _, err := FromSelection(doc, root, dom.StaticSelection{}); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("expected ErrEmptySelection for no ranges, got %v", err)
	}

	// End of one text node and start of the next are the same character position.
	em := root.FirstChild.NextSibling
	r := dom.Range{
		Start: dom.Point{Node: root.FirstChild, Offset: 4},
		End:   dom.Point{Node: em.FirstChild, Offset: 0},
	}
	if _, err := FromRange(doc, root, r); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("expected ErrEmptySelection for equivalent points, got %v", err)
	}
}

func TestFromSelection_OutOfBounds(t *testing.T) {
	doc := parseDoc(t)
	r0, _ := doc.Root(0)
	r1, _ := doc.Root(1)
	r := dom.Range{
		Start: dom.Point{Node: r1.FirstChild, Offset: 0},
		End:   dom.Point{Node: r1.FirstChild, Offset: 3},
	}
	if _, err := FromRange(doc, r0, r); !errors.Is(err, position.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestToLiveRange_Orphaned(t *testing.T) {
	doc := parseDoc(t)
	lookup := DocumentLookup(doc)

	cases := []Anchor{
		{SentenceIndex: 0, Start: "7:0", End: "2:3"},
		{SentenceIndex: 0, Start: "0:0", End: "2:300"},
		{SentenceIndex: 5, Start: "0:0", End: "0:1"},
	}
	for _, a := range cases {
		if _, err := ToLiveRange(a, lookup); !errors.Is(err, ErrOrphanedAnchor) {
			t.Errorf("%+v: expected ErrOrphanedAnchor, got %v", a, err)
		}
	}
}

func TestToLiveRange_EndBeforeStart(t *testing.T) {
	doc := parseDoc(t)
	a := Anchor{SentenceIndex: 0, Start: "2:3", End: "0:1"}
	if err := a.Validate(); err != nil {
		t.Fatalf("tokens on different nodes should pass Validate, got %v", err)
	}
	_, err := ToLiveRange(a, DocumentLookup(doc))
	if !errors.Is(err, ErrInvalidAnchor) {
		t.Errorf("expected ErrInvalidAnchor, got %v", err)
	}
	if errors.Is(err, ErrOrphanedAnchor) {
		t.Errorf("reversed anchor must not be reported as orphaned: %v", err)
	}

	same := Anchor{SentenceIndex: 0, Start: "0:3", End: "0:1"}
	if err := same.Validate(); !errors.Is(err, ErrInvalidAnchor) {
		t.Errorf("expected Validate to reject reversed offsets on one node, got %v", err)
	}
}

func TestFromOffsets(t *testing.T) {
	doc := parseDoc(t)
	a, err := FromOffsets(doc, 0, 4, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root, r, err := Resolve(a, DocumentLookup(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	from, _ := dom.TextOffset(root, r.Start)
	to, _ := dom.TextOffset(root, r.End)
	text := []rune(dom.TextContent(root))
	if got := string(text[from:to]); got != "quick" {
		t.Errorf("expected %q, got %q", "quick", got)
	}
}

func TestParse_Valid(t *testing.T) {
	a, err := Parse([]byte(`{"sentenceIndex":3,"start":"0:1","end":"1/0:4"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Anchor{SentenceIndex: 3, Start: "0:1", End: "1/0:4"}
	if a != want {
		t.Errorf("expected %+v, got %+v", want, a)
	}

	out, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"sentenceIndex":3,"start":"0:1","end":"1/0:4"}` {
		t.Errorf("unexpected JSON %s", out)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{
		`{"sentenceIndex":0,"end":"0:1"}`,
		`{"sentenceIndex":0,"start":"0:0"}`,
		`{"sentenceIndex":0,"start":5,"end":"0:1"}`,
		`{"sentenceIndex":0,"start":"0:0","end":null}`,
		`{"start":"0:0","end":"0:1"}`,
		`{"sentenceIndex":-1,"start":"0:0","end":"0:1"}`,
		`{"sentenceIndex":0,"start":"nope","end":"0:1"}`,
		`{"sentenceIndex":0,"start":"1/0:4","end":"1/0:2"}`,
		`{"sentenceIndex":0,"start":"+1:2","end":"1:3"}`,
		`[]`,
	} {
		if _, err := Parse([]byte(in)); !errors.Is(err, ErrInvalidAnchor) {
			t.Errorf("%s: expected ErrInvalidAnchor, got %v", in, err)
		}
	}
}
