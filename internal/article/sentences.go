package article

import (
	"strings"
	"unicode"

	"github.com/dgallion1/textanchor/internal/dom"
	"golang.org/x/net/html"
)

var blockTags = map[string]bool{
	"p": true, "li": true, "td": true, "th": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"dd": true, "dt": true, "figcaption": true,
}

// wrapSentences wraps the sentences of every text block under n and returns
// the new sentence elements in document order.
func wrapSentences(n *html.Node) []*html.Node {
	var roots []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			// Skip non-content elements.
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "pre":
				return
			}
			if blockTags[n.Data] && !hasBlockDescendant(n) {
				roots = append(roots, splitBlock(n)...)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return roots
}

func hasBlockDescendant(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (blockTags[c.Data] || hasBlockDescendant(c)) {
			return true
		}
	}
	return false
}

// splitBlock regroups the children of a block into sentence elements.
// Sentence boundaries are only found in text that is a direct child of the
// block; inline elements stay whole inside the sentence they start in.
// Whitespace between sentences stays outside the sentence elements.
func splitBlock(block *html.Node) []*html.Node {
	var children []*html.Node
	for c := block.FirstChild; c != nil; c = block.FirstChild {
		block.RemoveChild(c)
		children = append(children, c)
	}

	var roots []*html.Node
	cur := newSentence()
	closeSentence := func() {
		if cur.FirstChild == nil {
			return
		}
		if strings.TrimSpace(dom.TextContent(cur)) == "" {
			for c := cur.FirstChild; c != nil; c = cur.FirstChild {
				cur.RemoveChild(c)
				block.AppendChild(c)
			}
		} else {
			block.AppendChild(cur)
			roots = append(roots, cur)
		}
		cur = newSentence()
	}

	for _, c := range children {
		if c.Type != html.TextNode {
			cur.AppendChild(c)
			continue
		}
		for _, part := range splitSentences(c.Data) {
			switch {
			case part.gap && cur.FirstChild == nil:
				block.AppendChild(dom.NewText(part.text))
			default:
				cur.AppendChild(dom.NewText(part.text))
			}
			if part.end {
				closeSentence()
			}
		}
	}
	closeSentence()
	return roots
}

func newSentence() *html.Node {
	return dom.NewElement("span", "class", SentenceClass)
}

type textPart struct {
	text string
	end  bool // Closes a sentence.
	gap  bool // Whitespace between sentences.
}

// splitSentences does basic sentence splitting: a sentence ends at . ! or ?
// followed by whitespace. Leading whitespace comes back as a gap part.
func splitSentences(text string) []textPart {
	var parts []textPart
	runes := []rune(text)
	start := 0

	gap := func(i int) int {
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j > i {
			parts = append(parts, textPart{text: string(runes[i:j]), gap: true})
		}
		return j
	}

	start = gap(0)
	for i := start; i < len(runes); i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			parts = append(parts, textPart{text: string(runes[start : i+1]), end: true})
			start = gap(i + 1)
			i = start - 1
		}
	}
	if start < len(runes) {
		parts = append(parts, textPart{text: string(runes[start:])})
	}
	return parts
}
