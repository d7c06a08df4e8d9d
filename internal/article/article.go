// Package article turns an uploaded Markdown or HTML article into a
// dom.Document whose sentences are wrapped in content-root elements.
package article

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/textanchor/internal/dom"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// SentenceClass marks content-root elements.
const SentenceClass = "sentence"

// Format is the source format of an article.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatText     Format = "txt"
)

// ParseFormat accepts the format names and file extensions we handle.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("unsupported article format: %s", s)
}

// FormatForFile picks the format from a file name.
func FormatForFile(filename string) (Format, error) {
	return ParseFormat(filepath.Ext(filename))
}

// Build parses src and wraps its sentences. HTML that already carries
// sentence elements is used as is.
func Build(r io.Reader, format Format, title string) (*dom.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatMarkdown:
		var buf bytes.Buffer
		if err := goldmark.Convert(src, &buf); err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
		src = buf.Bytes()
	case FormatText:
		if src, err = textToHTML(bytes.NewReader(src)); err != nil {
			return nil, fmt.Errorf("read text: %w", err)
		}
	}

	node, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	body := findBody(node)
	if body == nil {
		body = node
	}
	roots := dom.FindAll(body, func(n *html.Node) bool { return dom.HasClass(n, SentenceClass) })
	if len(roots) == 0 {
		roots = wrapSentences(body)
	}
	for i, r := range roots {
		dom.SetAttr(r, "data-index", strconv.Itoa(i))
	}

	doc := dom.NewDocument(node, roots)
	doc.Title = title
	if t := findTitle(node); t != "" && title == "" {
		doc.Title = t
	}
	return doc, nil
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return strings.TrimSpace(dom.TextContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
