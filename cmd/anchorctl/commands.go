package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/textanchor/internal/anchor"
	"github.com/dgallion1/textanchor/internal/article"
	"github.com/dgallion1/textanchor/internal/dom"
	"github.com/dgallion1/textanchor/internal/host"
	"github.com/dgallion1/textanchor/internal/layout"
	"github.com/dgallion1/textanchor/internal/overlay"
	"github.com/dgallion1/textanchor/internal/position"
	"github.com/dgallion1/textanchor/internal/segment"
	"github.com/dgallion1/textanchor/internal/store"
)

// SegmentsCmd prints the segments of a token range.
type SegmentsCmd struct {
	Article  string `required:"" help:"Article file (.md or .html)" type:"existingfile"`
	Sentence int    `required:"" help:"Sentence index"`
	Start    string `required:"" help:"Start position token"`
	End      string `required:"" help:"End position token"`
	LayoutFlags
}

func (c *SegmentsCmd) Run(g *Globals) error {
	doc, err := loadArticle(c.Article)
	if err != nil {
		return err
	}
	a := anchor.Anchor{SentenceIndex: c.Sentence, Start: position.Token(c.Start), End: position.Token(c.End)}
	if err := a.Validate(); err != nil {
		return err
	}
	root, r, err := anchor.Resolve(a, anchor.DocumentLookup(doc))
	if err != nil {
		return err
	}
	flow, err := layout.NewFlow(c.options())
	if err != nil {
		return err
	}
	res, err := segment.NewBuilder(flow).Build(root, r)
	if err != nil {
		return err
	}
	if res.Segments == nil {
		res.Segments = []segment.Segment{}
	}
	return writeJSON(g, res)
}

// RenderCmd renders an article with a tag overlay per anchor.
type RenderCmd struct {
	Article string `required:"" help:"Article file (.md or .html)" type:"existingfile"`
	Anchors string `required:"" help:"JSON file holding an array of anchors" type:"existingfile"`
	LayoutFlags
}

func (c *RenderCmd) Run(g *Globals) error {
	doc, err := loadArticle(c.Article)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(c.Anchors)
	if err != nil {
		return err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%s: expected a JSON array of anchors: %w", c.Anchors, err)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:")
	if err != nil {
		return err
	}
	defer st.Close()
	for i, r := range raw {
		a, err := anchor.Parse(r)
		if err != nil {
			return fmt.Errorf("anchor %d: %w", i, err)
		}
		if _, err := st.Put(ctx, c.Article, store.Annotation{ID: fmt.Sprintf("anchor-%d", i), Anchor: a}); err != nil {
			return err
		}
	}

	log := slog.New(slog.NewTextHandler(g.Err, &slog.HandlerOptions{Level: slog.LevelWarn}))
	h, err := host.New(doc, c.options(), overlay.DefaultOptions(), st, c.Article, log)
	if err != nil {
		return err
	}
	defer h.Close()
	// Orphaned anchors are logged to stderr by Load.
	if err := h.Load(ctx); err != nil {
		return err
	}
	return h.Render(g.Out)
}

// EncodeCmd converts absolute rune offsets into an anchor.
type EncodeCmd struct {
	Article  string `required:"" help:"Article file (.md or .html)" type:"existingfile"`
	Sentence int    `required:"" help:"Sentence index"`
	From     int    `required:"" help:"Start offset in runes"`
	To       int    `required:"" help:"End offset in runes"`
}

func (c *EncodeCmd) Run(g *Globals) error {
	doc, err := loadArticle(c.Article)
	if err != nil {
		return err
	}
	a, err := anchor.FromOffsets(doc, c.Sentence, c.From, c.To)
	if err != nil {
		return err
	}
	return writeJSON(g, a)
}

func (f LayoutFlags) options() layout.Options {
	return layout.Options{FontSize: f.FontSize, LineHeight: f.LineHeight, Width: f.Width}
}

func loadArticle(path string) (*dom.Document, error) {
	format, err := article.FormatForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return article.Build(f, format, "")
}

func writeJSON(g *Globals, v any) error {
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
