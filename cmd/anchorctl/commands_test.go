package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/dgallion1/textanchor/internal/anchor"
)

const testArticle = `<p><span class="sentence">Hello brave new world.</span> <span class="sentence">Second <em>sentence</em> here.</span></p>`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func defaultLayout() LayoutFlags {
	return LayoutFlags{Width: 640, FontSize: 16, LineHeight: 20}
}

func TestEncodeCmd(t *testing.T) {
	path := writeFile(t, "a.html", testArticle)
	var out bytes.Buffer
	cmd := &EncodeCmd{Article: path, Sentence: 1, From: 7, To: 15}
	if err := cmd.Run(&Globals{Out: &out, Err: &bytes.Buffer{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a, err := anchor.Parse(out.Bytes())
	if err != nil {
		t.Fatalf("parse output %q: %v", out.String(), err)
	}
	// Offset 7 sits between "Second " and <em>, so it resolves to the end of
	// the first text node.
	want := anchor.Anchor{SentenceIndex: 1, Start: "0:7", End: "1/0:8"}
	if a != want {
		t.Errorf("expected %+v, got %+v", want, a)
	}
}

func TestSegmentsCmd(t *testing.T) {
	path := writeFile(t, "a.html", testArticle)
	var out bytes.Buffer
	cmd := &SegmentsCmd{Article: path, Sentence: 0, Start: "0:0", End: "0:22", LayoutFlags: defaultLayout()}
	if err := cmd.Run(&Globals{Out: &out, Err: &bytes.Buffer{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var res struct {
		Segments []json.RawMessage `json:"segments"`
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Segments) != 1 {
		t.Errorf("expected 1 segment, got %d", len(res.Segments))
	}

	cmd.Width = 60
	out.Reset()
	if err := cmd.Run(&Globals{Out: &out, Err: &bytes.Buffer{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Segments) < 2 {
		t.Errorf("expected wrapped segments, got %d", len(res.Segments))
	}

	cmd.End = "0:99"
	if err := cmd.Run(&Globals{Out: &out, Err: &bytes.Buffer{}}); err == nil {
		t.Error("expected error for out of range token")
	}
}

func TestRenderCmd_ReportsOrphans(t *testing.T) {
	path := writeFile(t, "a.html", testArticle)
	anchors := writeFile(t, "anchors.json", `[
		{"sentenceIndex":0,"start":"0:6","end":"0:11"},
		{"sentenceIndex":1,"start":"0:0","end":"0:99"}
	]`)
	var out, errOut bytes.Buffer
	cmd := &RenderCmd{Article: path, Anchors: anchors, LayoutFlags: defaultLayout()}
	if err := cmd.Run(&Globals{Out: &out, Err: &errOut}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := strings.Count(out.String(), `class="overlay-segment overlay-tag"`); n != 1 {
		t.Errorf("expected 1 tag segment, got %d in %s", n, out.String())
	}
	if !strings.Contains(errOut.String(), "anchor-1") {
		t.Errorf("expected orphaned anchor on stderr, got %q", errOut.String())
	}
}

func TestRenderCmd_InvalidAnchors(t *testing.T) {
	path := writeFile(t, "a.html", testArticle)
	anchors := writeFile(t, "anchors.json", `[{"sentenceIndex":0,"start":1,"end":"0:2"}]`)
	cmd := &RenderCmd{Article: path, Anchors: anchors, LayoutFlags: defaultLayout()}
	err := cmd.Run(&Globals{Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
	if err == nil {
		t.Fatal("expected error for invalid anchor")
	}
}

func TestCLI_ParseAndRun(t *testing.T) {
	path := writeFile(t, "a.md", "One sentence. Two sentences.")
	parser, err := kong.New(&CLI, kong.Name("anchorctl"))
	if err != nil {
		t.Fatalf("kong.New: %v", err)
	}
	ctx, err := parser.Parse([]string{"encode", "--article", path, "--sentence", "1", "--from", "0", "--to", "3"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var out bytes.Buffer
	if err := ctx.Run(&Globals{Out: &out, Err: &bytes.Buffer{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a, err := anchor.Parse(out.Bytes())
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if a.SentenceIndex != 1 || a.Start != "0:0" || a.End != "0:3" {
		t.Errorf("unexpected anchor %+v", a)
	}
}
