// Command anchorctl computes segments, renders overlays, and encodes anchors
// for an article from the command line.
package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"
)

// Globals are bound into every command's Run.
type Globals struct {
	Out io.Writer
	Err io.Writer
}

// LayoutFlags are shared by commands that lay out text.
type LayoutFlags struct {
	Width      float64 `help:"Container width in px." default:"640"`
	FontSize   float64 `name:"font-size" help:"Font size in px." default:"16"`
	LineHeight float64 `name:"line-height" help:"Line height in px." default:"20"`
}

// CLI defines the command-line interface for anchorctl.
var CLI struct {
	Segments SegmentsCmd `cmd:"" help:"Print the per-line segments of a token range as JSON"`
	Render   RenderCmd   `cmd:"" help:"Render an article with tag overlays for stored anchors"`
	Encode   EncodeCmd   `cmd:"" help:"Convert absolute offsets in a sentence into an anchor"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("anchorctl"),
		kong.Description("Durable text anchors and overlay geometry for articles"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&Globals{Out: os.Stdout, Err: os.Stderr})
	ctx.FatalIfErrorf(err)
}
