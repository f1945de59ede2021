package card

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/ByLCY/quotecard/layout"
	canvasrenderer "github.com/ByLCY/quotecard/renderer/canvas"
)

type recordingSource struct {
	keywords []string
	err      error
}

func (s *recordingSource) Fetch(_ context.Context, keyword string) (image.Image, error) {
	s.keywords = append(s.keywords, keyword)
	if s.err != nil {
		return nil, s.err
	}
	return imaging.New(50, 50, color.NRGBA{R: 0, G: 0, B: 200, A: 255}), nil
}

func testGenerator(src *recordingSource) *Generator {
	style := layout.DefaultStyle()
	style.Width, style.Height = 400, 300
	style.Quote.Font.Src = "embed:go-regular"
	style.Quote.Font.Size = 30
	style.Author.Font.Src = "embed:go-regular"
	style.Author.Font.Size = 18
	r := canvasrenderer.NewRenderer(".")
	g := &Generator{Style: style, Typesetter: r, Renderer: r}
	if src != nil {
		g.Backgrounds = src
	}
	return g
}

func TestGenerateMissingFields(t *testing.T) {
	g := testGenerator(nil)
	for _, req := range []Request{
		{Author: "Jobs"},
		{Text: "Stay hungry"},
		{Text: "   ", Author: "Jobs"},
	} {
		if _, err := g.Generate(context.Background(), req); !errors.Is(err, ErrMissingField) {
			t.Fatalf("Generate(%+v) error = %v, want ErrMissingField", req, err)
		}
	}
}

func TestGenerateWithoutSourceFallsBack(t *testing.T) {
	g := testGenerator(nil)
	out, err := g.Generate(context.Background(), Request{Text: "Stay hungry", Author: "Jobs"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if !out.Fallback || out.Reason == nil {
		t.Fatalf("expected solid fallback, got fallback=%v reason=%v", out.Fallback, out.Reason)
	}
	img, err := png.Decode(bytes.NewReader(out.PNG))
	if err != nil {
		t.Fatalf("decode PNG: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 400, 300) {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if got := out.Layout.Lines[0].Content; got != `"Stay hungry"` {
		t.Fatalf("unexpected first line %q", got)
	}
}

func TestGenerateUsesDefaultKeyword(t *testing.T) {
	src := &recordingSource{}
	g := testGenerator(src)
	out, err := g.Generate(context.Background(), Request{Text: "Stay hungry", Author: "Jobs"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if out.Fallback {
		t.Fatalf("unexpected fallback: %v", out.Reason)
	}
	if len(src.keywords) != 1 || src.keywords[0] != layout.DefaultKeyword {
		t.Fatalf("unexpected keywords %q", src.keywords)
	}

	if _, err := g.Generate(context.Background(), Request{Text: "x", Author: "y", Keyword: " ocean "}); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if src.keywords[1] != "ocean" {
		t.Fatalf("expected trimmed keyword, got %q", src.keywords[1])
	}
}

func TestGenerateSourceErrorIsRecovered(t *testing.T) {
	boom := errors.New("upstream down")
	g := testGenerator(&recordingSource{err: boom})
	out, err := g.Generate(context.Background(), Request{Text: "Stay hungry", Author: "Jobs"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if !out.Fallback || !errors.Is(out.Reason, boom) {
		t.Fatalf("expected fallback carrying upstream error, got %+v", out)
	}
}

func TestGenerateNormalizesText(t *testing.T) {
	g := testGenerator(nil)
	// "e" + 组合重音符 应被规范化为单个 "é"
	out, err := g.Generate(context.Background(), Request{Text: "cafe\u0301", Author: "Jobs"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if got := out.Layout.Lines[0].Content; got != "\"caf\u00e9\"" {
		t.Fatalf("expected NFC text, got %q", got)
	}
}

const posterSheet = `
card Poster v1 {
  canvas 320 240
  padding: 20

  font Body {
    src: "embed:go-bold"
    size: 28px
  }
  font Author {
    src: "embed:go-regular"
    size: 16
  }

  quote {
    font: Body
    color: #FFD700
  }
  author: { color: #D3D3D3; format: "~ ${author}" }
  shadow: { offset: 3; color: #000000 }
  background {
    fill: #204060
    blur: 0
  }
}
`

func TestGenerateFromStyleSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poster.card")
	if err := os.WriteFile(path, []byte(posterSheet), 0o644); err != nil {
		t.Fatalf("write sheet: %v", err)
	}
	style, err := layout.LoadStyle(path)
	if err != nil {
		t.Fatalf("LoadStyle: %v", err)
	}
	r := canvasrenderer.NewRenderer(".")
	g := &Generator{Style: style, Typesetter: r, Renderer: r}

	out, err := g.Generate(context.Background(), Request{Text: "Stay hungry", Author: "Jobs"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out.PNG))
	if err != nil {
		t.Fatalf("decode PNG: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 320, 240) {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	r8, g8, b8, _ := img.At(1, 1).RGBA()
	if r8>>8 != 0x20 || g8>>8 != 0x40 || b8>>8 != 0x60 {
		t.Fatalf("expected fill #204060 in the corner, got (%d,%d,%d)", r8>>8, g8>>8, b8>>8)
	}

	cmds := out.Layout.Commands
	if len(cmds) < 4 {
		t.Fatalf("expected at least 4 commands, got %d", len(cmds))
	}
	shadow, fill := cmds[0], cmds[1]
	if !shadow.Shadow || shadow.X != fill.X+3 || shadow.Y != fill.Y+3 {
		t.Fatalf("unexpected shadow offset: shadow=%+v fill=%+v", shadow, fill)
	}
	if fill.Color != (layout.Color{R: 0xFF, G: 0xD7, B: 0}) || fill.Font.Src != "embed:go-bold" {
		t.Fatalf("unexpected quote command %+v", fill)
	}
	last := cmds[len(cmds)-1]
	if last.Content != "~ Jobs" || last.Color != layout.LightGray || last.Font.Size != 16 {
		t.Fatalf("unexpected author command %+v", last)
	}
}
