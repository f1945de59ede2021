// Package card turns a quote request into a finished PNG: background, layout
// and rendering, each step an explicit collaborator.
package card

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/quotecard/background"
	"github.com/ByLCY/quotecard/layout"
	"github.com/ByLCY/quotecard/renderer"
)

// ErrMissingField is returned when the quote text or the author is empty.
var ErrMissingField = errors.New("missing text or author")

// Request is one card to generate.
type Request struct {
	Text    string `json:"text"`
	Author  string `json:"author"`
	Keyword string `json:"keyword,omitempty"`
}

// Output is a generated card.
type Output struct {
	PNG      []byte
	Layout   *layout.Result
	Fallback bool  // background was the solid fill
	Reason   error // why the remote background was not used
}

// Generator wires the style, the background source and the rendering backend.
// It holds no per-request state and is safe for concurrent use when its
// collaborators are.
type Generator struct {
	Style       layout.Style
	Typesetter  layout.Typesetter
	Renderer    renderer.Renderer
	Backgrounds background.Source // nil always uses the solid fill
	Logger      *slog.Logger
}

// Generate validates req and renders the card.
func (g *Generator) Generate(ctx context.Context, req Request) (*Output, error) {
	text := norm.NFC.String(strings.TrimSpace(req.Text))
	author := norm.NFC.String(strings.TrimSpace(req.Author))
	if text == "" || author == "" {
		return nil, ErrMissingField
	}
	if g.Typesetter == nil || g.Renderer == nil {
		return nil, errors.New("card: generator is missing a typesetter or renderer")
	}
	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		keyword = g.Style.Background.Keyword
	}

	bg := background.Acquire(ctx, g.Backgrounds, keyword, background.Options{
		Width:  g.Style.Width,
		Height: g.Style.Height,
		Fill:   g.Style.Background.Fill,
		Blur:   g.Style.Background.Blur,
		Logger: g.logger(),
	})

	result, err := layout.Build(g.Style.Input(text, author), layout.BuildOptions{Typesetter: g.Typesetter})
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	data, err := g.Renderer.Render(result, bg.Image)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	g.logger().Debug("card generated",
		"lines", len(result.Lines),
		"bytes", len(data),
		"fallback", bg.Fallback,
	)
	return &Output{PNG: data, Layout: result, Fallback: bg.Fallback, Reason: bg.Reason}, nil
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return g.Logger
}
