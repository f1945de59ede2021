// Package background acquires the photo behind a quote card: one attempt at a
// remote source, and a solid fill when that attempt fails for any reason.
package background

import (
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/ByLCY/quotecard/layout"
)

// Source fetches a themed photograph for a keyword.
type Source interface {
	Fetch(ctx context.Context, keyword string) (image.Image, error)
}

// ErrNoSource is reported when no remote source is configured.
var ErrNoSource = errors.New("background: no image source configured")

// Options controls the size and post-processing of the acquired background.
type Options struct {
	Width  int
	Height int
	Fill   layout.Color // solid color used on fallback
	Blur   float64      // Gaussian blur sigma applied to every background; 0 disables
	Logger *slog.Logger
}

// Outcome is the result of one acquisition. Reason is non-nil exactly when
// Fallback is true.
type Outcome struct {
	Image    *image.NRGBA
	Fallback bool
	Reason   error
}

// Acquire makes a single fetch attempt and never fails: any fetch error is
// turned into the solid fallback, recorded in Outcome.Reason.
func Acquire(ctx context.Context, src Source, keyword string, opts Options) Outcome {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var out Outcome
	img, err := fetch(ctx, src, keyword)
	if err != nil {
		logger.Info("background fetch failed, using solid fill", "keyword", keyword, "err", err)
		out = Outcome{Image: Solid(opts.Width, opts.Height, opts.Fill), Fallback: true, Reason: err}
	} else {
		out = Outcome{Image: imaging.Resize(img, opts.Width, opts.Height, imaging.CatmullRom)}
	}
	if opts.Blur > 0 {
		out.Image = imaging.Blur(out.Image, opts.Blur)
	}
	return out
}

func fetch(ctx context.Context, src Source, keyword string) (image.Image, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	return src.Fetch(ctx, keyword)
}

// Solid returns an opaque canvas filled with c.
func Solid(width, height int, c layout.Color) *image.NRGBA {
	return imaging.New(width, height, color.NRGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: 255})
}
