package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"

	"github.com/ByLCY/quotecard/fonts"
	"github.com/ByLCY/quotecard/layout"
	"github.com/ByLCY/quotecard/renderer"
)

// 画布以 1mm = 1px 建立，栅格化分辨率固定为每毫米 1 像素。
var pixelResolution = canvas.DPMM(1.0)

// Renderer draws layout results via github.com/tdewolff/canvas and measures
// text with golang.org/x/image so that layout and drawing share one font source.
type Renderer struct {
	baseDir string
	logger  *slog.Logger

	// injected resources
	fontBlobs map[string][]byte // by unique name

	fontMu sync.Mutex
	fonts  map[string]*fontEntry

	// canvas 的字体族在绘制时不保证并发安全，渲染串行执行。
	renderMu sync.Mutex
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

type fontEntry struct {
	family *canvas.FontFamily
	sfnt   *opentype.Font
	src    string // 实际加载成功的来源
}

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // built-in fonts accessible via builtin:<name>
	Logger  *slog.Logger
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a canvas-based renderer rooted at baseDir for resolving font paths.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Renderer{
		baseDir:   opts.BaseDir,
		logger:    logger,
		fontBlobs: map[string][]byte{},
		fonts:     map[string]*fontEntry{},
	}
	for name, res := range opts.Fonts {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			r.fontBlobs[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, err := os.ReadFile(res.Path)
			if err != nil {
				// 使用时会按缺失资源处理并走回退字体
				logger.Warn("读取注入字体失败", "name", name, "path", res.Path, "err", err)
				continue
			}
			r.fontBlobs[name] = data
		}
	}
	return r
}

// Measure 实现 layout.Typesetter：返回以上升线左端为原点的墨迹包围盒（像素）。
func (r *Renderer) Measure(content string, font layout.FontResource) (layout.Box, error) {
	if font.Size <= 0 {
		return layout.Box{}, fmt.Errorf("字体 %s 字号无效: %g", font.Name, font.Size)
	}
	entry, err := r.ensureFont(font)
	if err != nil {
		return layout.Box{}, err
	}
	if content == "" {
		return layout.Box{}, nil
	}
	face, err := opentype.NewFace(entry.sfnt, &opentype.FaceOptions{
		Size:    font.Size,
		DPI:     72, // 72 DPI 下 1pt = 1px
		Hinting: xfont.HintingNone,
	})
	if err != nil {
		return layout.Box{}, fmt.Errorf("创建字体 %s 失败: %w", font.Name, err)
	}
	defer face.Close()

	bounds, _ := xfont.BoundString(face, content)
	ascent := face.Metrics().Ascent
	return layout.Box{
		Left:   bounds.Min.X.Floor(),
		Top:    (bounds.Min.Y + ascent).Floor(),
		Right:  bounds.Max.X.Ceil(),
		Bottom: (bounds.Max.Y + ascent).Ceil(),
	}, nil
}

// Render 按顺序执行绘制指令，叠加到背景后编码为 PNG。
func (r *Renderer) Render(result *layout.Result, background image.Image) ([]byte, error) {
	img, err := r.RenderImage(result, background)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("编码 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderImage 与 Render 相同，但返回未编码的图像。
func (r *Renderer) RenderImage(result *layout.Result, background image.Image) (*image.NRGBA, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if result.Width <= 0 || result.Height <= 0 {
		return nil, fmt.Errorf("画布尺寸无效 %dx%d", result.Width, result.Height)
	}

	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	c := canvas.New(float64(result.Width), float64(result.Height))
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与排版保持左上角为原点

	for _, cmd := range result.Commands {
		if err := r.drawCommand(ctx, cmd); err != nil {
			return nil, err
		}
	}
	textLayer := rasterizer.Draw(c, pixelResolution, canvas.DefaultColorSpace)

	base := prepareBackground(background, result.Width, result.Height)
	return imaging.Overlay(base, textLayer, image.Pt(0, 0), 1.0), nil
}

func (r *Renderer) drawCommand(ctx *canvas.Context, cmd layout.DrawCommand) error {
	if strings.TrimSpace(cmd.Content) == "" {
		return nil
	}
	entry, err := r.ensureFont(cmd.Font)
	if err != nil {
		return err
	}
	// 字号为像素；canvas 的字体面使用 pt，这里做一次 px→pt。
	face := entry.family.Face(layout.PxToPt(cmd.Font.Size), colorFromLayout(cmd.Color), canvas.FontRegular, canvas.FontNormal)

	// 基线位置：以行顶部（上升线）加上字体上升部
	baseline := float64(cmd.Y) + face.Metrics().Ascent
	ctx.DrawText(float64(cmd.X), baseline, canvas.NewTextLine(face, cmd.Content, canvas.Left))
	return nil
}

// prepareBackground 保证背景与画布同尺寸；缺失时用不透明黑色铺底。
func prepareBackground(bg image.Image, width, height int) *image.NRGBA {
	if bg == nil {
		return imaging.New(width, height, color.NRGBA{A: 255})
	}
	b := bg.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return imaging.Resize(bg, width, height, imaging.CatmullRom)
	}
	return imaging.Clone(bg)
}

func (r *Renderer) ensureFont(font layout.FontResource) (*fontEntry, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fonts[key]; ok {
		return entry, nil
	}

	var firstErr error
	for _, src := range fontSources(font) {
		entry, err := r.loadFont(font.Name, src)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if src != font.Src {
			r.logger.Warn("字体加载失败，使用回退字体", "font", font.Name, "src", font.Src, "fallback", src, "err", firstErr)
		}
		r.fonts[key] = entry
		return entry, nil
	}
	return nil, fmt.Errorf("加载字体 %s 失败: %w", font.Name, firstErr)
}

// fontSources 返回依次尝试的字体来源：src、fallback、内置默认字体。
func fontSources(font layout.FontResource) []string {
	builtin := "embed:" + fonts.Default
	var out []string
	seen := map[string]bool{}
	for _, src := range []string{font.Src, font.Fallback, builtin} {
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}

func (r *Renderer) loadFont(name, src string) (*fontEntry, error) {
	data, err := r.loadFontBytes(src)
	if err != nil {
		return nil, err
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("解析字体 %s 失败: %w", src, err)
	}
	familyName := name
	if familyName == "" {
		familyName = "Body"
	}
	family := canvas.NewFontFamily(familyName)
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("载入字体 %s 失败: %w", src, err)
	}
	return &fontEntry{family: family, sfnt: parsed, src: src}, nil
}

func (r *Renderer) loadFontBytes(src string) ([]byte, error) {
	if strings.HasPrefix(src, "built-in:") || strings.HasPrefix(src, "builtin:") {
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		if blob, ok := r.fontBlobs[name]; ok {
			return blob, nil
		}
		return nil, fmt.Errorf("找不到注入字体资源 builtin:%s", name)
	}
	if strings.HasPrefix(src, "embed:") {
		return fonts.Load(src)
	}
	// Path based
	path := src
	if r.baseDir == "" && !filepath.IsAbs(path) {
		return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 builtin: 或 embed:）", src)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	return os.ReadFile(path)
}

// LoadedSource 返回字体实际使用的来源，字体尚未加载时会先加载。
func (r *Renderer) LoadedSource(font layout.FontResource) (string, error) {
	entry, err := r.ensureFont(font)
	if err != nil {
		return "", err
	}
	return entry.src, nil
}

func fontCacheKey(font layout.FontResource) string {
	return fmt.Sprintf("%s|%s|%s", font.Name, font.Src, font.Fallback)
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}
