package layout

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ByLCY/quotecard/binding"
	"github.com/ByLCY/quotecard/dsl"
)

// 默认卡片参数。
const (
	DefaultCanvasSize     = 1080
	DefaultPadding        = 50
	DefaultQuoteFontSize  = 60
	DefaultAuthorFontSize = 36
	DefaultLineGap        = 10
	DefaultAuthorGap      = 30
	DefaultShadowOffset   = 2
	DefaultBlurRadius     = 6
	DefaultKeyword        = "motivational background"
	DefaultFontSrc        = "DejaVuSans.ttf"
	BuiltinFontSrc        = "embed:go-regular"
)

// Style 描述一张卡片的全部可配置外观。
type Style struct {
	Name       string                  `json:"name"`
	Width      int                     `json:"width"`
	Height     int                     `json:"height"`
	Padding    int                     `json:"padding"`
	LineGap    int                     `json:"lineGap"`
	AuthorGap  int                     `json:"authorGap"`
	Shadow     ShadowStyle             `json:"shadow"`
	Quote      TextStyle               `json:"quote"`
	Author     TextStyle               `json:"author"`
	Background BackgroundStyle         `json:"background"`
	Fonts      map[string]FontResource `json:"fonts"`
}

// TextStyle 描述正文或署名的字体、颜色与格式模板。
type TextStyle struct {
	Font   FontResource `json:"font"`
	Color  Color        `json:"color"`
	Format string       `json:"format"` // 支持 ${text} 与 ${author} 占位
}

// ShadowStyle 描述投影。
type ShadowStyle struct {
	Offset int   `json:"offset"`
	Color  Color `json:"color"`
}

// BackgroundStyle 描述背景获取失败时的纯色填充以及统一的模糊半径。
type BackgroundStyle struct {
	Fill    Color   `json:"fill"`
	Blur    float64 `json:"blur"`
	Keyword string  `json:"keyword"`
}

// DefaultStyle 返回 1080x1080 的默认卡片样式。
func DefaultStyle() Style {
	quoteFont := FontResource{Name: "Quote", Src: DefaultFontSrc, Fallback: BuiltinFontSrc, Size: DefaultQuoteFontSize}
	authorFont := FontResource{Name: "Author", Src: DefaultFontSrc, Fallback: BuiltinFontSrc, Size: DefaultAuthorFontSize}
	return Style{
		Name:      "Default",
		Width:     DefaultCanvasSize,
		Height:    DefaultCanvasSize,
		Padding:   DefaultPadding,
		LineGap:   DefaultLineGap,
		AuthorGap: DefaultAuthorGap,
		Shadow:    ShadowStyle{Offset: DefaultShadowOffset, Color: Black},
		Quote:     TextStyle{Font: quoteFont, Color: White, Format: `"${text}"`},
		Author:    TextStyle{Font: authorFont, Color: LightGray, Format: "- ${author}"},
		Background: BackgroundStyle{
			Fill:    DarkGray,
			Blur:    DefaultBlurRadius,
			Keyword: DefaultKeyword,
		},
		Fonts: map[string]FontResource{
			quoteFont.Name:  quoteFont,
			authorFont.Name: authorFont,
		},
	}
}

// Input 套用格式模板，生成一次排版的输入。
func (s Style) Input(text, author string) Input {
	data := map[string]any{"text": text, "author": author}
	return Input{
		Width:        s.Width,
		Height:       s.Height,
		Quote:        binding.Interpolate(s.Quote.Format, data),
		Author:       binding.Interpolate(s.Author.Format, data),
		QuoteFont:    s.Quote.Font,
		AuthorFont:   s.Author.Font,
		Padding:      s.Padding,
		LineGap:      s.LineGap,
		AuthorGap:    s.AuthorGap,
		ShadowOffset: s.Shadow.Offset,
		QuoteColor:   s.Quote.Color,
		AuthorColor:  s.Author.Color,
		ShadowColor:  s.Shadow.Color,
	}
}

// LoadStyle 读取并解析样式表文件。
func LoadStyle(path string) (Style, error) {
	file, err := os.Open(path)
	if err != nil {
		return Style{}, fmt.Errorf("无法打开样式表 %s: %w", path, err)
	}
	defer file.Close()

	doc, err := dsl.Parse(path, file)
	if err != nil {
		return Style{}, fmt.Errorf("解析样式表失败: %w", err)
	}
	return ParseStyle(doc)
}

// 样式表允许的指令、顶层属性以及各分节可用的键。
var (
	topLevelKeys = map[string]bool{"padding": true, "line-gap": true, "author-gap": true}
	sectionKeys  = map[string]map[string]bool{
		"font":       {"src": true, "fallback": true, "size": true},
		"quote":      {"font": true, "size": true, "color": true, "format": true},
		"author":     {"font": true, "size": true, "color": true, "format": true},
		"shadow":     {"offset": true, "color": true},
		"background": {"fill": true, "blur": true, "keyword": true},
	}
	formatPlaceholders = map[string]bool{"text": true, "author": true}
)

// section 是一个分节的属性集合，既可来自指令块 `shadow { ... }`，
// 也可来自内联对象 `shadow: { ...; ... }`。
type section struct {
	name  string
	args  []*dsl.Lexeme
	props map[string]*dsl.Value
}

// ParseStyle 以默认样式为基础，按样式表中的声明逐项覆盖。
// 未知的指令、属性或分节键都会报错。
func ParseStyle(doc *dsl.Document) (Style, error) {
	if doc == nil || doc.Block == nil {
		return Style{}, fmt.Errorf("样式表为空")
	}
	s := DefaultStyle()
	s.Name = doc.Name

	top, sections, err := collectSections(doc.Block)
	if err != nil {
		return Style{}, err
	}

	for _, cmd := range doc.Commands("canvas") {
		if len(cmd.Args) != 2 || cmd.Block != nil {
			return Style{}, fmt.Errorf("canvas 需要宽高两个参数，实际 %d 个", len(cmd.Args))
		}
		w, err := parsePixels(cmd.Args[0].Value)
		if err != nil {
			return Style{}, fmt.Errorf("canvas 宽度: %w", err)
		}
		h, err := parsePixels(cmd.Args[1].Value)
		if err != nil {
			return Style{}, fmt.Errorf("canvas 高度: %w", err)
		}
		if w <= 0 || h <= 0 {
			return Style{}, fmt.Errorf("canvas 尺寸无效 %dx%d", w, h)
		}
		s.Width, s.Height = w, h
	}

	for key, target := range map[string]*int{"padding": &s.Padding, "line-gap": &s.LineGap, "author-gap": &s.AuthorGap} {
		if v, ok := top[key]; ok {
			px, err := parsePixels(v.Text())
			if err != nil {
				return Style{}, fmt.Errorf("%s: %w", key, err)
			}
			*target = px
		}
	}

	for _, sec := range sections["font"] {
		font, err := parseFontResource(sec)
		if err != nil {
			return Style{}, err
		}
		s.Fonts[font.Name] = font
	}
	// 默认字体可能被样式表重新定义。
	s.Quote.Font = s.Fonts[s.Quote.Font.Name]
	s.Author.Font = s.Fonts[s.Author.Font.Name]

	for _, sec := range sections["quote"] {
		if err := applyTextStyle(&s.Quote, sec, s.Fonts); err != nil {
			return Style{}, fmt.Errorf("quote: %w", err)
		}
	}
	for _, sec := range sections["author"] {
		if err := applyTextStyle(&s.Author, sec, s.Fonts); err != nil {
			return Style{}, fmt.Errorf("author: %w", err)
		}
	}
	for _, sec := range sections["shadow"] {
		if v, ok := sec.props["offset"]; ok {
			px, err := parsePixels(v.Text())
			if err != nil {
				return Style{}, fmt.Errorf("shadow offset: %w", err)
			}
			s.Shadow.Offset = px
		}
		if v, ok := sec.props["color"]; ok {
			c, err := ParseColor(v.Text())
			if err != nil {
				return Style{}, fmt.Errorf("shadow color: %w", err)
			}
			s.Shadow.Color = c
		}
	}
	for _, sec := range sections["background"] {
		if v, ok := sec.props["fill"]; ok {
			c, err := ParseColor(v.Text())
			if err != nil {
				return Style{}, fmt.Errorf("background fill: %w", err)
			}
			s.Background.Fill = c
		}
		if v, ok := sec.props["blur"]; ok {
			l, err := ParseLength(v.Text())
			if err != nil {
				return Style{}, fmt.Errorf("background blur 无效: %q", v.Text())
			}
			if l.Pixels() < 0 {
				return Style{}, fmt.Errorf("background blur 不能为负: %s", l)
			}
			s.Background.Blur = l.Pixels()
		}
		if v, ok := sec.props["keyword"]; ok {
			s.Background.Keyword = v.Text()
		}
	}
	return s, nil
}

// collectSections 校验顶层语句，把指令块与内联对象统一整理为分节，保持源码顺序。
func collectSections(b *dsl.Block) (map[string]*dsl.Value, map[string][]section, error) {
	top := map[string]*dsl.Value{}
	sections := map[string][]section{}
	for _, st := range b.Statements {
		switch {
		case st.Command != nil:
			cmd := st.Command
			if cmd.Name == "canvas" {
				continue
			}
			if _, ok := sectionKeys[cmd.Name]; !ok {
				return nil, nil, fmt.Errorf("%s: 未知指令 %s", cmd.Pos, cmd.Name)
			}
			props, err := blockProps(cmd.Name, cmd.Block)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", cmd.Pos, err)
			}
			sections[cmd.Name] = append(sections[cmd.Name], section{name: cmd.Name, args: cmd.Args, props: props})
		case st.Assignment != nil:
			key, v := st.Assignment.Key, st.Assignment.Value
			if topLevelKeys[key] {
				if !v.Scalar() {
					return nil, nil, fmt.Errorf("%s 需要单个取值", key)
				}
				top[key] = v
				continue
			}
			// font 分节需要名称参数，只能写成指令形式。
			if _, ok := sectionKeys[key]; !ok || key == "font" || v.Object == nil {
				return nil, nil, fmt.Errorf("未知属性 %s", key)
			}
			props := v.Object.Assignments()
			if err := checkKeys(key, props); err != nil {
				return nil, nil, err
			}
			sections[key] = append(sections[key], section{name: key, props: props})
		}
	}
	return top, sections, nil
}

func blockProps(name string, b *dsl.Block) (map[string]*dsl.Value, error) {
	if b == nil {
		return map[string]*dsl.Value{}, nil
	}
	for _, st := range b.Statements {
		if st.Command != nil {
			return nil, fmt.Errorf("%s 中出现未知指令 %s", name, st.Command.Name)
		}
	}
	props := b.Assignments()
	if err := checkKeys(name, props); err != nil {
		return nil, err
	}
	return props, nil
}

func checkKeys(name string, props map[string]*dsl.Value) error {
	allowed := sectionKeys[name]
	for key, v := range props {
		if !allowed[key] {
			return fmt.Errorf("%s 不支持属性 %s", name, key)
		}
		if !v.Scalar() {
			return fmt.Errorf("%s.%s 需要单个取值", name, key)
		}
	}
	return nil
}

func parseFontResource(sec section) (FontResource, error) {
	if len(sec.args) != 1 {
		return FontResource{}, fmt.Errorf("font 需要且只需要一个名称")
	}
	font := FontResource{Name: sec.args[0].Value, Size: DefaultQuoteFontSize}
	font.Src = sec.props["src"].Text()
	if font.Src == "" {
		return FontResource{}, fmt.Errorf("字体 %s 缺少 src", font.Name)
	}
	font.Fallback = BuiltinFontSrc
	if v, ok := sec.props["fallback"]; ok {
		font.Fallback = v.Text()
	}
	if v, ok := sec.props["size"]; ok {
		l, err := ParseLength(v.Text())
		if err != nil || l.Pixels() <= 0 {
			return FontResource{}, fmt.Errorf("字体 %s 字号无效: %q", font.Name, v.Text())
		}
		font.Size = l.Pixels()
	}
	return font, nil
}

func applyTextStyle(ts *TextStyle, sec section, fonts map[string]FontResource) error {
	if v, ok := sec.props["font"]; ok {
		font, ok := fonts[v.Text()]
		if !ok {
			return fmt.Errorf("引用了未定义的字体 %s", v.Text())
		}
		ts.Font = font
	}
	if v, ok := sec.props["size"]; ok {
		l, err := ParseLength(v.Text())
		if err != nil {
			return fmt.Errorf("字号无效: %q", v.Text())
		}
		if l.Pixels() <= 0 {
			return fmt.Errorf("字号必须为正: %s", l)
		}
		ts.Font.Size = l.Pixels()
	}
	if v, ok := sec.props["color"]; ok {
		c, err := ParseColor(v.Text())
		if err != nil {
			return err
		}
		ts.Color = c
	}
	if v, ok := sec.props["format"]; ok {
		for _, p := range binding.Placeholders(v.Text()) {
			if !formatPlaceholders[p] {
				return fmt.Errorf("格式模板引用了未知占位 ${%s}", p)
			}
		}
		ts.Format = v.Text()
	}
	return nil
}

func parsePixels(value string) (int, error) {
	l, err := ParseLength(value)
	if err != nil {
		return 0, fmt.Errorf("无法解析长度 %q", value)
	}
	return int(math.Round(l.Pixels())), nil
}

var namedColors = map[string]Color{
	"white":     White,
	"black":     Black,
	"lightgray": LightGray,
	"lightgrey": LightGray,
	"darkgray":  DarkGray,
	"darkgrey":  DarkGray,
}

// ParseColor 解析 #RGB、#RRGGBB 或少量具名颜色。
func ParseColor(value string) (Color, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if c, ok := namedColors[v]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(v, "#")
	if hex == v {
		return Color{}, fmt.Errorf("无法识别的颜色 %q", value)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("颜色长度无效 %q", value)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("颜色格式无效 %q: %w", value, err)
	}
	return Color{R: int(n >> 16 & 0xff), G: int(n >> 8 & 0xff), B: int(n & 0xff)}, nil
}
