package layout

import (
	"fmt"
	"strings"
)

// Build 根据输入计算正文与署名的换行、居中坐标以及阴影/填充两遍绘制指令。
func Build(in Input, opts BuildOptions) (*Result, error) {
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少测量后端 Typesetter")
	}
	if in.Width <= 0 || in.Height <= 0 {
		return nil, fmt.Errorf("layout: 画布尺寸无效 %dx%d", in.Width, in.Height)
	}
	ts := opts.Typesetter

	quoteLines, err := WrapLines(in.Quote, in.QuoteFont, in.Width-2*in.Padding, ts)
	if err != nil {
		return nil, err
	}
	if len(quoteLines) == 0 {
		return nil, fmt.Errorf("layout: 正文为空")
	}

	lines := make([]MeasuredLine, 0, len(quoteLines)+1)
	totalQuoteHeight := 0
	for _, content := range quoteLines {
		box, err := ts.Measure(content, in.QuoteFont)
		if err != nil {
			return nil, fmt.Errorf("测量正文行 %q 失败: %w", content, err)
		}
		// 行高直接取包围盒 Bottom 坐标，不减去 Top。
		totalQuoteHeight += box.Bottom
		lines = append(lines, MeasuredLine{Content: content, Font: in.QuoteFont, Box: box})
	}
	totalQuoteHeight += in.LineGap * len(quoteLines)

	authorBox, err := ts.Measure(in.Author, in.AuthorFont)
	if err != nil {
		return nil, fmt.Errorf("测量署名 %q 失败: %w", in.Author, err)
	}
	lines = append(lines, MeasuredLine{Content: in.Author, Font: in.AuthorFont, Box: authorBox, Author: true})
	totalHeight := totalQuoteHeight + authorBox.Height() + in.AuthorGap

	res := &Result{
		Width:    in.Width,
		Height:   in.Height,
		Lines:    lines,
		Commands: make([]DrawCommand, 0, 2*len(lines)),
	}

	y := floorDiv(in.Height-totalHeight, 2)
	for _, line := range lines {
		fill := in.QuoteColor
		if line.Author {
			fill = in.AuthorColor
		}
		x := CenterX(in.Width, line.Box.Width())
		res.Commands = append(res.Commands,
			DrawCommand{
				Content: line.Content,
				Font:    line.Font,
				X:       x + in.ShadowOffset,
				Y:       y + in.ShadowOffset,
				Color:   in.ShadowColor,
				Shadow:  true,
			},
			DrawCommand{
				Content: line.Content,
				Font:    line.Font,
				X:       x,
				Y:       y,
				Color:   fill,
			},
		)
		if !line.Author {
			y += line.Box.Bottom + in.LineGap
		}
	}
	return res, nil
}

// WrapLines 使用贪心算法将 text 按空白分词后装入宽度不超过 maxWidth 的行。
// 每行第一个词总是被接受，因此单个超宽的词会独占一行并可能溢出画布。
func WrapLines(text string, font FontResource, maxWidth int, ts Typesetter) ([]string, error) {
	if ts == nil {
		return nil, fmt.Errorf("layout: 缺少测量后端 Typesetter")
	}
	words := strings.Fields(text)
	var lines []string
	for len(words) > 0 {
		var builder strings.Builder
		builder.WriteString(words[0])
		builder.WriteByte(' ')
		words = words[1:]
		for len(words) > 0 {
			// 候选行保留已有内容的尾随空格再接上下一个词。
			box, err := ts.Measure(builder.String()+words[0], font)
			if err != nil {
				return nil, fmt.Errorf("测量候选行失败: %w", err)
			}
			if box.Width() > maxWidth {
				break
			}
			builder.WriteString(words[0])
			builder.WriteByte(' ')
			words = words[1:]
		}
		lines = append(lines, strings.TrimRight(builder.String(), " "))
	}
	return lines, nil
}

// CenterX 返回宽度为 w 的内容在宽度为 width 的画布上水平居中时的左边 x。
func CenterX(width, w int) int { return floorDiv(width-w, 2) }

// floorDiv 向下取整的整数除法，负数同样向负无穷取整。
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
