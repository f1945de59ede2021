package renderer

import (
	"image"

	"github.com/ByLCY/quotecard/layout"
)

// Renderer 将排版结果叠加到背景上并输出最终图像。
// Render 返回编码后的二进制数据（例如 PNG 字节切片）以及可能的错误。
type Renderer interface {
	Render(result *layout.Result, background image.Image) ([]byte, error)
}
