package layout

// BuildOptions 配置排版阶段所需的依赖，例如测量后端。
type BuildOptions struct {
	Typesetter Typesetter
}

// Typesetter 负责按给定字体测量一段文本的像素包围盒。
// 包围盒以文本原点为左上锚点，与渲染器绘制时的定位方式一致。
type Typesetter interface {
	Measure(content string, font FontResource) (Box, error)
}
