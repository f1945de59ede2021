package layout

// 该文件定义排版输入、测量结果与绘制指令，供排版计算、渲染与调试 JSON 共用。

// Input 描述一次卡片排版所需的全部参数，单位均为像素。
type Input struct {
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Quote      string       `json:"quote"`  // 已包含引号的正文
	Author     string       `json:"author"` // 已格式化的署名行
	QuoteFont  FontResource `json:"quoteFont"`
	AuthorFont FontResource `json:"authorFont"`
	Padding    int          `json:"padding"` // 左右各留的水平边距

	LineGap      int   `json:"lineGap"`      // 每行正文之后的固定间距
	AuthorGap    int   `json:"authorGap"`    // 仅参与垂直居中计算
	ShadowOffset int   `json:"shadowOffset"` // 阴影相对正文的右下偏移
	QuoteColor   Color `json:"quoteColor"`
	AuthorColor  Color `json:"authorColor"`
	ShadowColor  Color `json:"shadowColor"`
}

// FontResource 描述字体资源，src 可以是文件路径、embed:* 或 builtin:* 形式。
type FontResource struct {
	Name     string  `json:"name"`
	Src      string  `json:"src"`
	Fallback string  `json:"fallback,omitempty"` // src 加载失败时尝试的备用来源
	Size     float64 `json:"size"`               // 像素字号
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Box 是以文本原点 (0,0) 为左上锚点测得的像素包围盒。
// 注意 Bottom 是坐标值而非高度，行高推进直接使用它。
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (b Box) Width() int  { return b.Right - b.Left }
func (b Box) Height() int { return b.Bottom - b.Top }

// MeasuredLine 表示排版后的一行文本及其包围盒。
type MeasuredLine struct {
	Content string       `json:"content"`
	Font    FontResource `json:"font"`
	Box     Box          `json:"box"`
	Author  bool         `json:"author,omitempty"`
}

// DrawCommand 是一条已经定位好的绘制指令，渲染器按顺序执行。
type DrawCommand struct {
	Content string       `json:"content"`
	Font    FontResource `json:"font"`
	X       int          `json:"x"`
	Y       int          `json:"y"` // 文本顶部（上升线）位置
	Color   Color        `json:"color"`
	Shadow  bool         `json:"shadow,omitempty"`
}

// Result 保存一次排版的全部输出。
type Result struct {
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Lines    []MeasuredLine `json:"lines"`
	Commands []DrawCommand  `json:"commands"`
}

// 常用颜色。
var (
	White     = Color{R: 255, G: 255, B: 255}
	Black     = Color{}
	LightGray = Color{R: 211, G: 211, B: 211}
	DarkGray  = Color{R: 30, G: 30, B: 30}
)
