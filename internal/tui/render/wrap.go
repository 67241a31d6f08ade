package render

import "github.com/mattn/go-runewidth"

// WrapLine 按终端单元格宽度硬换行，不考虑单词边界。
// 单宽字符的行长 L 拆成 ceil(L/width) 行；宽字符占两格，超出 width 的单个字符独占一行。
// 空行产出一行；width <= 0 时不换行。
func WrapLine(line string, width int) []string {
	if width <= 0 || runewidth.StringWidth(line) <= width {
		return []string{line}
	}
	out := make([]string, 0, runewidth.StringWidth(line)/width+1)
	start, cells := 0, 0
	for i, r := range line {
		w := runewidth.RuneWidth(r)
		if cells > 0 && cells+w > width {
			out = append(out, line[start:i])
			start, cells = i, 0
		}
		cells += w
	}
	return append(out, line[start:])
}

// WrapCache 缓存当前宽度下的全部显示行。
// 宽度、换行开关或 LineStore 版本变化后下一次读取前重算。
type WrapCache struct {
	rows       []string
	width      int
	wordWrap   bool
	version    uint64
	valid      bool
	recomputes int
}

// NewWrapCache 创建默认开启换行的缓存。
func NewWrapCache() *WrapCache {
	return &WrapCache{wordWrap: true}
}

// EnsureValid 在缓存失效时重算，返回是否发生了重算。
func (c *WrapCache) EnsureValid(store *LineStore, width int) bool {
	if c.valid && c.width == width && c.version == store.Version() {
		return false
	}
	c.rows = c.rows[:0]
	for _, line := range store.Lines() {
		if !c.wordWrap {
			c.rows = append(c.rows, line)
			continue
		}
		c.rows = append(c.rows, WrapLine(line, width)...)
	}
	c.width = width
	c.version = store.Version()
	c.valid = true
	c.recomputes++
	return true
}

// SetWordWrap 切换换行；关闭时每行一个显示行，绘制时截断。
func (c *WrapCache) SetWordWrap(on bool) {
	if c.wordWrap == on {
		return
	}
	c.wordWrap = on
	c.valid = false
}

// WordWrap 返回换行开关。
func (c *WrapCache) WordWrap() bool {
	return c.wordWrap
}

// Rows 返回缓存的显示行，调用方不得修改。
func (c *WrapCache) Rows() []string {
	return c.rows
}

// RowCount 返回显示行数。
func (c *WrapCache) RowCount() int {
	return len(c.rows)
}

// Recomputes 返回累计重算次数。
func (c *WrapCache) Recomputes() int {
	return c.recomputes
}
