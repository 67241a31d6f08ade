package render

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"tabg-cli/internal/events"
)

// LogView 组合 LineStore、WrapCache 与 ScrollController，是日志面板的全部渲染状态。
// 只允许 UI 线程调用。
type LogView struct {
	store  *LineStore
	cache  *WrapCache
	scroll *ScrollController
	width  int

	dropped uint64
}

// NewLogView 创建日志视图。
func NewLogView(maxLines int) *LogView {
	return &LogView{
		store:  NewLineStore(maxLines),
		cache:  NewWrapCache(),
		scroll: NewScrollController(),
	}
}

// Flush 把一次 drain 的结果写入 LineStore，返回淘汰行数。
func (v *LogView) Flush(batch []events.Line) int {
	if len(batch) == 0 {
		return 0
	}
	texts := make([]string, 0, len(batch))
	for _, line := range batch {
		texts = append(texts, line.Text)
	}
	evicted := v.store.AppendBatch(texts)
	v.revalidate()
	return evicted
}

// AppendText 直接追加一行，用于本地命令反馈。
func (v *LogView) AppendText(text string) {
	for _, part := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		v.store.Append(part)
	}
	v.revalidate()
}

// SetDropped 记录 IngestQueue 的丢弃计数，用于状态栏。
func (v *LogView) SetDropped(n uint64) {
	v.dropped = n
}

// Resize 更新视口尺寸；宽度变化使 WrapCache 失效。
func (v *LogView) Resize(width, height int) {
	v.width = width
	v.scroll.SetHeight(height)
	v.revalidate()
}

func (v *LogView) revalidate() {
	v.cache.EnsureValid(v.store, v.width)
	v.scroll.SetRowCount(v.cache.RowCount())
}

// Clear 清空内容并恢复跟随。
func (v *LogView) Clear() {
	v.store.Clear()
	v.scroll.Reset()
	v.revalidate()
}

// SetWordWrap 切换换行模式。
func (v *LogView) SetWordWrap(on bool) {
	v.cache.SetWordWrap(on)
	v.revalidate()
}

// WordWrap 返回换行开关。
func (v *LogView) WordWrap() bool {
	return v.cache.WordWrap()
}

// Scroll 暴露滚动控制器给输入分发。
func (v *LogView) Scroll() *ScrollController {
	return v.scroll
}

// Store 返回底层 LineStore。
func (v *LogView) Store() *LineStore {
	return v.store
}

// Cache 返回底层 WrapCache。
func (v *LogView) Cache() *WrapCache {
	return v.cache
}

// VisibleRows 只返回 [topRow, topRow+height) 范围内的显示行。
func (v *LogView) VisibleRows() []string {
	v.revalidate()
	rows := v.cache.Rows()
	top := v.scroll.TopRow()
	end := top + v.scroll.Height()
	if end > len(rows) {
		end = len(rows)
	}
	if top >= end {
		return nil
	}
	return rows[top:end]
}

// View 渲染可见区域，每行按单元格宽度截断并补齐到 height 行。
func (v *LogView) View() string {
	rows := v.VisibleRows()
	height := v.scroll.Height()
	var b strings.Builder
	for i := 0; i < height; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		if i < len(rows) {
			b.WriteString(clampCells(rows[i], v.width))
		}
	}
	return b.String()
}

func clampCells(row string, width int) string {
	if width <= 0 || runewidth.StringWidth(row) <= width {
		return row
	}
	return runewidth.Truncate(row, width, "")
}

// Status 返回状态栏摘要。
func (v *LogView) Status() string {
	follow := "follow"
	if !v.scroll.AutoScroll() {
		follow = fmt.Sprintf("row %d/%d", v.scroll.TopRow()+1, max(1, v.cache.RowCount()))
	}
	parts := []string{
		fmt.Sprintf("%d/%d lines", v.store.Len(), v.store.MaxLines()),
		follow,
	}
	if !v.cache.WordWrap() {
		parts = append(parts, "nowrap")
	}
	if v.dropped > 0 {
		parts = append(parts, fmt.Sprintf("dropped %d", v.dropped))
	}
	return strings.Join(parts, " · ")
}
