package render

// WheelStep 是鼠标滚轮一次滚动的行数。
const WheelStep = 3

// ScrollController 维护视口顶部行与自动跟随状态。
// topRow 在每次读取时都重新钳制，内容缩短后也不会越界。
type ScrollController struct {
	topRow     int
	autoScroll bool
	height     int
	rowCount   int
}

// NewScrollController 创建默认自动跟随的控制器。
func NewScrollController() *ScrollController {
	return &ScrollController{autoScroll: true}
}

// SetHeight 更新视口高度。
func (s *ScrollController) SetHeight(height int) {
	if height < 0 {
		height = 0
	}
	s.height = height
}

// Height 返回视口高度。
func (s *ScrollController) Height() int {
	return s.height
}

// SetRowCount 在 WrapCache 重算后同步显示行数；自动跟随时钉在底部。
func (s *ScrollController) SetRowCount(n int) {
	if n < 0 {
		n = 0
	}
	s.rowCount = n
	if s.autoScroll {
		s.topRow = s.MaxTop()
	}
}

// MaxTop 返回 topRow 的上界；高度为 0 时为 0。
func (s *ScrollController) MaxTop() int {
	if s.height <= 0 {
		return 0
	}
	if top := s.rowCount - s.height; top > 0 {
		return top
	}
	return 0
}

// TopRow 返回钳制后的顶部行。
func (s *ScrollController) TopRow() int {
	if s.autoScroll {
		return s.MaxTop()
	}
	return s.clamp(s.topRow)
}

// AutoScroll 返回是否在跟随最新内容。
func (s *ScrollController) AutoScroll() bool {
	return s.autoScroll
}

func (s *ScrollController) clamp(top int) int {
	if maxTop := s.MaxTop(); top > maxTop {
		top = maxTop
	}
	if top < 0 {
		top = 0
	}
	return top
}

// ScrollBy 相对滚动；向下滚到距底部一行以内时恢复自动跟随。
func (s *ScrollController) ScrollBy(delta int) {
	maxTop := s.MaxTop()
	top := s.clamp(s.TopRow() + delta)
	if delta > 0 && top >= maxTop-1 {
		s.topRow = maxTop
		s.autoScroll = true
		return
	}
	s.topRow = top
	if delta < 0 || top != maxTop {
		s.autoScroll = false
	}
}

// ScrollUp 上滚 n 行。
func (s *ScrollController) ScrollUp(n int) {
	s.ScrollBy(-n)
}

// ScrollDown 下滚 n 行。
func (s *ScrollController) ScrollDown(n int) {
	s.ScrollBy(n)
}

func (s *ScrollController) pageSize() int {
	if s.height-1 > 1 {
		return s.height - 1
	}
	return 1
}

// PageUp 上翻一页（height-1，至少 1 行）。
func (s *ScrollController) PageUp() {
	s.ScrollBy(-s.pageSize())
}

// PageDown 下翻一页。
func (s *ScrollController) PageDown() {
	s.ScrollBy(s.pageSize())
}

// ScrollToTop 跳到顶部并停止跟随。
func (s *ScrollController) ScrollToTop() {
	s.topRow = 0
	s.autoScroll = false
}

// ScrollToBottom 跳到底部并恢复跟随。
func (s *ScrollController) ScrollToBottom() {
	s.topRow = s.MaxTop()
	s.autoScroll = true
}

// Reset 回到初始的跟随状态。
func (s *ScrollController) Reset() {
	s.topRow = 0
	s.rowCount = 0
	s.autoScroll = true
}
