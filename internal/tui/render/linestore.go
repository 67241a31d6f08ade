package render

// MinMaxLines 是 LineStore 允许的最小容量。
const MinMaxLines = 100

// DefaultMaxLines 是未配置时的容量。
const DefaultMaxLines = 10000

// LineStore 保存最近 maxLines 行日志，超出后从头部淘汰。
// 只允许 UI 线程访问，因此不加锁。
type LineStore struct {
	lines    []string
	head     int
	maxLines int
	version  uint64
}

// NewLineStore 创建 LineStore；maxLines 小于 MinMaxLines 时按 MinMaxLines 处理。
func NewLineStore(maxLines int) *LineStore {
	return &LineStore{maxLines: clampMaxLines(maxLines)}
}

func clampMaxLines(n int) int {
	if n < MinMaxLines {
		return MinMaxLines
	}
	return n
}

// Append 追加一行，返回被淘汰的行数。
func (s *LineStore) Append(line string) int {
	s.lines = append(s.lines, line)
	evicted := s.trim()
	s.version++
	return evicted
}

// AppendBatch 追加多行，只产生一次版本变更。返回淘汰行数（含未入库即被挤出的行）。
func (s *LineStore) AppendBatch(lines []string) int {
	if len(lines) == 0 {
		return 0
	}
	skipped := 0
	if len(lines) > s.maxLines {
		skipped = len(lines) - s.maxLines
		lines = lines[skipped:]
	}
	s.lines = append(s.lines, lines...)
	evicted := s.trim() + skipped
	s.version++
	return evicted
}

// trim 从头部淘汰多余的行；底层数组在空洞过半时压缩。
func (s *LineStore) trim() int {
	over := s.Len() - s.maxLines
	if over <= 0 {
		return 0
	}
	for i := s.head; i < s.head+over; i++ {
		s.lines[i] = ""
	}
	s.head += over
	if s.head > len(s.lines)/2 {
		n := copy(s.lines, s.lines[s.head:])
		clear(s.lines[n:])
		s.lines = s.lines[:n]
		s.head = 0
	}
	return over
}

// Clear 清空所有内容。
func (s *LineStore) Clear() {
	s.lines = nil
	s.head = 0
	s.version++
}

// SetMaxLines 修改容量并立即淘汰，返回淘汰行数。
func (s *LineStore) SetMaxLines(n int) int {
	s.maxLines = clampMaxLines(n)
	evicted := s.trim()
	if evicted > 0 {
		s.version++
	}
	return evicted
}

// MaxLines 返回容量。
func (s *LineStore) MaxLines() int {
	return s.maxLines
}

// Len 返回当前行数。
func (s *LineStore) Len() int {
	return len(s.lines) - s.head
}

// Line 返回第 i 行（0 为最旧）。
func (s *LineStore) Line(i int) string {
	return s.lines[s.head+i]
}

// Lines 返回当前内容的只读视图，调用方不得修改。
func (s *LineStore) Lines() []string {
	return s.lines[s.head:]
}

// Tail 返回最新的 n 行副本。
func (s *LineStore) Tail(n int) []string {
	lines := s.Lines()
	if n <= 0 {
		return nil
	}
	if n > len(lines) {
		n = len(lines)
	}
	return append([]string(nil), lines[len(lines)-n:]...)
}

// Version 在每次内容变更后递增，供 WrapCache 判断失效。
func (s *LineStore) Version() uint64 {
	return s.version
}
