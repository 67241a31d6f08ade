package slash

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	nameStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BE0FF"))
	descStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EBCB8B"))
	selectedStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#1E3A4A"))
)

// View 渲染弹窗内容（不含外围边框），每条命令占一行。
func (s *State) View(width int) string {
	if !s.Open() {
		return ""
	}
	contentWidth := width
	if contentWidth <= 20 {
		contentWidth = 20
	}
	if len(s.matches) == 0 {
		return lipgloss.NewStyle().Width(contentWidth).Render("no matching commands")
	}

	nameWidth, descWidth := s.columnWidths(contentWidth)
	start, end := visibleWindow(len(s.matches), s.maxLines, s.selected)
	lines := make([]string, 0, end-start)
	for idx := start; idx < end; idx++ {
		m := s.matches[idx]
		name := applyHighlights(m.item.DisplayName(s.prefix), shift(m.highlights, runeLen(s.prefix)))
		nameCell := lipgloss.NewStyle().Width(nameWidth).Render(nameStyle.Render(name))
		desc := m.item.Description
		if m.item.Usage != "" {
			desc = fmt.Sprintf("%s  %s", s.prefix+m.item.Usage, desc)
		}
		line := fmt.Sprintf("%s  %s", nameCell, descStyle.Render(truncate(desc, descWidth)))
		if idx == s.selected {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.NewStyle().Width(contentWidth).Render(strings.Join(lines, "\n"))
}

func (s *State) columnWidths(contentWidth int) (int, int) {
	maxName := 10
	for _, m := range s.matches {
		if w := lipgloss.Width(m.item.DisplayName(s.prefix)); w > maxName {
			maxName = w
		}
	}
	if maxName > contentWidth-12 {
		maxName = contentWidth - 12
	}
	descWidth := contentWidth - maxName - 2
	if descWidth < 8 {
		descWidth = 8
	}
	return maxName, descWidth
}

// visibleWindow 返回包含选中项的 [start,end) 区间。
func visibleWindow(total, maxLines, selected int) (int, int) {
	if maxLines <= 0 || total <= maxLines {
		return 0, total
	}
	start := 0
	if selected >= maxLines {
		start = selected - maxLines + 1
	}
	return start, start + maxLines
}

func truncate(text string, width int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "…")
}

func shift(indexes []int, offset int) []int {
	if offset == 0 || len(indexes) == 0 {
		return indexes
	}
	out := make([]int, len(indexes))
	for i, idx := range indexes {
		out[i] = idx + offset
	}
	return out
}

func applyHighlights(name string, indexes []int) string {
	if len(indexes) == 0 {
		return name
	}
	marked := make(map[int]bool, len(indexes))
	for _, idx := range indexes {
		marked[idx] = true
	}
	var sb strings.Builder
	for i, r := range []rune(name) {
		if marked[i] {
			sb.WriteString(highlightStyle.Render(string(r)))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
