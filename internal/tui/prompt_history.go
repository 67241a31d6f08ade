package tui

import "strings"

// defaultPromptHistoryLimit 是输入框可回溯的最大条数。
const defaultPromptHistoryLimit = 200

// promptHistory 负责输入框历史浏览状态（上下箭头）。
// cursor == len(entries) 表示当前在“最新输入”（非浏览历史）位置。
type promptHistory struct {
	entries []string
	cursor  int
	draft   string
	limit   int
}

func newPromptHistory(entries []string, limit int) *promptHistory {
	if limit <= 0 {
		limit = defaultPromptHistoryLimit
	}
	h := &promptHistory{limit: limit}
	for _, e := range entries {
		h.push(e)
	}
	h.ResetBrowsing()
	return h
}

// Add 记录一条已提交的输入，连续重复的只保留一条。
func (h *promptHistory) Add(text string) {
	h.push(text)
	h.ResetBrowsing()
}

func (h *promptHistory) push(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == text {
		return
	}
	h.entries = append(h.entries, text)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append([]string(nil), h.entries[over:]...)
	}
}

func (h *promptHistory) Len() int {
	return len(h.entries)
}

func (h *promptHistory) Browsing() bool {
	return h.cursor < len(h.entries)
}

func (h *promptHistory) ResetBrowsing() {
	h.cursor = len(h.entries)
	h.draft = ""
}

// Prev 返回上一条历史；首次进入浏览时保存当前草稿。
func (h *promptHistory) Prev(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.cursor == len(h.entries) {
		h.draft = current
	}
	if h.cursor > 0 {
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next 向新方向移动，越过最后一条时恢复草稿。
func (h *promptHistory) Next() (string, bool) {
	if !h.Browsing() {
		return "", false
	}
	if h.cursor < len(h.entries)-1 {
		h.cursor++
		return h.entries[h.cursor], true
	}
	draft := h.draft
	h.ResetBrowsing()
	return draft, true
}
