package slash

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
)

// Options 控制弹窗的数据来源。
type Options struct {
	Prefix   string
	Items    []Item
	MaxLines int
}

// ActionKind 描述按键触发后的处理类型。
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionClose
	ActionInsert
	ActionSubmit
)

// Action 汇总按键处理结果。
type Action struct {
	Kind         ActionKind
	Item         Item
	NewValue     string
	CursorColumn int
	SubmitText   string
}

// State 维护命令补全弹窗的匹配与选择状态。
type State struct {
	prefix   string
	items    []Item
	matches  []match
	selected int
	open     bool
	token    string
	maxLines int
}

type match struct {
	item       Item
	highlights []int
	score      int
}

// NewState 构造补全状态机。
func NewState(opts Options) *State {
	maxLines := opts.MaxLines
	if maxLines <= 0 {
		maxLines = 8
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "/"
	}
	s := &State{prefix: prefix, maxLines: maxLines}
	s.SetItems(opts.Items)
	return s
}

// SetItems 替换候选命令，按名称排序。
func (s *State) SetItems(items []Item) {
	s.items = append([]Item(nil), items...)
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].Token() < s.items[j].Token()
	})
	if s.open {
		s.matches = filterMatches(s.items, s.token)
		s.clampSelection()
	}
}

// Open 返回弹窗是否展示。
func (s *State) Open() bool {
	return s != nil && s.open
}

// Close 收起弹窗。
func (s *State) Close() {
	if s == nil {
		return
	}
	s.open = false
	s.matches = nil
}

// Height 返回弹窗正文占用的行数，未打开时为 0。
func (s *State) Height() int {
	if !s.Open() {
		return 0
	}
	n := len(s.matches)
	if n == 0 {
		return 1
	}
	if n > s.maxLines {
		return s.maxLines
	}
	return n
}

// SyncInput 根据输入框文本同步过滤结果。
// 只有在输入命令名（前缀之后、第一个空白之前）时弹窗才打开。
func (s *State) SyncInput(value string) {
	if s == nil {
		return
	}
	token, ok := s.locateToken(value)
	if !ok {
		s.Close()
		return
	}
	if !s.open || token != s.token {
		s.selected = 0
	}
	s.open = true
	s.token = token
	s.matches = filterMatches(s.items, token)
	s.clampSelection()
}

func (s *State) locateToken(value string) (string, bool) {
	if !strings.HasPrefix(value, s.prefix) {
		return "", false
	}
	rest := value[len(s.prefix):]
	if strings.IndexFunc(rest, unicode.IsSpace) >= 0 {
		return "", false
	}
	return rest, true
}

func (s *State) clampSelection() {
	if s.selected >= len(s.matches) || s.selected < 0 {
		s.selected = 0
	}
}

// Selected 返回当前选中的命令。
func (s *State) Selected() (Item, bool) {
	if !s.Open() || len(s.matches) == 0 {
		return Item{}, false
	}
	return s.matches[s.selected].item, true
}

// HandleKey 处理弹窗打开时的按键，返回对应动作。
func (s *State) HandleKey(key string) (Action, bool) {
	if s == nil || !s.open {
		return Action{}, false
	}
	switch key {
	case "up", "ctrl+p":
		if len(s.matches) == 0 {
			return Action{Kind: ActionClose}, true
		}
		s.selected--
		if s.selected < 0 {
			s.selected = len(s.matches) - 1
		}
		return Action{Kind: ActionNone}, true
	case "down", "ctrl+n":
		if len(s.matches) == 0 {
			return Action{Kind: ActionClose}, true
		}
		s.selected++
		if s.selected >= len(s.matches) {
			s.selected = 0
		}
		return Action{Kind: ActionNone}, true
	case "esc":
		s.Close()
		return Action{Kind: ActionClose}, true
	case "tab":
		item, ok := s.Selected()
		if !ok {
			return Action{Kind: ActionNone}, true
		}
		value := item.DisplayName(s.prefix) + " "
		s.Close()
		return Action{Kind: ActionInsert, Item: item, NewValue: value, CursorColumn: runeLen(value)}, true
	case "enter":
		item, ok := s.Selected()
		if !ok {
			// 没有匹配时交给正常提交流程，由分发器给出未知命令提示。
			s.Close()
			return Action{}, false
		}
		s.Close()
		return Action{Kind: ActionSubmit, Item: item, SubmitText: item.DisplayName(s.prefix)}, true
	default:
		return Action{}, false
	}
}

func filterMatches(items []Item, query string) []match {
	trimmed := strings.ToLower(strings.TrimSpace(query))
	if trimmed == "" {
		matches := make([]match, 0, len(items))
		for _, item := range items {
			matches = append(matches, match{item: item})
		}
		return matches
	}

	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Token()
	}
	results := fuzzy.Find(trimmed, keys)
	matches := make([]match, 0, len(results))
	for _, res := range results {
		matches = append(matches, match{
			item:       items[res.Index],
			highlights: res.MatchedIndexes,
			score:      res.Score,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score == matches[j].score {
			return matches[i].item.Token() < matches[j].item.Token()
		}
		return matches[i].score > matches[j].score
	})
	return matches
}

func runeLen(s string) int {
	return len([]rune(s))
}
