package slash

import "strings"

// Item 代表弹窗中的一条本地命令。
type Item struct {
	Name        string
	Usage       string
	Description string
}

// Token 返回无前缀的匹配键。
func (i Item) Token() string {
	return strings.ToLower(strings.TrimSpace(i.Name))
}

// DisplayName 返回带前缀的展示名称。
func (i Item) DisplayName(prefix string) string {
	token := i.Token()
	if token == "" {
		return ""
	}
	return prefix + token
}
