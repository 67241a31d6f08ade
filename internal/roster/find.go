package roster

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Find 按玩家标识、名字（忽略大小写）、子序列模糊匹配、编辑距离的顺序查找玩家。
// 在线玩家优先于离线记录。
func (s *Store) Find(query string) (Player, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Player{}, false
	}
	players := s.All()

	for _, p := range players {
		if p.ID == query {
			return p, true
		}
	}
	for _, p := range players {
		if strings.EqualFold(p.DisplayName, query) {
			return p, true
		}
	}

	names := make([]string, 0, len(players))
	idx := make([]int, 0, len(players))
	for i, p := range players {
		if p.DisplayName == "" {
			continue
		}
		names = append(names, strings.ToLower(p.DisplayName))
		idx = append(idx, i)
	}
	lower := strings.ToLower(query)
	results := fuzzy.Find(lower, names)
	if len(results) == 0 {
		// 拼错的名字不是子序列，退回编辑距离。
		if i := closestByEditDistance(lower, names); i >= 0 {
			return players[idx[i]], true
		}
		return Player{}, false
	}
	// fuzzy 已按分数降序；同分时保留 All() 的顺序（在线优先）。
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return players[idx[results[0].Index]], true
}

// closestByEditDistance 返回编辑距离最小的名字下标；距离超过 len(query)/2 时返回 -1。
// 同距离取先出现的一个。
func closestByEditDistance(query string, names []string) int {
	best, bestDist := -1, -1
	for i, name := range names {
		d := levenshtein([]rune(query), []rune(name))
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > len([]rune(query))/2 {
		return -1
	}
	return best
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
