package render

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

func TestWrapLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		width int
		want  []int
	}{
		{name: "250 chars at 80", line: strings.Repeat("A", 250), width: 80, want: []int{80, 80, 80, 10}},
		{name: "exact multiple", line: strings.Repeat("b", 160), width: 80, want: []int{80, 80}},
		{name: "shorter than width", line: "hello", width: 80, want: []int{5}},
		{name: "empty line", line: "", width: 80, want: []int{0}},
		{name: "zero width", line: strings.Repeat("c", 300), width: 0, want: []int{300}},
		{name: "negative width", line: "abc", width: -4, want: []int{3}},
		{name: "no word boundary", line: "hello world", width: 4, want: []int{4, 4, 3}},
		{name: "wide runes take two cells", line: "你好世界和平", width: 4, want: []int{2, 2, 2}},
		{name: "odd width leaves a cell", line: "界界界", width: 3, want: []int{1, 1, 1}},
		{name: "mixed widths", line: "ab界cd", width: 3, want: []int{2, 2, 1}},
		{name: "wide rune wider than width", line: "界a", width: 1, want: []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := WrapLine(tt.line, tt.width)
			got := make([]int, len(rows))
			for i, r := range rows {
				got[i] = utf8.RuneCountInString(r)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("WrapLine row lengths = %v, want %v", got, tt.want)
			}
			if joined := strings.Join(rows, ""); joined != tt.line {
				t.Fatalf("concatenated rows = %q, want %q", joined, tt.line)
			}
		})
	}
}

func TestWrapLineRowCountProperty(t *testing.T) {
	for l := 0; l <= 50; l++ {
		line := strings.Repeat("x", l)
		for w := 1; w <= 12; w++ {
			rows := WrapLine(line, w)
			want := (l + w - 1) / w
			if l == 0 {
				want = 1
			}
			if len(rows) != want {
				t.Fatalf("L=%d W=%d: %d rows, want %d", l, w, len(rows), want)
			}
			for _, r := range rows {
				if runewidth.StringWidth(r) > w {
					t.Fatalf("L=%d W=%d: row %q longer than width", l, w, r)
				}
			}
		}
	}
}

func TestWrapCacheIdempotent(t *testing.T) {
	store := NewLineStore(100)
	store.AppendBatch([]string{strings.Repeat("A", 250), "short"})
	cache := NewWrapCache()

	if !cache.EnsureValid(store, 80) {
		t.Fatalf("first EnsureValid should recompute")
	}
	first := slices.Clone(cache.Rows())
	if cache.EnsureValid(store, 80) {
		t.Fatalf("second EnsureValid should be a no-op")
	}
	if cache.Recomputes() != 1 {
		t.Fatalf("Recomputes() = %d, want 1", cache.Recomputes())
	}
	if !slices.Equal(first, cache.Rows()) {
		t.Fatalf("rows changed without mutation")
	}
	if cache.RowCount() != 5 {
		t.Fatalf("RowCount() = %d, want 5", cache.RowCount())
	}
}

func TestWrapCacheInvalidation(t *testing.T) {
	store := NewLineStore(100)
	store.Append(strings.Repeat("A", 100))
	cache := NewWrapCache()
	cache.EnsureValid(store, 50)

	steps := []struct {
		name     string
		mutate   func()
		width    int
		wantRows int
	}{
		{name: "width change", mutate: func() {}, width: 25, wantRows: 4},
		{name: "append", mutate: func() { store.Append("x") }, width: 25, wantRows: 5},
		{name: "wrap off", mutate: func() { cache.SetWordWrap(false) }, width: 25, wantRows: 2},
		{name: "clear", mutate: func() { store.Clear() }, width: 25, wantRows: 0},
	}
	for _, step := range steps {
		before := cache.Recomputes()
		step.mutate()
		if !cache.EnsureValid(store, step.width) {
			t.Fatalf("%s: expected recompute", step.name)
		}
		if cache.Recomputes() != before+1 {
			t.Fatalf("%s: Recomputes() = %d, want %d", step.name, cache.Recomputes(), before+1)
		}
		if cache.RowCount() != step.wantRows {
			t.Fatalf("%s: RowCount() = %d, want %d", step.name, cache.RowCount(), step.wantRows)
		}
	}
}
