package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreAppendAndLoadTexts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "history.jsonl")
	s := New(path)

	if got, err := s.LoadTexts(0); err != nil || len(got) != 0 {
		t.Fatalf("LoadTexts on missing file: got=%v err=%v", got, err)
	}
	if err := s.Append("   ", KindServer); err != nil {
		t.Fatalf("Append whitespace: %v", err)
	}
	for _, text := range []string{"/start 10", "/start 10", "say hi", "/players"} {
		kind := KindServer
		if strings.HasPrefix(text, "/") {
			kind = KindCommand
		}
		if err := s.Append(text, kind); err != nil {
			t.Fatalf("Append %q: %v", text, err)
		}
	}

	got, err := s.LoadTexts(0)
	if err != nil {
		t.Fatalf("LoadTexts: %v", err)
	}
	want := []string{"/start 10", "say hi", "/players"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("LoadTexts = %q, want %q", got, want)
	}

	got, _ = s.LoadTexts(2)
	if strings.Join(got, "|") != "say hi|/players" {
		t.Fatalf("LoadTexts(2) = %q", got)
	}

	entries, _ := s.Load()
	if entries[0].Kind != KindCommand || entries[2].Kind != KindServer {
		t.Fatalf("kinds = %v %v", entries[0].Kind, entries[2].Kind)
	}
}

func TestStoreSkipsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join([]string{
		`{"text":"one","ts":"2025-01-01T00:00:00Z"}`,
		`{not json}`,
		`{"text":"  ","ts":"2025-01-01T00:00:00Z"}`,
		`{"text":"two","kind":"command","ts":"2025-01-01T00:00:00Z"}`,
		"",
	}, "\n")), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := New(path).LoadTexts(0)
	if err != nil {
		t.Fatalf("LoadTexts: %v", err)
	}
	if strings.Join(got, "|") != "one|two" {
		t.Fatalf("LoadTexts = %q", got)
	}
}

func TestStoreCompact(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "history.jsonl"))
	for _, text := range []string{"a", "b", "c", "d"} {
		if err := s.Append(text, KindServer); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.Compact(2); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	got, _ := s.LoadTexts(0)
	if strings.Join(got, "|") != "c|d" {
		t.Fatalf("after compact = %q", got)
	}
	if err := s.Append("e", KindServer); err != nil {
		t.Fatalf("Append after compact: %v", err)
	}
	got, _ = s.LoadTexts(0)
	if strings.Join(got, "|") != "c|d|e" {
		t.Fatalf("after append = %q", got)
	}
}

func TestStoreAppendErrors(t *testing.T) {
	t.Parallel()

	var s *Store
	if err := s.Append("hi", KindServer); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if err := New("").Append("hi", KindServer); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
