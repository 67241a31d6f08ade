package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreSaveLoadLast(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "sessions"))

	if _, err := s.Last(); !errors.Is(err, ErrNoSessions) {
		t.Fatalf("Last on empty store err = %v", err)
	}

	first := &Record{ID: "run-1", ServerPath: "/srv/TABG", PipeMode: "named", Started: time.Now()}
	if err := s.Save(first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second := &Record{ID: "run-2", ServerPath: "/srv/TABG", PipeMode: "anonymous", Started: time.Now()}
	if !second.AddPlayer("epic-a") || second.AddPlayer("epic-a") {
		t.Fatalf("AddPlayer should dedupe")
	}
	second.Finish("exited cleanly", 0, time.Now())
	if err := s.Save(second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("run-2")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Ended == nil || got.ExitState != "exited cleanly" || len(got.Players) != 1 {
		t.Fatalf("loaded = %+v", got)
	}

	last, err := s.Last()
	if err != nil || last.ID != "run-2" {
		t.Fatalf("Last = %+v, %v", last, err)
	}

	// 非 json 文件和损坏的记录都被忽略。
	_ = os.WriteFile(filepath.Join(s.Dir, "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(s.Dir, "broken.json"), []byte("{"), 0o644)
	records, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 || records[0].ID != "run-2" {
		t.Fatalf("List = %+v", records)
	}
}

func TestRecordSummary(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{name: "no exit", rec: Record{ID: "x"}, want: "ended without an exit record"},
		{name: "error", rec: Record{Ended: &at, ExitState: "exited with error", ExitCode: 1}, want: "exited with error (code 1)"},
		{name: "one player", rec: Record{Ended: &at, ExitState: "exited cleanly", Players: []string{"a"}}, want: "exited cleanly (code 0), 1 player"},
		{name: "players", rec: Record{Ended: &at, ExitState: "killed by request", ExitCode: -1, Players: []string{"a", "b"}}, want: "killed by request (code -1), 2 players"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Summary(); got != tt.want {
				t.Fatalf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStorePrune(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Save(&Record{ID: id}); err != nil {
			t.Fatalf("Save: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	removed, err := s.Prune(1)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d", removed)
	}
	ids, _ := s.ListIDs()
	if len(ids) != 1 || ids[0] != "c" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestStoreRejectsMissingID(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Save(&Record{}); err == nil {
		t.Fatalf("expected error")
	}
	if err := NewStore("").Save(&Record{ID: "x"}); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
