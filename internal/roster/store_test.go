package roster

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func names(vals ...string) []DatedString {
	out := make([]DatedString, len(vals))
	for i, v := range vals {
		out[i] = DatedString{Value: v}
	}
	return out
}

func TestUpdateDatedStringsCoalesces(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t1.Add(time.Hour)

	set := UpdateDatedStrings(nil, "Bob", t0)
	set = UpdateDatedStrings(set, "Bob", t1)
	if len(set) != 1 {
		t.Fatalf("same value twice: len = %d, want 1", len(set))
	}
	if !set[0].FirstSeen.Equal(t0) || !set[0].LastSeen.Equal(t1) {
		t.Fatalf("coalesced entry = %+v", set[0])
	}

	set = UpdateDatedStrings(set, "Robert", t2)
	if len(set) != 2 {
		t.Fatalf("different value: len = %d, want 2", len(set))
	}
	if set[1].Value != "Robert" || !set[1].FirstSeen.Equal(t2) || !set[1].LastSeen.Equal(t2) {
		t.Fatalf("appended entry = %+v", set[1])
	}

	// 只与最后一项比较：回到旧名字会追加新项。
	set = UpdateDatedStrings(set, "Bob", t2)
	if len(set) != 3 {
		t.Fatalf("return to old value: len = %d, want 3", len(set))
	}
	if got := UpdateDatedStrings(set, "", t2); len(got) != 3 {
		t.Fatalf("empty value should be ignored")
	}
}

func TestJoinThenLeaveKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitors.json")
	s := NewStore(path)
	clock, advance := fixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	s.now = clock

	if _, err := s.Join("abc", VisitorEntry{DisplayNames: names("Bob")}); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if s.Len() != 1 || !s.IsConnected("abc") {
		t.Fatalf("after join: len=%d connected=%v", s.Len(), s.IsConnected("abc"))
	}
	if got := s.Connected(); len(got) != 1 || got[0].DisplayName != "Bob" {
		t.Fatalf("Connected() = %+v", got)
	}

	advance(time.Minute)
	left, err := s.Leave("abc")
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if len(s.Connected()) != 0 || s.IsConnected("abc") {
		t.Fatalf("player still connected after leave")
	}
	entry, ok := s.Get("abc")
	if !ok {
		t.Fatalf("history should be retained after leave")
	}
	if !entry.LastSeen.Equal(clock()) || !left.LastSeen.Equal(clock()) {
		t.Fatalf("LastSeen = %v, want %v", entry.LastSeen, clock())
	}

	reloaded := NewStore(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := reloaded.Get("abc"); !ok {
		t.Fatalf("persisted roster lost entry")
	}
	if len(reloaded.Connected()) != 0 {
		t.Fatalf("connected set must not be persisted")
	}
}

func TestJoinMergesIdentityHistory(t *testing.T) {
	s := NewStore("")
	clock, advance := fixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	s.now = clock
	first := clock()

	seen := VisitorEntry{
		DisplayNames:    names("Bob"),
		SteamIDs:        names("7656"),
		IPAddresses:     names("10.0.0.1"),
		PermissionLevel: 2,
	}
	if _, err := s.Join("abc", seen); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := s.SetLevel("abc", 5); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}

	advance(time.Hour)
	seen.DisplayNames = names("Bob", "Bobby")
	seen.PermissionLevel = 0
	entry, err := s.Join("abc", seen)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}

	if len(entry.DisplayNames) != 2 || entry.DisplayName() != "Bobby" {
		t.Fatalf("DisplayNames = %+v", entry.DisplayNames)
	}
	if len(entry.SteamIDs) != 1 || !entry.SteamIDs[0].LastSeen.Equal(clock()) {
		t.Fatalf("SteamIDs should coalesce: %+v", entry.SteamIDs)
	}
	if !entry.FirstSeen.Equal(first) || !entry.LastSeen.Equal(clock()) {
		t.Fatalf("FirstSeen=%v LastSeen=%v", entry.FirstSeen, entry.LastSeen)
	}
	if s.PermissionLevel("abc") != 5 {
		t.Fatalf("local permission level must win, got %d", s.PermissionLevel("abc"))
	}
}

func TestStoreErrors(t *testing.T) {
	s := NewStore("")
	if _, err := s.Join("  ", VisitorEntry{}); !errors.Is(err, ErrEmptyID) {
		t.Fatalf("Join empty id err = %v", err)
	}
	if _, err := s.Leave("ghost"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("Leave unknown err = %v", err)
	}
	if err := s.SetLevel("ghost", 1); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("SetLevel unknown err = %v", err)
	}
	if s.PermissionLevel("ghost") != 0 {
		t.Fatalf("unknown player should have level 0")
	}
}

func TestLoadPersistedJSONShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitors.json")
	raw := `{
  "abc": {
    "displayNames": [{"value": "Bob", "firstSeen": "2025-01-01T00:00:00Z", "lastSeen": "2025-01-02T00:00:00Z"}],
    "steamIds": [],
    "playfabIds": [],
    "unityIds": [],
    "ipAddresses": [{"value": "1.2.3.4", "firstSeen": "2025-01-01T00:00:00Z", "lastSeen": "2025-01-01T00:00:00Z"}],
    "firstSeen": "2025-01-01T00:00:00Z",
    "lastSeen": "2025-01-02T00:00:00Z",
    "permissionLevel": 3
  }
}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	entry, ok := s.Get("abc")
	if !ok || entry.DisplayName() != "Bob" || entry.IPAddress() != "1.2.3.4" || entry.PermissionLevel != 3 {
		t.Fatalf("Get() = %+v, %v", entry, ok)
	}

	if err := s.SetLevel("abc", 4); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("rewritten file is not JSON: %v", err)
	}
	if decoded["abc"]["permissionLevel"].(float64) != 4 {
		t.Fatalf("permissionLevel not rewritten: %v", decoded["abc"])
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitors.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := NewStore(path).Load(); err == nil || !strings.Contains(err.Error(), "parse roster") {
		t.Fatalf("Load err = %v", err)
	}
}

func TestFind(t *testing.T) {
	s := NewStore("")
	clock, advance := fixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	s.now = clock
	for _, p := range []struct{ id, name string }{
		{"epic-1", "Alice"},
		{"epic-2", "Bobert"},
		{"epic-3", "Charlie"},
		{"epic-4", "Bob"},
	} {
		advance(time.Second)
		if _, err := s.Join(p.id, VisitorEntry{DisplayNames: names(p.name)}); err != nil {
			t.Fatalf("Join: %v", err)
		}
	}

	tests := []struct {
		query  string
		wantID string
		found  bool
	}{
		{query: "epic-3", wantID: "epic-3", found: true},
		{query: "alice", wantID: "epic-1", found: true},
		{query: "bbrt", wantID: "epic-2", found: true},
		{query: "chr", wantID: "epic-3", found: true},
		{query: "Bib", wantID: "epic-4", found: true},
		{query: "alcie", wantID: "epic-1", found: true},
		{query: "zzz", found: false},
		{query: "Zed", found: false},
		{query: "   ", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := s.Find(tt.query)
			if ok != tt.found {
				t.Fatalf("Find(%q) found = %v, want %v", tt.query, ok, tt.found)
			}
			if ok && got.ID != tt.wantID {
				t.Fatalf("Find(%q) = %s, want %s", tt.query, got.ID, tt.wantID)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "bob", 3},
		{"bib", "bob", 1},
		{"kitten", "sitting", 3},
		{"界a", "界b", 1},
	}
	for _, tt := range tests {
		if got := levenshtein([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Fatalf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestWatchReloadsExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitors.json")
	s := NewStore(path)
	if _, err := s.Join("abc", VisitorEntry{DisplayNames: names("Bob")}); err != nil {
		t.Fatalf("Join: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		})
	}()

	edited := `{"abc": {"displayNames": [{"value": "Bob", "firstSeen": "2025-01-01T00:00:00Z", "lastSeen": "2025-01-01T00:00:00Z"}], "permissionLevel": 9}}`
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		select {
		case <-reloaded:
			break wait
		case <-tick.C:
			if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
		case <-deadline:
			t.Fatalf("roster was not reloaded")
		}
	}

	if s.PermissionLevel("abc") != 9 {
		t.Fatalf("PermissionLevel after reload = %d, want 9", s.PermissionLevel("abc"))
	}
	if !s.IsConnected("abc") {
		t.Fatalf("reload must preserve connected set")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned %v", err)
	}
}
