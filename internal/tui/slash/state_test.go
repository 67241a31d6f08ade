package slash

import (
	"strings"
	"testing"
)

func testItems() []Item {
	return []Item{
		{Name: "start", Usage: "start [seconds]", Description: "Starts the game."},
		{Name: "setlevel", Usage: "setlevel <name|id> <level>", Description: "Sets a player's permission level."},
		{Name: "players", Description: "Lists connected players."},
		{Name: "help", Description: "Lists commands."},
	}
}

func TestSyncInputOpensOnCommandToken(t *testing.T) {
	tests := []struct {
		value    string
		open     bool
		firstHit string
	}{
		{value: "/", open: true, firstHit: "help"},
		{value: "/sta", open: true, firstHit: "start"},
		{value: "/pl", open: true, firstHit: "players"},
		{value: "/start 10", open: false},
		{value: "say hi", open: false},
		{value: "", open: false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			state := NewState(Options{Items: testItems()})
			state.SyncInput(tt.value)
			if state.Open() != tt.open {
				t.Fatalf("Open() = %v, want %v", state.Open(), tt.open)
			}
			if !tt.open {
				return
			}
			item, ok := state.Selected()
			if !ok || item.Name != tt.firstHit {
				t.Fatalf("Selected() = %+v, want %s", item, tt.firstHit)
			}
		})
	}
}

func TestHandleKeyTabCompletes(t *testing.T) {
	state := NewState(Options{Items: testItems()})
	state.SyncInput("/setl")
	action, handled := state.HandleKey("tab")
	if !handled || action.Kind != ActionInsert {
		t.Fatalf("tab = %+v handled=%v", action, handled)
	}
	if action.NewValue != "/setlevel " || action.CursorColumn != len("/setlevel ") {
		t.Fatalf("inserted %q cursor %d", action.NewValue, action.CursorColumn)
	}
	if state.Open() {
		t.Fatalf("popup should close after completion")
	}
}

func TestHandleKeyEnterSubmitsSelection(t *testing.T) {
	state := NewState(Options{Prefix: "!", Items: testItems()})
	state.SyncInput("!")
	if _, handled := state.HandleKey("down"); !handled {
		t.Fatalf("down not handled")
	}
	action, handled := state.HandleKey("enter")
	if !handled || action.Kind != ActionSubmit || action.SubmitText != "!players" {
		t.Fatalf("enter = %+v", action)
	}
}

func TestHandleKeyEnterWithoutMatchFallsThrough(t *testing.T) {
	state := NewState(Options{Items: testItems()})
	state.SyncInput("/zzz")
	if !state.Open() {
		t.Fatalf("popup should be open with no matches")
	}
	if _, handled := state.HandleKey("enter"); handled {
		t.Fatalf("enter with no match should fall through")
	}
	if state.Open() {
		t.Fatalf("popup should close")
	}
}

func TestSelectionWrapsAndEscCloses(t *testing.T) {
	state := NewState(Options{Items: testItems()})
	state.SyncInput("/")
	state.HandleKey("up")
	item, _ := state.Selected()
	if item.Name != "start" {
		t.Fatalf("up from first should wrap to last, got %s", item.Name)
	}
	if action, _ := state.HandleKey("esc"); action.Kind != ActionClose || state.Open() {
		t.Fatalf("esc should close")
	}
	if _, handled := state.HandleKey("down"); handled {
		t.Fatalf("closed popup should not handle keys")
	}
}

func TestViewShowsUsage(t *testing.T) {
	state := NewState(Options{Items: testItems(), MaxLines: 2})
	state.SyncInput("/s")
	view := state.View(80)
	if !strings.Contains(view, "/start [seconds]") && !strings.Contains(view, "/setlevel <name|id> <level>") {
		t.Fatalf("view missing usage: %q", view)
	}
	if state.Height() > 2 {
		t.Fatalf("Height() = %d, want <= 2", state.Height())
	}
}
