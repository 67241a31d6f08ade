package pipe

import (
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantOK  bool
		wantErr bool
		check   func(t *testing.T, msg Message)
	}{
		{
			name:   "player joined",
			line:   `{"type":"PlayerJoined","epicUserName":"abc","visitorInfo":{"displayNames":[{"value":"Bob","firstSeen":"2025-01-01T00:00:00Z","lastSeen":"2025-01-01T00:00:00Z"}],"permissionLevel":1}}`,
			wantOK: true,
			check: func(t *testing.T, msg Message) {
				if msg.Type != TypePlayerJoined || msg.EpicUserName != "abc" {
					t.Fatalf("msg = %+v", msg)
				}
				if msg.VisitorInfo.DisplayName() != "Bob" || msg.VisitorInfo.PermissionLevel != 1 {
					t.Fatalf("visitorInfo = %+v", msg.VisitorInfo)
				}
			},
		},
		{
			name:   "player joined with offset-less timestamps",
			line:   `{"type":"PlayerJoined","epicUserName":"abc","visitorInfo":{"displayNames":[{"value":"Bob","firstSeen":"2024-05-01T10:00:00.1234567","lastSeen":"2024-05-01T10:00:00"}],"firstSeen":"2024-05-01T10:00:00.1234567","lastSeen":null,"permissionLevel":2}}`,
			wantOK: true,
			check: func(t *testing.T, msg Message) {
				info := msg.VisitorInfo
				if info.DisplayName() != "Bob" || info.PermissionLevel != 2 {
					t.Fatalf("visitorInfo = %+v", info)
				}
				want := time.Date(2024, 5, 1, 10, 0, 0, 123456700, time.UTC)
				if !info.FirstSeen.Equal(want) || !info.DisplayNames[0].FirstSeen.Equal(want) {
					t.Fatalf("FirstSeen = %v / %v, want %v", info.FirstSeen, info.DisplayNames[0].FirstSeen, want)
				}
				if !info.LastSeen.IsZero() {
					t.Fatalf("null lastSeen should decode to zero, got %v", info.LastSeen)
				}
			},
		},
		{name: "bad timestamp", line: `{"type":"PlayerJoined","epicUserName":"x","visitorInfo":{"firstSeen":"yesterday"}}`, wantErr: true},
		{
			name:   "player left",
			line:   `  {"type":"PlayerLeft","epicUserName":"abc"}  `,
			wantOK: true,
			check: func(t *testing.T, msg Message) {
				if msg.Type != TypePlayerLeft || msg.EpicUserName != "abc" {
					t.Fatalf("msg = %+v", msg)
				}
			},
		},
		{
			name:   "game state",
			line:   `{"type":"GameState","state":"WaitingForPlayers"}`,
			wantOK: true,
			check: func(t *testing.T, msg Message) {
				if msg.State != "WaitingForPlayers" {
					t.Fatalf("msg = %+v", msg)
				}
			},
		},
		{name: "plain text", line: "Loading level 3...", wantOK: false},
		{name: "json array is plain text", line: `[1,2,3]`, wantOK: false},
		{name: "unknown type is plain text", line: `{"type":"Weather","rain":true}`, wantOK: false},
		{name: "json without type is plain text", line: `{"foo":1}`, wantOK: false},
		{name: "malformed json", line: `{"type":"PlayerJoined",`, wantErr: true},
		{name: "joined without player", line: `{"type":"PlayerJoined"}`, wantErr: true},
		{name: "left without player", line: `{"type":"PlayerLeft"}`, wantErr: true},
		{name: "bad visitor info", line: `{"type":"PlayerJoined","epicUserName":"x","visitorInfo":{"displayNames":"nope"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok, err := Decode(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode err = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("Decode ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.check != nil {
				tt.check(t, msg)
			}
		})
	}
}

type recordingHandler struct {
	texts    []string
	messages []Message
	errors   []string
}

func (h *recordingHandler) HandleText(line string)     { h.texts = append(h.texts, line) }
func (h *recordingHandler) HandleMessage(msg Message)  { h.messages = append(h.messages, msg) }
func (h *recordingHandler) HandleParseError(line string, _ error) {
	h.errors = append(h.errors, line)
}

func TestRoute(t *testing.T) {
	h := &recordingHandler{}
	Route("hello", h)
	Route(`{"type":"PlayerLeft","epicUserName":"abc"}`, h)
	Route(`{broken`, h)

	if len(h.texts) != 1 || h.texts[0] != "hello" {
		t.Fatalf("texts = %v", h.texts)
	}
	if len(h.messages) != 1 || h.messages[0].Type != TypePlayerLeft {
		t.Fatalf("messages = %+v", h.messages)
	}
	if len(h.errors) != 1 || h.errors[0] != "{broken" {
		t.Fatalf("errors = %v", h.errors)
	}
}

func TestHandleString(t *testing.T) {
	if got := HandleString(3, 4); got != "3|4" {
		t.Fatalf("HandleString = %q", got)
	}
}
