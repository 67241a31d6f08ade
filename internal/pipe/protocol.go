package pipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tabg-cli/internal/roster"
)

// MessageType 是入站 JSON 的 type 字段。
type MessageType string

const (
	TypePlayerJoined MessageType = "PlayerJoined"
	TypePlayerLeft   MessageType = "PlayerLeft"
	TypeGameState    MessageType = "GameState"
)

// Message 是解码后的结构化入站消息。
type Message struct {
	Type         MessageType
	EpicUserName string
	VisitorInfo  roster.VisitorEntry
	State        string
}

type envelope struct {
	Type         string          `json:"type"`
	EpicUserName string          `json:"epicUserName"`
	VisitorInfo  json.RawMessage `json:"visitorInfo"`
	State        string          `json:"state"`
}

var errMissingPlayer = errors.New("missing epicUserName")

// Decode 解析一行入站文本。
// 返回 ok=false, err=nil 表示应当作普通日志行；err 非空表示看起来是 JSON 但无法解析，应丢弃。
func Decode(line string) (Message, bool, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Message{}, false, nil
	}
	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Message{}, false, err
	}
	msg := Message{Type: MessageType(env.Type), EpicUserName: env.EpicUserName, State: env.State}
	switch msg.Type {
	case TypePlayerJoined:
		if msg.EpicUserName == "" {
			return Message{}, false, fmt.Errorf("%s: %w", msg.Type, errMissingPlayer)
		}
		if len(env.VisitorInfo) > 0 && string(env.VisitorInfo) != "null" {
			if err := json.Unmarshal(env.VisitorInfo, &msg.VisitorInfo); err != nil {
				return Message{}, false, fmt.Errorf("%s visitorInfo: %w", msg.Type, err)
			}
		}
	case TypePlayerLeft:
		if msg.EpicUserName == "" {
			return Message{}, false, fmt.Errorf("%s: %w", msg.Type, errMissingPlayer)
		}
	case TypeGameState:
		if strings.TrimSpace(msg.State) == "" {
			return Message{}, false, fmt.Errorf("%s: missing state", msg.Type)
		}
	default:
		return Message{}, false, nil
	}
	return msg, true, nil
}

// Handler 接收入站行的路由结果。实现必须可在接收 goroutine 中调用。
type Handler interface {
	HandleText(line string)
	HandleMessage(msg Message)
	HandleParseError(line string, err error)
}

// Route 解码一行并分发给 handler。
func Route(line string, h Handler) {
	msg, ok, err := Decode(line)
	switch {
	case err != nil:
		h.HandleParseError(line, err)
	case ok:
		h.HandleMessage(msg)
	default:
		h.HandleText(line)
	}
}
