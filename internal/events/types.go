package events

import "time"

// EventType 描述 EQ 中分发的事件类型。
type EventType string

const (
	EventProcessStarted EventType = "process.started"
	EventProcessExited  EventType = "process.exited"
	EventPipeConnected  EventType = "pipe.connected"
	EventPipeClosed     EventType = "pipe.closed"
	EventPlayerJoined   EventType = "player.joined"
	EventPlayerLeft     EventType = "player.left"
	EventGameState      EventType = "game.state"
	// EventQuit 请求 UI 退出（例如 /quit 或信号）。
	EventQuit EventType = "app.quit"
)

// ProcessExit 描述子进程结束时的状态。
type ProcessExit struct {
	State    string
	ExitCode int
	Err      string
}

// PlayerChange 描述一次进出服务器事件。
type PlayerChange struct {
	PlayerID    string
	DisplayName string
}

// Event 是 EQ 中传递的唯一消息格式。
// Payload 的具体结构由 Type 决定。
type Event struct {
	Type      EventType
	SessionID string
	Timestamp time.Time
	Payload   any
}
