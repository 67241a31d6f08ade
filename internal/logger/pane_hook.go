package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// PaneHook mirrors log entries into the log pane so supervisor events show up next to
// the server output. Only entries carrying the "pane" field are forwarded; everything
// else stays in the log file.
type PaneHook struct {
	sink   io.Writer
	levels []logrus.Level
}

// PaneField marks an entry as visible in the log pane.
const PaneField = "pane"

// NewPaneHook 创建 hook；level 以下的日志不会转发。
// sink 每次收到以换行结尾的文本，多行消息由 sink 自行切分，必须可并发调用。
func NewPaneHook(sink io.Writer, level logrus.Level) *PaneHook {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= level {
			levels = append(levels, l)
		}
	}
	return &PaneHook{sink: sink, levels: levels}
}

// Levels 实现 logrus.Hook。
func (h *PaneHook) Levels() []logrus.Level {
	return h.levels
}

// Fire 实现 logrus.Hook。
func (h *PaneHook) Fire(entry *logrus.Entry) error {
	if h == nil || h.sink == nil || entry == nil {
		return nil
	}
	if visible, ok := entry.Data[PaneField].(bool); !ok || !visible {
		return nil
	}
	_, err := io.WriteString(h.sink, paneText(entry)+"\n")
	return err
}

// Pane 返回一个会被 PaneHook 转发的 entry。
func Pane(entry *LogEntry) *LogEntry {
	if entry == nil {
		entry = Entry()
	}
	return entry.WithField(PaneField, true)
}

func paneText(entry *logrus.Entry) string {
	msg := strings.TrimRight(entry.Message, "\n")
	switch entry.Level {
	case logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel:
		return msg
	default:
		return fmt.Sprintf("[%s] %s", strings.ToUpper(entry.Level.String()), msg)
	}
}

// AttachPane 将 PaneHook 挂到全局 logger。
func AttachPane(sink io.Writer) {
	root().AddHook(NewPaneHook(sink, logrus.InfoLevel))
}
