package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// ServerPhase 枚举了状态指示器可显示的服务器阶段。
type ServerPhase int

const (
	// PhaseStarting 表示子进程尚未启动或正在启动。
	PhaseStarting ServerPhase = iota
	// PhaseWaiting 表示子进程已运行，等待其连接管道，计时器累加。
	PhaseWaiting
	// PhaseConnected 表示管道已连接，计时器累加。
	PhaseConnected
	// PhaseExited 表示子进程已退出，计时停止。
	PhaseExited
	// PhaseFailed 表示子进程异常退出或启动失败。
	PhaseFailed
)

func (p ServerPhase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseWaiting:
		return "waiting"
	case PhaseConnected:
		return "connected"
	case PhaseExited:
		return "exited"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (p ServerPhase) defaultHeader() string {
	switch p {
	case PhaseStarting:
		return "Starting server"
	case PhaseWaiting:
		return "Waiting for server to connect"
	case PhaseConnected:
		return "Server running"
	case PhaseExited:
		return "Server exited"
	case PhaseFailed:
		return "Server stopped with an error"
	default:
		return ""
	}
}

func (p ServerPhase) tracksElapsed() bool {
	return p == PhaseWaiting || p == PhaseConnected
}

func (p ServerPhase) valid() bool {
	return p >= PhaseStarting && p <= PhaseFailed
}

// StatusIndicatorOptions 控制指示器的初始化行为。
type StatusIndicatorOptions struct {
	Phase             ServerPhase
	AnimationsEnabled bool
	Clock             func() time.Time
}

// StatusIndicator 渲染服务器状态行（spinner + 阶段 + 运行时长 + 对局状态）。
type StatusIndicator struct {
	header            string
	detail            string
	phase             ServerPhase
	animationsEnabled bool

	elapsedRunning time.Duration
	lastResumeAt   time.Time
	paused         bool

	clock func() time.Time
}

// NewStatusIndicator 构造指示器，默认处于 PhaseStarting。
func NewStatusIndicator(opts StatusIndicatorOptions) *StatusIndicator {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	phase := opts.Phase
	if !phase.valid() {
		phase = PhaseStarting
	}
	w := &StatusIndicator{
		header:            phase.defaultHeader(),
		phase:             phase,
		animationsEnabled: opts.AnimationsEnabled,
		clock:             clock,
		lastResumeAt:      clock(),
	}
	if !phase.tracksElapsed() {
		w.paused = true
	}
	return w
}

// Phase 返回当前阶段。
func (w *StatusIndicator) Phase() ServerPhase {
	return w.phase
}

// SetPhase 切换阶段并据此暂停或继续计时。
func (w *StatusIndicator) SetPhase(phase ServerPhase) {
	if w == nil || !phase.valid() {
		return
	}
	now := w.now()
	if phase.tracksElapsed() && w.paused {
		w.resumeTimerAt(now)
	} else if !phase.tracksElapsed() && !w.paused {
		w.pauseTimerAt(now)
	}
	w.phase = phase
	w.header = phase.defaultHeader()
}

// UpdateHeader 覆盖标题文本，例如带上退出码。
func (w *StatusIndicator) UpdateHeader(header string) {
	if w == nil {
		return
	}
	w.header = header
}

// SetDetail 设置附加信息（对局状态、在线人数）。
func (w *StatusIndicator) SetDetail(detail string) {
	if w == nil {
		return
	}
	w.detail = detail
}

// Render 绘制一行状态，按单元格宽度截断。
func (w *StatusIndicator) Render(width int) string {
	if w == nil || width <= 0 {
		return ""
	}
	now := w.now()
	parts := []string{w.spinnerFrame(now)}
	if w.header != "" {
		parts = append(parts, w.header)
	}
	hint := fmt.Sprintf("(%s)", fmtElapsedCompact(w.elapsedSecondsAt(now)))
	if w.detail != "" {
		hint = fmt.Sprintf("(%s · %s)", fmtElapsedCompact(w.elapsedSecondsAt(now)), w.detail)
	}
	text := strings.Join(parts, " ")
	if runewidth.StringWidth(text) >= width {
		return runewidth.Truncate(text, width, "")
	}
	hint = runewidth.Truncate(hint, width-runewidth.StringWidth(text)-1, "")
	if hint == "" {
		return text
	}
	return text + " " + lipgloss.NewStyle().Faint(true).Render(hint)
}

func (w *StatusIndicator) now() time.Time {
	if w.clock != nil {
		return w.clock()
	}
	return time.Now()
}

func (w *StatusIndicator) pauseTimerAt(now time.Time) {
	if w.paused {
		return
	}
	w.elapsedRunning += now.Sub(w.lastResumeAt)
	w.paused = true
}

func (w *StatusIndicator) resumeTimerAt(now time.Time) {
	if !w.paused {
		return
	}
	w.lastResumeAt = now
	w.paused = false
}

func (w *StatusIndicator) elapsedDurationAt(now time.Time) time.Duration {
	if w.paused {
		return w.elapsedRunning
	}
	return w.elapsedRunning + now.Sub(w.lastResumeAt)
}

func (w *StatusIndicator) elapsedSecondsAt(now time.Time) uint64 {
	return uint64(w.elapsedDurationAt(now).Seconds())
}

func (w *StatusIndicator) spinnerFrame(now time.Time) string {
	switch w.phase {
	case PhaseExited:
		return "■"
	case PhaseFailed:
		return "!"
	case PhaseConnected:
		return "●"
	}
	if w.animationsEnabled {
		frames := []string{"-", "\\", "|", "/"}
		idx := int(now.UnixMilli()/120) % len(frames)
		return frames[idx]
	}
	return "•"
}

// fmtElapsedCompact 将秒数格式化为紧凑字符串。
func fmtElapsedCompact(elapsedSecs uint64) string {
	switch {
	case elapsedSecs < 60:
		return fmt.Sprintf("%ds", elapsedSecs)
	case elapsedSecs < 3600:
		minutes := elapsedSecs / 60
		seconds := elapsedSecs % 60
		return fmt.Sprintf("%dm %02ds", minutes, seconds)
	default:
		hours := elapsedSecs / 3600
		minutes := (elapsedSecs % 3600) / 60
		seconds := elapsedSecs % 60
		return fmt.Sprintf("%dh %02dm %02ds", hours, minutes, seconds)
	}
}
