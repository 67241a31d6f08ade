package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tabg-cli/internal/commands"
	"tabg-cli/internal/config"
	"tabg-cli/internal/events"
	"tabg-cli/internal/history"
	"tabg-cli/internal/logger"
	"tabg-cli/internal/pipe"
	"tabg-cli/internal/roster"
	"tabg-cli/internal/session"
	"tabg-cli/internal/supervisor"
)

// ErrNotRunning 表示服务器子进程尚未启动。
var ErrNotRunning = errors.New("server is not running")

// keepSessions 是保留的运行记录条数。
const keepSessions = 50

// Options 汇总 App 的协作对象。Queue 和 Roster 必填。
type Options struct {
	Config   config.Config
	Queue    *events.IngestQueue
	Events   *events.EventQueue
	Roster   *roster.Store
	Sessions *session.Store
	History  *history.Store
	// WriteClipboard 覆盖 /copy 的剪贴板写入，测试用。
	WriteClipboard func(text string) error
}

// App 把子进程、管道协议、访客名册和本地命令组合在一起。
// 它实现 pipe.Handler 和 commands.Game，界面通过 Submit 提交输入。
type App struct {
	cfg      config.Config
	queue    *events.IngestQueue
	events   *events.EventQueue
	roster   *roster.Store
	sessions *session.Store
	history  *history.Store

	dispatcher *commands.Dispatcher
	sendLine   func(line string) error
	log        *logger.LogEntry

	mu      sync.Mutex
	sup     *supervisor.Supervisor
	state   commands.GameState
	record  *session.Record
	console commands.Console
	cancel  context.CancelFunc

	background sync.WaitGroup
	shutdown   sync.Once
	shutErr    error
}

// New 创建 App 并注册内置命令。
func New(opts Options) (*App, error) {
	if opts.Queue == nil {
		return nil, errors.New("app requires an ingest queue")
	}
	if opts.Roster == nil {
		return nil, errors.New("app requires a visitor roster")
	}
	a := &App{
		cfg:      opts.Config,
		queue:    opts.Queue,
		events:   opts.Events,
		roster:   opts.Roster,
		sessions: opts.Sessions,
		history:  opts.History,
		log:      logger.Named("app"),
	}
	a.sendLine = a.sendToServer
	a.dispatcher = commands.NewDispatcher(commands.NewRegistry(), opts.Roster, opts.Config.CommandPrefix)
	err := commands.RegisterBuiltins(a.dispatcher, commands.Deps{
		Game:             a,
		Roster:           opts.Roster,
		Console:          a,
		DefaultCountdown: opts.Config.DefaultCountdown,
		WriteClipboard:   opts.WriteClipboard,
		Permissions:      opts.Config.Permissions,
	})
	if err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	return a, nil
}

// Dispatcher 返回本地命令分发器。
func (a *App) Dispatcher() *commands.Dispatcher {
	return a.dispatcher
}

// AttachConsole 设置 /clear、/copy、/wrap、/quit 操作的界面。
func (a *App) AttachConsole(c commands.Console) {
	a.mu.Lock()
	a.console = c
	a.mu.Unlock()
}

// Supervisor 返回当前子进程的 Supervisor，未启动时为 nil。
func (a *App) Supervisor() *supervisor.Supervisor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sup
}

// Start 加载名册、启动名册监听并拉起服务器子进程。
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	if a.sup != nil {
		a.mu.Unlock()
		cancel()
		return supervisor.ErrAlreadyStarted
	}
	sup := supervisor.New(supervisor.Options{
		Queue:      a.queue,
		Events:     a.events,
		PipeMode:   a.cfg.PipeMode,
		UsePTY:     a.cfg.UsePTY,
		OnPipeLine: func(line string) { pipe.Route(line, a) },
	})
	a.sup = sup
	a.cancel = cancel
	a.mu.Unlock()

	a.announceLastRun()
	if err := a.roster.Load(); err != nil {
		logger.Pane(a.log).Warnf("Failed to load visitor roster: %v", err)
	}
	a.startRosterWatch(runCtx)

	err := sup.Start(runCtx, a.cfg.ServerPath, a.cfg.ServerArgs)
	a.beginRecord(sup, err)

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		<-sup.Done()
		a.onExit(sup)
	}()
	return err
}

func (a *App) startRosterWatch(ctx context.Context) {
	path := a.roster.Path()
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		a.log.Warnf("create roster dir: %v", err)
		return
	}
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		err := a.roster.Watch(ctx, func() {
			logger.Pane(a.log).Info("Visitor roster reloaded from disk.")
		})
		if err != nil {
			a.log.Warnf("roster watch stopped: %v", err)
		}
	}()
}

// Submit 处理输入框提交的一行：命令前缀开头的交给本地分发器，其余发给服务器。
func (a *App) Submit(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if a.dispatcher.IsCommand(line) {
		a.remember(line, history.KindCommand)
		a.report(a.dispatcher.Dispatch(ctx, line, nil))
		return
	}
	a.remember(line, history.KindServer)
	if err := a.Send(line); err != nil {
		logger.Pane(a.log).Warnf("Failed to send command: %v", err)
	}
}

// Send 通过管道把一行原样发给服务器。
func (a *App) Send(line string) error {
	return a.sendLine(line)
}

func (a *App) sendToServer(line string) error {
	sup := a.Supervisor()
	if sup == nil {
		return ErrNotRunning
	}
	return sup.Send(line)
}

func (a *App) remember(line string, kind history.Kind) {
	if a.history == nil {
		return
	}
	if err := a.history.Append(line, kind); err != nil {
		a.log.Debugf("append history: %v", err)
	}
}

// report 把命令结果逐行写入日志面板。
func (a *App) report(res commands.Result) {
	if res.Message == "" {
		return
	}
	for _, line := range strings.Split(res.Message, "\n") {
		a.queue.Push(events.SourceSystem, line)
	}
}

// GameState 实现 commands.Game。
func (a *App) GameState() commands.GameState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// StartCountdown 实现 commands.Game：让服务器开始倒计时。
func (a *App) StartCountdown(seconds int) error {
	return a.Send(fmt.Sprintf("start %d", seconds))
}

// HandleText 实现 pipe.Handler。
func (a *App) HandleText(line string) {
	a.queue.Push(events.SourcePipe, line)
}

// HandleParseError 实现 pipe.Handler。
func (a *App) HandleParseError(line string, err error) {
	logger.Pane(a.log.WithField("error", err.Error())).Warnf("Failed to parse message from server: %s", line)
}

// HandleMessage 实现 pipe.Handler。
func (a *App) HandleMessage(msg pipe.Message) {
	log := a.log.WithField(logger.TypeField, string(msg.Type))
	switch msg.Type {
	case pipe.TypePlayerJoined:
		entry, err := a.roster.Join(msg.EpicUserName, msg.VisitorInfo)
		if errors.Is(err, roster.ErrEmptyID) {
			logger.Pane(log).Warnf("Ignoring player join without an id.")
			return
		}
		if err != nil {
			logger.Pane(log).Warnf("Failed to save visitor roster: %v", err)
		}
		a.trackPlayer(msg.EpicUserName)
		name := entry.DisplayName()
		logger.Pane(log).Infof("Player joined: %s", playerLabel(msg.EpicUserName, name))
		a.events.Emit(events.EventPlayerJoined, events.PlayerChange{PlayerID: msg.EpicUserName, DisplayName: name})
	case pipe.TypePlayerLeft:
		entry, err := a.roster.Leave(msg.EpicUserName)
		if err != nil && !errors.Is(err, roster.ErrUnknownPlayer) {
			logger.Pane(log).Warnf("Failed to save visitor roster: %v", err)
		}
		name := entry.DisplayName()
		logger.Pane(log).Infof("Player left: %s", playerLabel(msg.EpicUserName, name))
		a.events.Emit(events.EventPlayerLeft, events.PlayerChange{PlayerID: msg.EpicUserName, DisplayName: name})
	case pipe.TypeGameState:
		state := commands.GameState(msg.State)
		a.mu.Lock()
		changed := a.state != state
		a.state = state
		a.mu.Unlock()
		if changed {
			log.Infof("game state: %s", state)
			a.events.Emit(events.EventGameState, string(state))
		}
	}
}

func playerLabel(id, name string) string {
	if name == "" || name == id {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

// announceLastRun 在写入本次记录之前提示上一次运行的结局。
func (a *App) announceLastRun() {
	if a.sessions == nil {
		return
	}
	last, err := a.sessions.Last()
	if err != nil {
		if !errors.Is(err, session.ErrNoSessions) {
			a.log.Debugf("read last session: %v", err)
		}
		return
	}
	logger.Pane(a.log.WithField("session", last.ID)).Infof("Last run: %s", last.Summary())
}

func (a *App) beginRecord(sup *supervisor.Supervisor, startErr error) {
	if a.sessions == nil {
		return
	}
	rec := &session.Record{
		ID:         sup.Token(),
		ServerPath: a.cfg.ServerPath,
		Args:       append([]string(nil), a.cfg.ServerArgs...),
		PipeMode:   a.cfg.PipeMode,
		PID:        sup.PID(),
		Started:    time.Now(),
	}
	if startErr != nil {
		rec.Finish(supervisor.ExitedWithError.String(), -1, rec.Started)
	}
	a.mu.Lock()
	a.record = rec
	a.mu.Unlock()
	a.saveRecord()
	if _, err := a.sessions.Prune(keepSessions); err != nil {
		a.log.Debugf("prune sessions: %v", err)
	}
}

func (a *App) trackPlayer(id string) {
	a.mu.Lock()
	added := a.record != nil && a.record.AddPlayer(id)
	a.mu.Unlock()
	if added {
		a.saveRecord()
	}
}

// saveRecord 复制记录后在锁外写盘。
func (a *App) saveRecord() {
	if a.sessions == nil {
		return
	}
	a.mu.Lock()
	if a.record == nil {
		a.mu.Unlock()
		return
	}
	snap := *a.record
	snap.Players = append([]string(nil), a.record.Players...)
	a.mu.Unlock()
	if err := a.sessions.Save(&snap); err != nil {
		a.log.Warnf("save session record: %v", err)
	}
}

func (a *App) onExit(sup *supervisor.Supervisor) {
	a.mu.Lock()
	a.state = commands.GameStateUnknown
	if a.record != nil && a.record.Ended == nil {
		a.record.Finish(sup.State().String(), sup.ExitCode(), time.Now())
	}
	a.mu.Unlock()
	a.roster.ResetConnected()
	a.saveRecord()
}

// Shutdown 终止服务器并停止后台任务。可重复调用。
func (a *App) Shutdown() error {
	a.shutdown.Do(func() {
		a.mu.Lock()
		sup := a.sup
		cancel := a.cancel
		a.mu.Unlock()
		if sup != nil {
			a.shutErr = sup.Terminate(a.cfg.KillTimeout())
		}
		if cancel != nil {
			cancel()
		}
		a.background.Wait()
	})
	return a.shutErr
}

// ClearLog 实现 commands.Console。
func (a *App) ClearLog() {
	if c := a.attached(); c != nil {
		c.ClearLog()
	}
}

// ToggleWordWrap 实现 commands.Console。
func (a *App) ToggleWordWrap() bool {
	if c := a.attached(); c != nil {
		return c.ToggleWordWrap()
	}
	return false
}

// TailLines 实现 commands.Console。
func (a *App) TailLines(n int) []string {
	if c := a.attached(); c != nil {
		return c.TailLines(n)
	}
	return nil
}

// Quit 实现 commands.Console。
func (a *App) Quit() {
	if c := a.attached(); c != nil {
		c.Quit()
	}
}

func (a *App) attached() commands.Console {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.console
}
