package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tabg-cli/internal/commands"
	"tabg-cli/internal/config"
	"tabg-cli/internal/events"
	"tabg-cli/internal/roster"
	"tabg-cli/internal/supervisor"
	"tabg-cli/internal/tui/render"
	"tabg-cli/internal/tui/slash"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Backend 抽象应用层提交能力，避免 TUI 与实现耦合。
type Backend interface {
	Submit(ctx context.Context, line string)
	AttachConsole(c commands.Console)
	Dispatcher() *commands.Dispatcher
	GameState() commands.GameState
}

// RosterView 是访客名册的只读视图。
type RosterView interface {
	All() []roster.Player
}

type Options struct {
	Context context.Context
	Backend Backend
	Queue   *events.IngestQueue
	Events  *events.EventQueue
	Roster  RosterView
	Config  config.Config
	// History 是上次会话留下的输入，按时间先后排列。
	History []string
	Clock   func() time.Time
}

// Pane 是主区域当前展示的面板，两个面板互斥。
type Pane int

const (
	PaneTerminal Pane = iota
	PaneVisitorLog
)

func (p Pane) String() string {
	if p == PaneVisitorLog {
		return "Visitor Log"
	}
	return "Terminal"
}

// rosterRefreshInterval 是名册表格的兜底刷新周期，覆盖外部编辑文件的情况。
const rosterRefreshInterval = time.Second

type tickMsg time.Time

type serverEventMsg struct {
	Event events.Event
}

var (
	accentColor   = lipgloss.Color("#8BE0FF")
	mutedColor    = lipgloss.Color("#7D7A85")
	activeTab     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0B1021")).Background(accentColor).Padding(0, 1)
	inactiveTab   = lipgloss.NewStyle().Foreground(mutedColor).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	popupStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderTop(true).BorderForeground(lipgloss.Color("#5E6472"))
	emptyRowStyle = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
)

type Model struct {
	ctx     context.Context
	backend Backend
	queue   *events.IngestQueue
	roster  RosterView
	eventCh <-chan events.Event

	view      *render.LogView
	input     textinput.Model
	visitors  table.Model
	popup     *slash.State
	history   *promptHistory
	indicator *StatusIndicator
	clock     func() time.Time

	interval      time.Duration
	pane          Pane
	gameState     commands.GameState
	online        int
	rosterDirty   bool
	rosterRefresh time.Time
	quitting      bool
	width         int
	height        int
}

// New 构造界面模型，并把自己挂到 Backend 上作为 /clear、/copy、/wrap、/quit 的执行者。
// 事件订阅在这里完成，应在服务器启动前调用。
func New(opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg := opts.Config
	interval := cfg.TickInterval()
	if interval <= 0 {
		interval = config.Default().TickInterval()
	}

	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = "Type a server command, or / for local commands"
	ti.CharLimit = 0
	ti.Width = 78
	ti.Focus()

	tbl := table.New(
		table.WithColumns(visitorColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(accentColor).BorderBottom(true).BorderStyle(lipgloss.NormalBorder())
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#0B1021")).Background(accentColor)
	tbl.SetStyles(styles)

	view := render.NewLogView(cfg.MaxLines)
	view.SetWordWrap(cfg.WordWrap)

	m := &Model{
		ctx:         ctx,
		backend:     opts.Backend,
		queue:       opts.Queue,
		roster:      opts.Roster,
		view:        view,
		input:       ti,
		visitors:    tbl,
		history:     newPromptHistory(opts.History, 0),
		indicator:   NewStatusIndicator(StatusIndicatorOptions{AnimationsEnabled: true, Clock: clock}),
		clock:       clock,
		interval:    interval,
		rosterDirty: true,
		width:       80,
		height:      24,
	}
	prefix := cfg.CommandPrefix
	if opts.Backend != nil {
		opts.Backend.AttachConsole(m)
		prefix = opts.Backend.Dispatcher().Prefix()
		m.gameState = opts.Backend.GameState()
	}
	m.popup = slash.NewState(slash.Options{Prefix: prefix, Items: m.commandItems(), MaxLines: 6})
	if opts.Events != nil {
		m.eventCh = opts.Events.Subscribe()
	}
	m.layout()
	return m
}

func (m *Model) commandItems() []slash.Item {
	if m.backend == nil {
		return nil
	}
	cmds := m.backend.Dispatcher().Registry().List(commands.ConsoleLevel)
	items := make([]slash.Item, 0, len(cmds))
	for _, cmd := range cmds {
		items = append(items, slash.Item{Name: cmd.Name, Usage: cmd.Usage, Description: cmd.Description})
	}
	return items
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.listenEvents(), textinput.Blink)
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) listenEvents() tea.Cmd {
	if m.eventCh == nil {
		return nil
	}
	ch := m.eventCh
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return serverEventMsg{Event: evt}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m.finish(cmds...)
	case tickMsg:
		m.drain()
		m.refreshRoster(false)
		cmds = append(cmds, m.tick())
		return m.finish(cmds...)
	case serverEventMsg:
		m.handleServerEvent(msg.Event)
		cmds = append(cmds, m.listenEvents())
		return m.finish(cmds...)
	case tea.MouseMsg:
		if m.pane == PaneTerminal {
			m.handleMouse(msg)
		}
		return m.finish(cmds...)
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			cmds = append(cmds, cmd)
			return m.finish(cmds...)
		}
	}

	if m.pane == PaneTerminal {
		var cmd tea.Cmd
		before := m.input.Value()
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		if m.input.Value() != before {
			m.history.ResetBrowsing()
			m.syncPopup()
		}
	}
	return m.finish(cmds...)
}

func (m *Model) finish(cmds ...tea.Cmd) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, tea.Quit
	}
	return m, tea.Batch(cmds...)
}

// drain 是唯一消费 IngestQueue 的地方：取出本周期全部行写入日志视图。
func (m *Model) drain() {
	if m.queue == nil {
		return
	}
	if batch := m.queue.DrainAll(); len(batch) > 0 {
		m.view.Flush(batch)
	}
	m.view.SetDropped(m.queue.Dropped())
}

func (m *Model) handleServerEvent(evt events.Event) {
	switch evt.Type {
	case events.EventProcessStarted:
		m.indicator.SetPhase(PhaseWaiting)
	case events.EventPipeConnected:
		m.indicator.SetPhase(PhaseConnected)
	case events.EventPipeClosed:
		if m.indicator.Phase() == PhaseConnected {
			m.indicator.SetPhase(PhaseWaiting)
			m.indicator.UpdateHeader("Server pipe closed")
		}
	case events.EventProcessExited:
		exit, _ := evt.Payload.(events.ProcessExit)
		phase := PhaseExited
		if exit.State == supervisor.ExitedWithError.String() {
			phase = PhaseFailed
		}
		m.indicator.SetPhase(phase)
		if exit.ExitCode >= 0 {
			m.indicator.UpdateHeader(fmt.Sprintf("Server %s (code %d)", exit.State, exit.ExitCode))
		}
		m.gameState = commands.GameStateUnknown
		m.rosterDirty = true
	case events.EventPlayerJoined, events.EventPlayerLeft:
		m.rosterDirty = true
	case events.EventGameState:
		if state, ok := evt.Payload.(string); ok {
			m.gameState = commands.GameState(state)
		}
	case events.EventQuit:
		m.quitting = true
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.view.Scroll().ScrollUp(render.WheelStep)
	case tea.MouseButtonWheelDown:
		m.view.Scroll().ScrollDown(render.WheelStep)
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	key := msg.String()
	if key == "ctrl+c" {
		m.quitting = true
		return nil, true
	}
	switch key {
	case "f1", "ctrl+t":
		m.selectPane(PaneTerminal)
		return nil, true
	case "f2", "ctrl+v":
		m.selectPane(PaneVisitorLog)
		return nil, true
	}

	if m.pane == PaneVisitorLog {
		if key == "esc" {
			m.selectPane(PaneTerminal)
			return nil, true
		}
		var cmd tea.Cmd
		m.visitors, cmd = m.visitors.Update(msg)
		return cmd, true
	}

	if action, handled := m.popup.HandleKey(key); handled {
		defer m.layout()
		switch action.Kind {
		case slash.ActionInsert:
			m.input.SetValue(action.NewValue)
			m.input.SetCursor(action.CursorColumn)
		case slash.ActionSubmit:
			m.input.Reset()
			m.submit(action.SubmitText)
		}
		return nil, true
	}

	switch key {
	case "enter":
		value := m.input.Value()
		m.input.Reset()
		m.popup.Close()
		m.layout()
		m.submit(value)
		return nil, true
	case "pgup":
		m.view.Scroll().PageUp()
		return nil, true
	case "pgdown":
		m.view.Scroll().PageDown()
		return nil, true
	case "home":
		m.view.Scroll().ScrollToTop()
		return nil, true
	case "end":
		m.view.Scroll().ScrollToBottom()
		return nil, true
	case "alt+up":
		m.view.Scroll().ScrollUp(1)
		return nil, true
	case "alt+down":
		m.view.Scroll().ScrollDown(1)
		return nil, true
	case "up":
		if text, ok := m.history.Prev(m.input.Value()); ok {
			m.setInput(text)
			return nil, true
		}
		m.view.Scroll().ScrollUp(1)
		return nil, true
	case "down":
		if text, ok := m.history.Next(); ok {
			m.setInput(text)
			return nil, true
		}
		m.view.Scroll().ScrollDown(1)
		return nil, true
	}
	return nil, false
}

func (m *Model) setInput(text string) {
	m.input.SetValue(text)
	m.input.CursorEnd()
	m.popup.Close()
	m.layout()
}

func (m *Model) submit(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	m.history.Add(line)
	if m.backend == nil {
		return
	}
	// 本地命令在这里同步执行，Console 回调因此只在 UI 协程上运行。
	m.backend.Submit(m.ctx, line)
}

func (m *Model) syncPopup() {
	before := m.popup.Height()
	m.popup.SyncInput(m.input.Value())
	if m.popup.Height() != before {
		m.layout()
	}
}

func (m *Model) selectPane(p Pane) {
	if m.pane == p {
		return
	}
	m.pane = p
	if p == PaneTerminal {
		m.input.Focus()
		m.visitors.Blur()
	} else {
		m.input.Blur()
		m.popup.Close()
		m.visitors.Focus()
		m.refreshRoster(true)
	}
	m.layout()
}

// Pane 返回当前面板。
func (m *Model) Pane() Pane {
	return m.pane
}

// bodyHeight 是主面板可用行数：去掉标签栏、状态栏和输入区（或提示行）。
func (m *Model) bodyHeight() int {
	h := m.height - 3
	if ph := m.popup.Height(); m.pane == PaneTerminal && ph > 0 {
		h -= ph + 1
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) layout() {
	width := m.width
	if width < 20 {
		width = 20
	}
	body := m.bodyHeight()
	m.view.Resize(width, body)
	m.input.Width = width - runewidth.StringWidth(m.input.Prompt) - 1
	tableHeight := body - 2
	if tableHeight < 1 {
		tableHeight = 1
	}
	m.visitors.SetColumns(visitorColumns(width))
	m.visitors.SetWidth(width)
	m.visitors.SetHeight(tableHeight)
}

func visitorColumns(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Level", Width: 5},
		{Title: "Status", Width: 7},
		{Title: "Last seen", Width: 16},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 2
	}
	rest := width - used - 4
	if rest < 20 {
		rest = 20
	}
	nameWidth := rest / 2
	idWidth := rest - nameWidth
	return append([]table.Column{
		{Title: "Name", Width: nameWidth},
		{Title: "Epic user", Width: idWidth},
	}, fixed...)
}

// refreshRoster 在名册变化或兜底周期到达时重建表格行。
func (m *Model) refreshRoster(force bool) {
	if m.roster == nil {
		return
	}
	now := m.clock()
	if !force && !m.rosterDirty && now.Sub(m.rosterRefresh) < rosterRefreshInterval {
		return
	}
	m.rosterDirty = false
	m.rosterRefresh = now

	players := m.roster.All()
	rows := make([]table.Row, 0, len(players))
	online := 0
	for _, p := range players {
		status := "offline"
		if p.Connected {
			status = "online"
			online++
		}
		lastSeen := ""
		if !p.LastSeen.IsZero() {
			lastSeen = p.LastSeen.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, table.Row{p.DisplayName, p.ID, fmt.Sprintf("%d", p.PermissionLevel), status, lastSeen})
	}
	m.online = online
	m.visitors.SetRows(rows)
	if cursor := m.visitors.Cursor(); cursor >= len(rows) && len(rows) > 0 {
		m.visitors.SetCursor(len(rows) - 1)
	}
}

func (m *Model) View() string {
	tabs := m.renderTabs()
	var body string
	if m.pane == PaneTerminal {
		parts := []string{m.view.View()}
		if m.popup.Open() {
			parts = append(parts, popupStyle.Width(m.width).Render(m.popup.View(m.width)))
		}
		parts = append(parts, m.input.View())
		body = lipgloss.JoinVertical(lipgloss.Left, parts...)
	} else {
		grid := m.visitors.View()
		if len(m.visitors.Rows()) == 0 {
			grid = lipgloss.JoinVertical(lipgloss.Left, grid, emptyRowStyle.Render("No visitors recorded yet."))
		}
		hint := statusStyle.Render("↑/↓ select • F1 or Esc back to terminal")
		body = lipgloss.JoinVertical(lipgloss.Left, lipgloss.NewStyle().Height(m.bodyHeight()).Render(grid), hint)
	}
	return lipgloss.JoinVertical(lipgloss.Left, tabs, body, m.renderStatus())
}

func (m *Model) renderTabs() string {
	tab := func(p Pane, key string) string {
		label := fmt.Sprintf("%s %s", key, p)
		if p == PaneVisitorLog && m.online > 0 {
			label = fmt.Sprintf("%s (%d)", label, m.online)
		}
		if m.pane == p {
			return activeTab.Render(label)
		}
		return inactiveTab.Render(label)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tab(PaneTerminal, "F1"), " ", tab(PaneVisitorLog, "F2"))
}

func (m *Model) renderStatus() string {
	detail := fmt.Sprintf("game: %s", m.gameState)
	if m.online > 0 {
		detail = fmt.Sprintf("%s · %d online", detail, m.online)
	}
	m.indicator.SetDetail(detail)
	right := m.view.Status()
	rightWidth := runewidth.StringWidth(right)
	leftWidth := m.width - rightWidth - 1
	if leftWidth < 10 {
		return m.indicator.Render(m.width)
	}
	left := m.indicator.Render(leftWidth)
	gap := m.width - lipgloss.Width(left) - rightWidth
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + statusStyle.Render(right)
}

// ClearLog 实现 commands.Console。
func (m *Model) ClearLog() {
	m.view.Clear()
}

// ToggleWordWrap 实现 commands.Console。
func (m *Model) ToggleWordWrap() bool {
	on := !m.view.WordWrap()
	m.view.SetWordWrap(on)
	return on
}

// TailLines 实现 commands.Console。
func (m *Model) TailLines(n int) []string {
	return m.view.Store().Tail(n)
}

// Quit 实现 commands.Console：下一次 Update 返回 tea.Quit。
func (m *Model) Quit() {
	m.quitting = true
}

var _ commands.Console = (*Model)(nil)
