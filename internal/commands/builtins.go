package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"

	"tabg-cli/internal/roster"
)

// GameState 是子进程上报的对局状态。
type GameState string

const (
	GameStateUnknown           GameState = ""
	GameStateWaitingForPlayers GameState = "WaitingForPlayers"
	GameStateInProgress        GameState = "InProgress"
)

func (s GameState) String() string {
	if s == GameStateUnknown {
		return "unknown"
	}
	return string(s)
}

// Game 是命令操作对局的入口。
type Game interface {
	GameState() GameState
	StartCountdown(seconds int) error
}

// Roster 是命令需要的访客名单操作。
type Roster interface {
	Find(query string) (roster.Player, bool)
	SetLevel(id string, level uint) error
	Connected() []roster.Player
}

// Console 是本地界面提供给命令的操作。
type Console interface {
	ClearLog()
	ToggleWordWrap() bool
	TailLines(n int) []string
	Quit()
}

// Deps 汇总内置命令依赖的对象。
type Deps struct {
	Game             Game
	Roster           Roster
	Console          Console
	DefaultCountdown int
	// WriteClipboard 默认为 clipboard.WriteAll。
	WriteClipboard func(text string) error
	// Permissions 按命令名覆盖默认的最低权限等级。
	Permissions map[string]uint
}

// 权限等级约定：0 所有人，1 可开局，2 管理员。
const (
	LevelEveryone uint = 0
	LevelStarter  uint = 1
	LevelAdmin    uint = 2
)

const defaultCopyLines = 10

// RegisterBuiltins 注册 help/start/setlevel/players/clear/copy/wrap/quit。
func RegisterBuiltins(d *Dispatcher, deps Deps) error {
	if deps.WriteClipboard == nil {
		deps.WriteClipboard = clipboard.WriteAll
	}
	if deps.DefaultCountdown <= 0 {
		deps.DefaultCountdown = 20
	}
	b := &builtins{d: d, deps: deps}
	cmds := []Command{
		{Name: "help", Usage: "help [command]", Description: "Lists the commands you can use, or describes one.", MinLevel: LevelEveryone, Handler: b.help},
		{Name: "start", Usage: "start [seconds]", Description: "Starts the game with the default countdown or the specified countdown in seconds.", MinLevel: LevelStarter, Handler: b.start},
		{Name: "setlevel", Usage: "setlevel <name|id> <level>", Description: "Sets a player's permission level.", MinLevel: LevelAdmin, Handler: b.setLevel},
		{Name: "players", Usage: "players", Description: "Lists connected players.", MinLevel: LevelEveryone, Handler: b.players},
		{Name: "clear", Usage: "clear", Description: "Clears the log pane.", MinLevel: ConsoleLevel, Handler: b.clear},
		{Name: "copy", Usage: "copy [lines]", Description: "Copies the last log lines to the clipboard.", MinLevel: ConsoleLevel, Handler: b.copy},
		{Name: "wrap", Usage: "wrap", Description: "Toggles wrapping of long log lines.", MinLevel: ConsoleLevel, Handler: b.wrap},
		{Name: "quit", Usage: "quit", Description: "Stops the server and exits.", MinLevel: ConsoleLevel, Handler: b.quit},
	}
	known := make(map[string]bool, len(cmds))
	for _, cmd := range cmds {
		known[cmd.Name] = true
	}
	for name := range deps.Permissions {
		if !known[name] {
			return fmt.Errorf("permissions: unknown command %q", name)
		}
	}
	for _, cmd := range cmds {
		if level, ok := deps.Permissions[cmd.Name]; ok {
			cmd.MinLevel = level
		}
		if err := d.Registry().Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

type builtins struct {
	d    *Dispatcher
	deps Deps
}

func (b *builtins) help(_ context.Context, inv Invocation) Result {
	prefix := b.d.Prefix()
	if len(inv.Args) > 0 {
		name := strings.ToLower(strings.TrimPrefix(inv.Args[0], prefix))
		cmd, ok := b.d.Registry().Lookup(name)
		if !ok || cmd.MinLevel > inv.Level {
			return Fail("Unknown command: %s, type %shelp for a list of commands you can use.", name, prefix)
		}
		return Ok("%s\n%s", b.d.usage(cmd), cmd.Description)
	}
	var sb strings.Builder
	sb.WriteString("Available commands:")
	for _, cmd := range b.d.Registry().List(inv.Level) {
		fmt.Fprintf(&sb, "\n  %s%s - %s", prefix, cmd.Name, cmd.Description)
	}
	return Ok("%s", sb.String())
}

func (b *builtins) start(_ context.Context, inv Invocation) Result {
	if b.deps.Game == nil {
		return Fail("The server is not running.")
	}
	seconds := b.deps.DefaultCountdown
	if len(inv.Args) > 0 {
		n, err := strconv.Atoi(inv.Args[0])
		if err != nil || n <= 0 {
			return Fail("Invalid time specified. Must be a positive integer.")
		}
		seconds = n
	}
	if state := b.deps.Game.GameState(); state != GameStateWaitingForPlayers {
		return Fail("The game can only be started while waiting for players (current state: %s).", state)
	}
	if err := b.deps.Game.StartCountdown(seconds); err != nil {
		return Fail("Could not start the game: %v", err)
	}
	return Ok("Starting the game in %d seconds.", seconds)
}

func (b *builtins) setLevel(_ context.Context, inv Invocation) Result {
	if len(inv.Args) < 2 {
		return Fail("%s", b.usageOf("setlevel"))
	}
	if b.deps.Roster == nil {
		return Fail("The visitor roster is not available.")
	}
	raw := inv.Args[len(inv.Args)-1]
	level, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return Fail("Invalid level %q. Must be a non-negative integer.", raw)
	}
	if !inv.FromConsole() && uint(level) >= inv.Level {
		return Fail("You can only grant levels below your own (%d).", inv.Level)
	}
	query := strings.Join(inv.Args[:len(inv.Args)-1], " ")
	player, ok := b.deps.Roster.Find(query)
	if !ok {
		return Fail("No player found matching %q.", query)
	}
	if err := b.deps.Roster.SetLevel(player.ID, uint(level)); err != nil {
		return Fail("Could not set level for %s: %v", player.ID, err)
	}
	return Ok("Set permission level of %s to %d.", describePlayer(player), level)
}

func (b *builtins) players(_ context.Context, _ Invocation) Result {
	if b.deps.Roster == nil {
		return Fail("The visitor roster is not available.")
	}
	connected := b.deps.Roster.Connected()
	if len(connected) == 0 {
		return Ok("No players connected.")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Connected players (%d):", len(connected))
	for _, p := range connected {
		fmt.Fprintf(&sb, "\n  %s level %d", describePlayer(p), p.PermissionLevel)
	}
	return Ok("%s", sb.String())
}

func (b *builtins) clear(_ context.Context, _ Invocation) Result {
	if b.deps.Console == nil {
		return Fail("No console attached.")
	}
	b.deps.Console.ClearLog()
	return Ok("")
}

func (b *builtins) copy(_ context.Context, inv Invocation) Result {
	if b.deps.Console == nil {
		return Fail("No console attached.")
	}
	n := defaultCopyLines
	if len(inv.Args) > 0 {
		v, err := strconv.Atoi(inv.Args[0])
		if err != nil || v <= 0 {
			return Fail("Invalid line count. Must be a positive integer.")
		}
		n = v
	}
	lines := b.deps.Console.TailLines(n)
	if len(lines) == 0 {
		return Fail("Nothing to copy.")
	}
	if err := b.deps.WriteClipboard(strings.Join(lines, "\n")); err != nil {
		return Fail("Could not copy to the clipboard: %v", err)
	}
	return Ok("Copied %d lines to the clipboard.", len(lines))
}

func (b *builtins) wrap(_ context.Context, _ Invocation) Result {
	if b.deps.Console == nil {
		return Fail("No console attached.")
	}
	if b.deps.Console.ToggleWordWrap() {
		return Ok("Word wrap enabled.")
	}
	return Ok("Word wrap disabled.")
}

func (b *builtins) quit(_ context.Context, _ Invocation) Result {
	if b.deps.Console == nil {
		return Fail("No console attached.")
	}
	b.deps.Console.Quit()
	return Ok("Shutting down...")
}

func (b *builtins) usageOf(name string) string {
	cmd, ok := b.d.Registry().Lookup(name)
	if !ok {
		return ""
	}
	return b.d.usage(cmd)
}

func describePlayer(p roster.Player) string {
	if p.DisplayName == "" || p.DisplayName == p.ID {
		return p.ID
	}
	return fmt.Sprintf("%s (%s)", p.DisplayName, p.ID)
}
