package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ConsoleLevel 是本地控制台的权限等级，高于任何玩家。
const ConsoleLevel = ^uint(0)

var (
	// ErrDuplicateCommand 表示命令名已注册。
	ErrDuplicateCommand = errors.New("command already registered")
	// ErrInvalidCommand 表示命令缺少名称或处理函数。
	ErrInvalidCommand = errors.New("command requires a name and a handler")
	// ErrUnknownCommand 表示命令名未注册。
	ErrUnknownCommand = errors.New("unknown command")
	// ErrPermissionDenied 表示发送者权限不足。
	ErrPermissionDenied = errors.New("permission denied")
)

// Sender 是发出命令的玩家；nil 表示本地控制台。
type Sender struct {
	ID   string
	Name string
}

// Invocation 是一次解析后的命令调用。
type Invocation struct {
	Name   string
	Args   []string
	Sender *Sender
	// Level 是调用者的权限等级，控制台为 ConsoleLevel。
	Level uint
}

// FromConsole 报告调用是否来自本地控制台。
func (inv Invocation) FromConsole() bool {
	return inv.Sender == nil
}

// Result 是命令执行结果，Message 会展示给调用者。
type Result struct {
	OK      bool
	Message string
}

// Ok 构造成功结果。
func Ok(format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

// Fail 构造失败结果。
func Fail(format string, args ...any) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

// Handler 执行一条命令。
type Handler func(ctx context.Context, inv Invocation) Result

// Command 描述一条可注册的命令。
type Command struct {
	Name        string
	Description string
	Usage       string
	MinLevel    uint
	Handler     Handler
}

// Registry 保存命令表，名称大小写不敏感。
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry 创建空命令表。
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register 注册一条命令；重复的名称会被拒绝，先注册者保留。
func (r *Registry) Register(cmd Command) error {
	name := strings.ToLower(strings.TrimSpace(cmd.Name))
	if name == "" || cmd.Handler == nil {
		return ErrInvalidCommand
	}
	cmd.Name = name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	r.commands[name] = cmd
	return nil
}

// MustRegister 注册失败时 panic，用于启动阶段的内置命令。
func (r *Registry) MustRegister(cmd Command) {
	if err := r.Register(cmd); err != nil {
		panic(err)
	}
}

// Lookup 按名称查找命令。
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

// List 返回 level 可用的命令，按名称排序。
func (r *Registry) List(level uint) []Command {
	r.mu.RLock()
	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		if cmd.MinLevel <= level {
			out = append(out, cmd)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
