package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"tabg-cli/internal/logger"
)

// PermissionSource 查询玩家权限等级，roster.Store 实现了该接口。
type PermissionSource interface {
	PermissionLevel(id string) uint
}

// Dispatcher 解析命令行并交给注册的处理函数。
type Dispatcher struct {
	registry    *Registry
	permissions PermissionSource
	prefix      string
	log         *logger.LogEntry
}

// NewDispatcher 创建分发器；prefix 为空时使用 "/"。
func NewDispatcher(registry *Registry, permissions PermissionSource, prefix string) *Dispatcher {
	if prefix == "" {
		prefix = "/"
	}
	return &Dispatcher{
		registry:    registry,
		permissions: permissions,
		prefix:      prefix,
		log:         logger.Named("commands"),
	}
}

// Prefix 返回命令前缀。
func (d *Dispatcher) Prefix() string {
	return d.prefix
}

// IsCommand 报告输入行是否以命令前缀开头。
func (d *Dispatcher) IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), d.prefix)
}

// Registry 返回底层命令表。
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Level 返回 sender 的权限等级。
func (d *Dispatcher) Level(sender *Sender) uint {
	if sender == nil {
		return ConsoleLevel
	}
	if d.permissions == nil {
		return 0
	}
	return d.permissions.PermissionLevel(sender.ID)
}

// Parse 去掉前缀后按空白切分为小写命令名与参数。
func (d *Dispatcher) Parse(line string) (string, []string) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, d.prefix)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// Dispatch 执行一行命令。未知命令、权限不足和处理函数 panic 都转换为失败结果。
func (d *Dispatcher) Dispatch(ctx context.Context, line string, sender *Sender) (res Result) {
	name, args := d.Parse(line)
	cmd, level, err := d.Resolve(name, sender)
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return Fail("Unknown command: %s, type %shelp for a list of commands you can use.", name, d.prefix)
	case errors.Is(err, ErrPermissionDenied):
		return Fail("You do not have permission to use the %s%s command.", d.prefix, name)
	}

	entry := d.log.WithField("command", name)
	if sender != nil {
		entry = entry.WithField("sender", sender.ID)
	}
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("stack", string(debug.Stack())).Errorf("command panicked: %v", r)
			res = Fail("An error occurred while executing the command: %v", r)
		}
	}()
	entry.Debugf("dispatch args=%q", args)
	res = cmd.Handler(ctx, Invocation{Name: name, Args: args, Sender: sender, Level: level})
	if !res.OK {
		entry.Infof("command failed: %s", res.Message)
	}
	return res
}

// Resolve 查找命令并检查发送者权限，返回发送者的等级。
func (d *Dispatcher) Resolve(name string, sender *Sender) (Command, uint, error) {
	cmd, ok := d.registry.Lookup(name)
	if !ok {
		return Command{}, 0, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	level := d.Level(sender)
	if level < cmd.MinLevel {
		return Command{}, level, fmt.Errorf("%w: %s", ErrPermissionDenied, name)
	}
	return cmd, level, nil
}

// usage 返回带前缀的用法说明。
func (d *Dispatcher) usage(cmd Command) string {
	if cmd.Usage != "" {
		return fmt.Sprintf("Usage: %s%s", d.prefix, cmd.Usage)
	}
	return fmt.Sprintf("Usage: %s%s", d.prefix, cmd.Name)
}
