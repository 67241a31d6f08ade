package pipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Transport 模式。
const (
	ModeNamed     = "named"
	ModeAnonymous = "anonymous"
)

// ErrTransportClosed 表示传输层已关闭，不能再接受连接。
var ErrTransportClosed = errors.New("pipe transport closed")

// Transport 是一次会话专用的双向字节流。名称/句柄每次会话重新生成，不复用。
type Transport interface {
	// Mode 返回 ModeNamed 或 ModeAnonymous。
	Mode() string
	// Prepare 在子进程启动前调用，返回需要追加到子进程命令行的参数。
	Prepare(cmd *exec.Cmd) ([]string, error)
	// AfterStart 在子进程启动后调用，释放父进程持有的子进程端句柄。
	AfterStart()
	// Accept 阻塞直到子进程连上或 ctx 结束。
	Accept(ctx context.Context) (io.ReadWriteCloser, error)
	Close() error
}

// NewTransport 按模式创建传输层，token 用于命名管道。
func NewTransport(mode, token string) (Transport, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("pipe token is empty")
	}
	switch mode {
	case ModeNamed, "":
		return newNamedTransport(token)
	case ModeAnonymous:
		return newAnonymousTransport()
	default:
		return nil, fmt.Errorf("unknown pipe mode %q", mode)
	}
}

// HandleString 按 "<serverToClient>|<clientToServer>" 格式拼接匿名管道句柄。
func HandleString(serverToClient, clientToServer uintptr) string {
	return fmt.Sprintf("%d|%d", serverToClient, clientToServer)
}

// acceptWithContext 在 ctx 结束时调用 abort 以解除阻塞的 accept。
func acceptWithContext(ctx context.Context, accept func() (io.ReadWriteCloser, error), abort func()) (io.ReadWriteCloser, error) {
	type result struct {
		conn io.ReadWriteCloser
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := accept()
		ch <- result{conn: conn, err: err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		abort()
		if r := <-ch; r.conn != nil {
			_ = r.conn.Close()
		}
		return nil, ctx.Err()
	}
}
