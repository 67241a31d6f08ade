//go:build !windows

package pipe

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// namedTransport 在非 Windows 平台上用 unix domain socket 模拟命名管道。
// 路径与 .NET NamedPipeClientStream 在 Unix 上的约定一致：$TMPDIR/CoreFxPipe_<name>。
type namedTransport struct {
	token    string
	path     string
	listener net.Listener
	once     sync.Once
}

// NamedPipePath 返回 token 对应的 socket 路径。
func NamedPipePath(token string) string {
	return filepath.Join(os.TempDir(), "CoreFxPipe_"+token)
}

func newNamedTransport(token string) (Transport, error) {
	path := NamedPipePath(token)
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	return &namedTransport{token: token, path: path, listener: ln}, nil
}

func (t *namedTransport) Mode() string { return ModeNamed }

func (t *namedTransport) Prepare(*exec.Cmd) ([]string, error) {
	return []string{"-pipeName", t.token}, nil
}

func (t *namedTransport) AfterStart() {}

func (t *namedTransport) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	return acceptWithContext(ctx, func() (io.ReadWriteCloser, error) {
		conn, err := t.listener.Accept()
		if err != nil {
			return nil, err
		}
		// 单连接：连上后不再接受新的客户端。
		_ = t.listener.Close()
		return conn, nil
	}, func() { _ = t.Close() })
}

func (t *namedTransport) Close() error {
	var err error
	t.once.Do(func() {
		err = t.listener.Close()
		_ = os.Remove(t.path)
	})
	return err
}
