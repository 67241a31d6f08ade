//go:build windows

package pipe

import (
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"sync"

	"github.com/Microsoft/go-winio"
)

const pipeBufferSize = 64 * 1024

type namedTransport struct {
	token    string
	path     string
	listener net.Listener
	once     sync.Once
}

// NamedPipePath 返回 token 对应的管道路径。
func NamedPipePath(token string) string {
	return `\\.\pipe\` + token
}

func newNamedTransport(token string) (Transport, error) {
	path := NamedPipePath(token)
	ln, err := winio.ListenPipe(path, &winio.PipeConfig{
		MessageMode:      false,
		InputBufferSize:  pipeBufferSize,
		OutputBufferSize: pipeBufferSize,
	})
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
		_ = t.listener.Close()
		return conn, nil
	}, func() { _ = t.Close() })
}

func (t *namedTransport) Close() error {
	var err error
	t.once.Do(func() {
		err = t.listener.Close()
	})
	return err
}
