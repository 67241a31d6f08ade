package pipe

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
)

// anonymousTransport 用两对 os.Pipe 组成双向通道：
// serverToClient 由父进程写、子进程读；clientToServer 由子进程写、父进程读。
type anonymousTransport struct {
	mu sync.Mutex

	// 父进程端
	fromClient *os.File
	toClient   *os.File
	// 子进程端，AfterStart 后关闭
	clientRead  *os.File
	clientWrite *os.File

	handed bool
	closed bool
}

func newAnonymousTransport() (Transport, error) {
	s2cRead, s2cWrite, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	c2sRead, c2sWrite, err := os.Pipe()
	if err != nil {
		_ = s2cRead.Close()
		_ = s2cWrite.Close()
		return nil, err
	}
	return &anonymousTransport{
		fromClient:  c2sRead,
		toClient:    s2cWrite,
		clientRead:  s2cRead,
		clientWrite: c2sWrite,
	}, nil
}

func (t *anonymousTransport) Mode() string { return ModeAnonymous }

func (t *anonymousTransport) AfterStart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeClientEndsLocked()
}

func (t *anonymousTransport) closeClientEndsLocked() {
	if t.clientRead != nil {
		_ = t.clientRead.Close()
		t.clientRead = nil
	}
	if t.clientWrite != nil {
		_ = t.clientWrite.Close()
		t.clientWrite = nil
	}
}

// Accept 匿名管道没有握手，立即返回父进程端。只能调用一次。
func (t *anonymousTransport) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}
	if t.handed {
		return nil, errors.New("anonymous pipe already accepted")
	}
	t.handed = true
	return &duplex{r: t.fromClient, w: t.toClient}, nil
}

func (t *anonymousTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.closeClientEndsLocked()
	return errors.Join(t.fromClient.Close(), t.toClient.Close())
}

// duplex 把独立的读写两端组合成一个 ReadWriteCloser。
type duplex struct {
	r    io.ReadCloser
	w    io.WriteCloser
	once sync.Once
	err  error
}

func (d *duplex) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *duplex) Write(p []byte) (int, error) { return d.w.Write(p) }

func (d *duplex) Close() error {
	d.once.Do(func() {
		d.err = errors.Join(d.w.Close(), d.r.Close())
	})
	return d.err
}
