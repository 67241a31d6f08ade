package pipe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"tabg-cli/internal/logger"
)

// State 是通道的连接状态。Closed 是终态。
type State int

const (
	StateListening State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotConnected 表示子进程尚未连上管道。
	ErrNotConnected = errors.New("pipe not connected")
	// ErrChannelClosed 表示管道已关闭，不会再重新打开。
	ErrChannelClosed = errors.New("pipe channel closed")
	// ErrSendQueueFull 表示子进程长时间不读管道，发送队列已满，本行被丢弃。
	ErrSendQueueFull = errors.New("pipe send queue full")
)

const (
	maxLineBytes = 1024 * 1024
	// sendQueueSize 是尚未写出的命令行上限。
	sendQueueSize = 256
)

// Channel 在 Transport 之上提供按行收发。
// 一个 Channel 只服务一个子进程实例；关闭后需要为新进程创建新的 Channel。
type Channel struct {
	transport Transport

	mu        sync.Mutex
	state     State
	conn      io.ReadWriteCloser
	connected chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	outbox chan string

	log *logger.LogEntry
}

// NewChannel 创建处于 Listening 状态的通道。
func NewChannel(t Transport) *Channel {
	return &Channel{
		transport: t,
		state:     StateListening,
		connected: make(chan struct{}),
		done:      make(chan struct{}),
		outbox:    make(chan string, sendQueueSize),
		log:       logger.Named("pipe").WithField("mode", t.Mode()),
	}
}

// State 返回当前状态。
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected 在子进程连上后关闭。
func (c *Channel) Connected() <-chan struct{} {
	return c.connected
}

// Done 在通道关闭后关闭。
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Send 把一行命令放进发送队列后立即返回，由写协程按顺序写出。
// 未连接、已关闭或队列已满时返回错误，不会阻塞调用方。
func (c *Channel) Send(msg string) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	switch state {
	case StateClosed:
		return ErrChannelClosed
	case StateListening:
		return ErrNotConnected
	}

	line := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(msg)
	select {
	case c.outbox <- line:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// writeLoop 把队列中的行写到 conn，直到通道关闭或写失败。
func (c *Channel) writeLoop(conn io.Writer) {
	w := bufio.NewWriter(conn)
	for {
		select {
		case <-c.done:
			return
		case line := <-c.outbox:
			_, err := w.WriteString(line + "\n")
			// 队列里还有待发的行时合并成一次 flush。
			for err == nil && len(c.outbox) > 0 {
				_, err = w.WriteString(<-c.outbox + "\n")
			}
			if err == nil {
				err = w.Flush()
			}
			if err != nil {
				if c.State() != StateClosed {
					logger.Pane(c.log).Warnf("Pipe error: send: %v", err)
					_ = c.Close()
				}
				return
			}
		}
	}
}

// ReceiveLoop 等待子进程连接后逐行读取，直到 ctx 结束或对端断开。
// 每行交给 onLine；onLine 的 panic 会被转换成日志，不会终止循环。
// 返回时通道已关闭。
func (c *Channel) ReceiveLoop(ctx context.Context, onLine func(line string)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipe receive loop panic: %v", r)
			logger.Pane(c.log).Errorf("Pipe error: %v", err)
		}
		_ = c.Close()
	}()

	logger.Pane(c.log).Info("Waiting for server to connect...")
	conn, err := c.transport.Accept(ctx)
	if err != nil {
		if ctx.Err() != nil || c.State() == StateClosed {
			return nil
		}
		logger.Pane(c.log).Warnf("Pipe error: %v", err)
		return err
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrChannelClosed
	}
	c.conn = conn
	c.state = StateConnected
	close(c.connected)
	c.mu.Unlock()
	go c.writeLoop(conn)
	logger.Pane(c.log).Info("Server connected to pipe.")

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	reader := bufio.NewReaderSize(conn, 64*1024)
	for {
		line, readErr := readLine(reader)
		if line != "" {
			c.dispatch(onLine, line)
		}
		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) || ctx.Err() != nil || c.State() == StateClosed {
			logger.Pane(c.log).Info("Pipe disconnected.")
			return nil
		}
		logger.Pane(c.log).Warnf("Pipe error: %v", readErr)
		return readErr
	}
}

// readLine 读取一行，超长行被截断到 maxLineBytes。
func readLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := r.ReadLine()
		if sb.Len()+len(chunk) <= maxLineBytes {
			sb.Write(chunk)
		}
		if err != nil {
			return strings.TrimSpace(sb.String()), err
		}
		if !isPrefix {
			return strings.TrimRight(sb.String(), "\r"), nil
		}
	}
}

func (c *Channel) dispatch(onLine func(string), line string) {
	if strings.TrimSpace(line) == "" || onLine == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Pane(c.log).Errorf("Failed to handle message from server: %v", r)
		}
	}()
	onLine(line)
}

// Close 关闭连接与传输层，可重复调用。
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
		err = errors.Join(err, c.transport.Close())
		close(c.done)
	})
	return err
}
