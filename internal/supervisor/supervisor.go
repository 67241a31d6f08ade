package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"tabg-cli/internal/events"
	"tabg-cli/internal/logger"
	"tabg-cli/internal/pipe"
)

var (
	// ErrAlreadyStarted 表示 Supervisor 只能启动一次。
	ErrAlreadyStarted = errors.New("server process already started")
	// ErrNoExecutable 表示未配置服务器可执行文件。
	ErrNoExecutable = errors.New("server executable path is empty")
	// ErrTerminateTimeout 表示等待子进程退出超时。
	ErrTerminateTimeout = errors.New("timed out waiting for server process to exit")
)

// DefaultKillTimeout 是 Terminate 等待子进程退出的默认上限。
const DefaultKillTimeout = 5 * time.Second

// readerGrace 是子进程退出后等待输出读完的时间，超时后强制关闭读端。
const readerGrace = 2 * time.Second

// Options 配置 Supervisor。
type Options struct {
	// Queue 接收子进程的 stdout/stderr 行，必填。
	Queue *events.IngestQueue
	// Events 接收生命周期事件，可为 nil。
	Events *events.EventQueue
	// PipeMode 为 pipe.ModeNamed 或 pipe.ModeAnonymous。
	PipeMode string
	// UsePTY 让子进程在伪终端中运行（仅类 Unix），stdout/stderr 合并。
	UsePTY bool
	// OnPipeLine 处理管道收到的每一行，在接收 goroutine 中调用。
	OnPipeLine func(line string)
	// NewToken 生成会话标识，默认 uuid.NewString。
	NewToken func() string
}

// Supervisor 启动并看管一个服务器子进程及其管道。
// Start 只能调用一次；新的子进程需要新的 Supervisor。
type Supervisor struct {
	opts Options
	log  *logger.LogEntry

	mu            sync.Mutex
	state         ProcessState
	started       bool
	killRequested bool
	reaped        bool
	token         string
	cmd           *exec.Cmd
	exitCode      int
	exitErr       error
	channel       *pipe.Channel
	transport     pipe.Transport
	outputs       []*os.File

	cancel        context.CancelFunc
	readers       sync.WaitGroup
	done          chan struct{}
	terminateOnce sync.Once
	terminateErr  error
}

// New 创建 Supervisor。
func New(opts Options) *Supervisor {
	if opts.NewToken == nil {
		opts.NewToken = uuid.NewString
	}
	if opts.PipeMode == "" {
		opts.PipeMode = pipe.ModeNamed
	}
	return &Supervisor{
		opts:  opts,
		log:   logger.Named("supervisor"),
		state: NotStarted,
		done:  make(chan struct{}),
	}
}

// State 返回当前状态。
func (s *Supervisor) State() ProcessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token 返回本次会话的管道标识。
func (s *Supervisor) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// PID 返回子进程 pid，未运行时为 0。
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// ExitCode 返回退出码；仍在运行时为 -1。
func (s *Supervisor) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Terminal() {
		return -1
	}
	return s.exitCode
}

// Channel 返回本次会话的管道，Start 前为 nil。
func (s *Supervisor) Channel() *pipe.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Done 在子进程进入终态后关闭。
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Wait 阻塞直到子进程结束或 ctx 结束。
func (s *Supervisor) Wait(ctx context.Context) (ProcessState, error) {
	select {
	case <-s.done:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// Send 通过管道给子进程发一行命令。
func (s *Supervisor) Send(line string) error {
	ch := s.Channel()
	if ch == nil {
		return pipe.ErrNotConnected
	}
	return ch.Send(line)
}

// Start 生成会话标识、构造参数、启动子进程并开始读取输出和管道。
// 启动失败时进入 ExitedWithError 并在日志面板中提示。
func (s *Supervisor) Start(ctx context.Context, exe string, extraArgs []string) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.token = s.opts.NewToken()
	token := s.token
	s.mu.Unlock()

	if exe == "" {
		return s.failStart(ErrNoExecutable)
	}

	transport, err := pipe.NewTransport(s.opts.PipeMode, token)
	if err != nil {
		return s.failStart(fmt.Errorf("create pipe: %w", err))
	}

	cmd := exec.Command(exe)
	pipeArgs, err := transport.Prepare(cmd)
	if err != nil {
		_ = transport.Close()
		return s.failStart(fmt.Errorf("prepare pipe: %w", err))
	}
	cmd.Args = append(cmd.Args, pipeArgs...)
	cmd.Args = append(cmd.Args, extraArgs...)

	runCtx, cancel := context.WithCancel(ctx)
	outputs, err := s.spawn(cmd)
	if err != nil {
		cancel()
		_ = transport.Close()
		return s.failStart(fmt.Errorf("start %s: %w", exe, err))
	}
	transport.AfterStart()

	channel := pipe.NewChannel(transport)
	s.mu.Lock()
	s.cmd = cmd
	s.cancel = cancel
	s.transport = transport
	s.channel = channel
	s.outputs = outputs
	s.state = Running
	s.mu.Unlock()

	logger.Pane(s.log.WithFields(logger.Fields{"pid": cmd.Process.Pid, "session": token})).Info("Server process started.")
	s.opts.Events.Emit(events.EventProcessStarted, cmd.Process.Pid)

	go s.receivePipe(runCtx, channel)
	go s.waitLoop(cmd)
	return nil
}

// spawn 启动子进程并为每个输出流起一个读 goroutine，返回父进程持有的读端。
func (s *Supervisor) spawn(cmd *exec.Cmd) ([]*os.File, error) {
	if s.opts.UsePTY {
		ptmx, err := pty.Start(cmd)
		if err == nil {
			s.startReader(ptmx, events.SourceStdout)
			return []*os.File{ptmx}, nil
		}
		if !errors.Is(err, pty.ErrUnsupported) {
			return nil, err
		}
		s.log.Warnf("pty unsupported on this platform, falling back to pipes")
	}

	configureProcess(cmd)
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, err
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	startErr := cmd.Start()
	_ = stdoutW.Close()
	_ = stderrW.Close()
	if startErr != nil {
		_ = stdoutR.Close()
		_ = stderrR.Close()
		return nil, startErr
	}
	s.startReader(stdoutR, events.SourceStdout)
	s.startReader(stderrR, events.SourceStderr)
	return []*os.File{stdoutR, stderrR}, nil
}

func (s *Supervisor) startReader(f *os.File, source events.Source) {
	s.readers.Add(1)
	go func() {
		defer s.readers.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Pane(s.log).Errorf("%s reader crashed: %v", source, r)
			}
		}()
		err := forwardLines(f, func(line string) {
			s.opts.Queue.Push(source, line)
		})
		if err != nil && !errors.Is(err, os.ErrClosed) {
			s.log.WithField("source", source).Debugf("output reader stopped: %v", err)
		}
	}()
}

func (s *Supervisor) receivePipe(ctx context.Context, channel *pipe.Channel) {
	defer func() {
		if r := recover(); r != nil {
			logger.Pane(s.log).Errorf("Pipe error: %v", r)
		}
	}()
	go func() {
		select {
		case <-channel.Connected():
			s.opts.Events.Emit(events.EventPipeConnected, nil)
		case <-channel.Done():
		}
	}()
	if err := channel.ReceiveLoop(ctx, s.opts.OnPipeLine); err != nil {
		s.log.Warnf("pipe receive loop ended: %v", err)
	}
	s.opts.Events.Emit(events.EventPipeClosed, nil)
}

// waitLoop 观察子进程退出并记录终态。
func (s *Supervisor) waitLoop(cmd *exec.Cmd) {
	ps, err := cmd.Process.Wait()
	code := -1
	if ps != nil {
		code = ps.ExitCode()
	}
	// 之后的 Terminate 不再算作主动结束。
	s.mu.Lock()
	s.reaped = true
	s.mu.Unlock()

	readersDone := make(chan struct{})
	go func() {
		s.readers.Wait()
		close(readersDone)
	}()
	select {
	case <-readersDone:
	case <-time.After(readerGrace):
		s.closeOutputs()
		<-readersDone
	}

	s.mu.Lock()
	next := ExitedCleanly
	switch {
	case s.killRequested:
		next = KilledByRequest
	case err != nil || code != 0:
		next = ExitedWithError
	}
	s.transitionLocked(next, code, err)
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.closeOutputs()
	logger.Pane(s.log.WithFields(logger.Fields{"exit_code": code, "state": next.String()})).Info("Server process exited.")
	s.opts.Events.Emit(events.EventProcessExited, events.ProcessExit{State: next.String(), ExitCode: code, Err: errString(err)})
	close(s.done)
}

// transitionLocked 只允许从非终态进入终态一次。
func (s *Supervisor) transitionLocked(next ProcessState, code int, err error) bool {
	if s.state.Terminal() {
		return false
	}
	s.state = next
	s.exitCode = code
	s.exitErr = err
	return true
}

func (s *Supervisor) failStart(err error) error {
	s.mu.Lock()
	s.transitionLocked(ExitedWithError, -1, err)
	s.mu.Unlock()
	logger.Pane(s.log).Errorf("Failed to start server: %v", err)
	s.opts.Events.Emit(events.EventProcessExited, events.ProcessExit{State: ExitedWithError.String(), ExitCode: -1, Err: err.Error()})
	close(s.done)
	return err
}

func (s *Supervisor) closeOutputs() {
	s.mu.Lock()
	outputs := s.outputs
	s.outputs = nil
	s.mu.Unlock()
	for _, f := range outputs {
		_ = f.Close()
	}
}

// Terminate 取消读取、关闭管道、杀掉整个进程树并最多等待 timeout。
// 只执行一次，重复调用返回第一次的结果；无论等待是否成功都会释放句柄。
func (s *Supervisor) Terminate(timeout time.Duration) error {
	s.terminateOnce.Do(func() {
		s.terminateErr = s.terminate(timeout)
	})
	return s.terminateErr
}

func (s *Supervisor) terminate(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultKillTimeout
	}
	s.mu.Lock()
	running := s.state == Running
	reaped := s.reaped
	if running && !reaped {
		s.killRequested = true
	}
	cmd := s.cmd
	cancel := s.cancel
	channel := s.channel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var errs []error
	if channel != nil {
		_ = channel.Close()
	}
	if !running || cmd == nil || cmd.Process == nil {
		return nil
	}

	if reaped {
		// 子进程已自行退出，只剩读端在宽限期内收尾。
		s.closeOutputs()
	} else if err := killProcessTree(cmd.Process); err != nil {
		errs = append(errs, fmt.Errorf("kill process tree: %w", err))
	}
	select {
	case <-s.done:
	case <-time.After(timeout):
		errs = append(errs, ErrTerminateTimeout)
		_ = cmd.Process.Kill()
	}
	s.closeOutputs()
	_ = cmd.Process.Release()

	err := errors.Join(errs...)
	if err != nil {
		s.log.Warnf("terminate server: %v", err)
	}
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
