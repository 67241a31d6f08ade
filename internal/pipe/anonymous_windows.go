//go:build windows

package pipe

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// Prepare 把子进程端标记为可继承，并通过 AdditionalInheritedHandles 传给子进程。
// 句柄值在子进程中保持不变，直接拼进命令行。
func (t *anonymousTransport) Prepare(cmd *exec.Cmd) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clientRead == nil || t.clientWrite == nil {
		return nil, errors.New("anonymous pipe client ends already released")
	}
	readHandle := windows.Handle(t.clientRead.Fd())
	writeHandle := windows.Handle(t.clientWrite.Fd())
	for _, h := range []windows.Handle{readHandle, writeHandle} {
		if err := windows.SetHandleInformation(h, windows.HANDLE_FLAG_INHERIT, windows.HANDLE_FLAG_INHERIT); err != nil {
			return nil, fmt.Errorf("mark pipe handle inheritable: %w", err)
		}
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.AdditionalInheritedHandles = append(cmd.SysProcAttr.AdditionalInheritedHandles,
		syscall.Handle(readHandle), syscall.Handle(writeHandle))
	return []string{"-pipeHandles", HandleString(uintptr(readHandle), uintptr(writeHandle))}, nil
}
