//go:build !windows

package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcess 让子进程成为新进程组的组长，便于整组结束。
func configureProcess(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessTree 向子进程所在进程组发送 SIGKILL，失败时退回只杀子进程。
func killProcessTree(p *os.Process) error {
	if p == nil {
		return nil
	}
	pgid, err := unix.Getpgid(p.Pid)
	if err == nil && pgid == p.Pid {
		err = unix.Kill(-pgid, unix.SIGKILL)
		if err == nil || errors.Is(err, unix.ESRCH) {
			return nil
		}
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
