//go:build !windows

package pipe

import (
	"errors"
	"os/exec"
)

// Prepare 通过 ExtraFiles 把子进程端传给子进程；ExtraFiles[i] 在子进程中是 fd 3+i。
func (t *anonymousTransport) Prepare(cmd *exec.Cmd) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clientRead == nil || t.clientWrite == nil {
		return nil, errors.New("anonymous pipe client ends already released")
	}
	base := uintptr(3 + len(cmd.ExtraFiles))
	cmd.ExtraFiles = append(cmd.ExtraFiles, t.clientRead, t.clientWrite)
	return []string{"-pipeHandles", HandleString(base, base+1)}, nil
}
