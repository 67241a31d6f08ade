//go:build !windows

package pipe

import (
	"net"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestChannelNamedRoundTrip(t *testing.T) {
	token := uuid.NewString()
	tr, err := NewTransport(ModeNamed, token)
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	args, err := tr.Prepare(&exec.Cmd{})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if strings.Join(args, " ") != "-pipeName "+token {
		t.Fatalf("args = %v", args)
	}

	// 监听已建立，Dial 在 Accept 之前也会成功进入 backlog。
	client, err := net.Dial("unix", NamedPipePath(token))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	runChannel(t, NewChannel(tr), client)

	if _, err := os.Stat(NamedPipePath(token)); !os.IsNotExist(err) {
		t.Fatalf("socket file should be removed after close, stat err = %v", err)
	}
}

func TestAnonymousPrepareUsesExtraFiles(t *testing.T) {
	tr, err := NewTransport(ModeAnonymous, "tok")
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	defer tr.Close()
	cmd := &exec.Cmd{ExtraFiles: []*os.File{os.Stdin}}
	args, err := tr.Prepare(cmd)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if strings.Join(args, " ") != "-pipeHandles 4|5" {
		t.Fatalf("args = %v", args)
	}
	if len(cmd.ExtraFiles) != 3 {
		t.Fatalf("ExtraFiles = %d, want 3", len(cmd.ExtraFiles))
	}
	tr.AfterStart()
	if _, err := tr.Prepare(&exec.Cmd{}); err == nil {
		t.Fatalf("Prepare after AfterStart should fail")
	}
}
