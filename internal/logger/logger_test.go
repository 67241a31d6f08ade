package logger

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"tabg-cli/internal/events"
)

func TestPlainFormatter_TypePrefixAndFieldSkipping(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	cases := []struct {
		name    string
		data    logrus.Fields
		message string
		want    string
	}{
		{
			name: "with type",
			data: logrus.Fields{
				"component": "pipe",
				"type":      "PlayerJoined",
				"caller":    "x.go:1",
				"player":    "abc",
				"session":   "s1",
			},
			message: "received message",
			want:    "x.go:1 [2025-01-02T03:04:05Z] [INFO] [pipe] [type=PlayerJoined] received message player=abc session=s1\n",
		},
		{
			name: "without type",
			data: logrus.Fields{
				"component": "supervisor",
				"caller":    "x.go:1",
				"foo":       "bar",
			},
			message: "hello",
			want:    "x.go:1 [2025-01-02T03:04:05Z] [INFO] [supervisor] hello foo=bar\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := &logrus.Entry{
				Logger:  logrus.New(),
				Time:    ts,
				Level:   logrus.InfoLevel,
				Message: tc.message,
				Data:    tc.data,
			}
			out, err := (PlainFormatter{}).Format(entry)
			if err != nil {
				t.Fatalf("Format() error: %v", err)
			}
			got := string(out)
			if got != tc.want {
				t.Fatalf("Format() = %q, want %q", got, tc.want)
			}
			if _, ok := tc.data["type"]; ok {
				if strings.Count(got, "type=PlayerJoined") != 1 {
					t.Fatalf("expected type to appear only once in output, got: %q", got)
				}
			}
		})
	}
}

func TestConfigureInstallsPlainFormatter(t *testing.T) {
	l := logrus.StandardLogger()
	prevFormatter, prevOut, prevCaller := l.Formatter, l.Out, l.ReportCaller
	t.Cleanup(func() {
		l.SetFormatter(prevFormatter)
		l.SetOutput(prevOut)
		l.SetReportCaller(prevCaller)
	})

	Configure()
	if _, ok := l.Formatter.(PlainFormatter); !ok {
		t.Fatalf("formatter = %T, want PlainFormatter", l.Formatter)
	}
	if !l.ReportCaller {
		t.Fatalf("caller reporting should be on")
	}
	if l.Out != os.Stderr {
		t.Fatalf("output before SetupFile should be stderr")
	}
}

func TestPaneHookForwardsOnlyMarkedEntries(t *testing.T) {
	q := events.NewIngestQueue(16)
	l := logrus.New()
	l.SetOutput(discard{})
	l.AddHook(NewPaneHook(q.Writer(events.SourceSystem), logrus.InfoLevel))

	entry := logrus.NewEntry(l)
	entry.Info("file only")
	Pane(entry).Info("Server process started.")
	Pane(entry).Warn("Pipe error: broken")
	Pane(entry).Debug("too verbose")
	Pane(entry).Error("Failed to start server:\nexec format error")

	var got []string
	for _, line := range q.DrainAll() {
		if line.Source != events.SourceSystem {
			t.Fatalf("line source = %v", line.Source)
		}
		got = append(got, line.Text)
	}
	want := []string{"Server process started.", "[WARNING] Pipe error: broken", "[ERROR] Failed to start server:", "exec format error"}
	if len(got) != len(want) {
		t.Fatalf("forwarded %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
