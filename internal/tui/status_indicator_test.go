package tui

import (
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
)

func TestFmtElapsedCompact(t *testing.T) {
	cases := []struct {
		seconds  uint64
		expected string
	}{
		{seconds: 0, expected: "0s"},
		{seconds: 1, expected: "1s"},
		{seconds: 59, expected: "59s"},
		{seconds: 60, expected: "1m 00s"},
		{seconds: 61, expected: "1m 01s"},
		{seconds: 3*60 + 5, expected: "3m 05s"},
		{seconds: 59*60 + 59, expected: "59m 59s"},
		{seconds: 3600, expected: "1h 00m 00s"},
		{seconds: 3600 + 60 + 1, expected: "1h 01m 01s"},
		{seconds: 25*3600 + 2*60 + 3, expected: "25h 02m 03s"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if got := fmtElapsedCompact(tc.seconds); got != tc.expected {
				t.Fatalf("fmtElapsedCompact(%d) = %q, want %q", tc.seconds, got, tc.expected)
			}
		})
	}
}

func TestStatusIndicatorTimerPausesAndResumes(t *testing.T) {
	base := time.Unix(0, 0)
	now := base
	widget := NewStatusIndicator(StatusIndicatorOptions{
		Phase: PhaseWaiting,
		Clock: func() time.Time { return now },
	})

	now = base.Add(5 * time.Second)
	beforePause := widget.elapsedSecondsAt(now)
	if beforePause != 5 {
		t.Fatalf("expected 5s before pause, got %d", beforePause)
	}

	widget.SetPhase(PhaseExited)

	now = base.Add(10 * time.Second)
	paused := widget.elapsedSecondsAt(now)
	if paused != beforePause {
		t.Fatalf("expected paused elapsed %d, got %d", beforePause, paused)
	}

	widget.SetPhase(PhaseConnected)

	now = base.Add(13 * time.Second)
	afterResume := widget.elapsedSecondsAt(now)
	if afterResume != beforePause+3 {
		t.Fatalf("expected resumed elapsed %d, got %d", beforePause+3, afterResume)
	}
}

func TestStatusIndicatorStartsPausedBeforeLaunch(t *testing.T) {
	base := time.Unix(0, 0)
	now := base
	widget := NewStatusIndicator(StatusIndicatorOptions{Clock: func() time.Time { return now }})
	now = base.Add(30 * time.Second)
	if got := widget.elapsedSecondsAt(now); got != 0 {
		t.Fatalf("elapsed before launch = %d, want 0", got)
	}
	if widget.Phase() != PhaseStarting {
		t.Fatalf("default phase = %s", widget.Phase())
	}
}

func TestStatusIndicatorRender(t *testing.T) {
	now := time.Unix(0, 0)
	widget := NewStatusIndicator(StatusIndicatorOptions{
		Phase: PhaseConnected,
		Clock: func() time.Time { return now },
	})
	widget.SetDetail("game: WaitingForPlayers")

	got := widget.Render(80)
	expected := "● Server running (0s · game: WaitingForPlayers)"
	if got != expected {
		t.Fatalf("unexpected render output %q, want %q", got, expected)
	}
}

func TestStatusIndicatorHeaders(t *testing.T) {
	tests := []struct {
		phase ServerPhase
		want  string
	}{
		{phase: PhaseStarting, want: "• Starting server (0s)"},
		{phase: PhaseWaiting, want: "• Waiting for server to connect (0s)"},
		{phase: PhaseExited, want: "■ Server exited (0s)"},
		{phase: PhaseFailed, want: "! Server stopped with an error (0s)"},
	}
	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			now := time.Unix(0, 0)
			widget := NewStatusIndicator(StatusIndicatorOptions{Clock: func() time.Time { return now }})
			widget.SetPhase(tt.phase)
			if got := widget.Render(80); got != tt.want {
				t.Fatalf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusIndicatorRenderClampsToWidth(t *testing.T) {
	widget := NewStatusIndicator(StatusIndicatorOptions{Phase: PhaseWaiting})
	widget.SetDetail("game: WaitingForPlayers · 12 online")

	for _, width := range []int{1, 10, 25} {
		got := widget.Render(width)
		if w := runewidth.StringWidth(got); w > width {
			t.Fatalf("rendered width %d exceeds area width %d: %q", w, width, got)
		}
	}
	if got := widget.Render(0); got != "" {
		t.Fatalf("zero width should render nothing, got %q", got)
	}
}
