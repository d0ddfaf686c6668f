package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fakeyudi/worklog/internal/prompt"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func press(m tea.Model, key tea.KeyMsg) (tea.Model, tea.Cmd) {
	return m.Update(key)
}

func TestTimerRoundsStoppedDuration(t *testing.T) {
	cases := []struct {
		elapsed time.Duration
		want    time.Duration
	}{
		{125 * time.Second, 2 * time.Minute},
		{20 * time.Second, time.Minute},
		{89 * time.Second, time.Minute},
		{90 * time.Second, 2 * time.Minute},
		{time.Hour + 29*time.Second, time.Hour},
	}
	for _, tc := range cases {
		clock := &fakeClock{now: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)}
		m := newTimerModel([]string{"ABC-1"}, clock.Now, 0)
		clock.Advance(tc.elapsed)

		next, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
		if cmd == nil {
			t.Fatalf("%v: expected quit command", tc.elapsed)
		}
		res, err := next.(timerModel).result()
		if err != nil {
			t.Fatalf("%v: %v", tc.elapsed, err)
		}
		if res.Elapsed != tc.elapsed || res.Duration != tc.want {
			t.Errorf("elapsed %v: got %v rounded to %v, want %v", tc.elapsed, res.Elapsed, res.Duration, tc.want)
		}
	}
}

func TestTimerStopKeys(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyEnter},
		{Type: tea.KeySpace, Runes: []rune{' '}},
		{Type: tea.KeyRunes, Runes: []rune{'s'}},
	}
	for _, k := range keys {
		clock := &fakeClock{now: time.Unix(0, 0)}
		m := newTimerModel(nil, clock.Now, 0)
		clock.Advance(10 * time.Minute)
		next, _ := press(m, k)
		if res, err := next.(timerModel).result(); err != nil || res.Duration != 10*time.Minute {
			t.Errorf("key %q: res=%+v err=%v", k.String(), res, err)
		}
	}
}

func TestTimerCancelKeys(t *testing.T) {
	for _, k := range []tea.KeyMsg{{Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		m := newTimerModel(nil, time.Now, 0)
		next, cmd := press(m, k)
		if cmd == nil {
			t.Errorf("key %q: expected quit", k.String())
		}
		if _, err := next.(timerModel).result(); !errors.Is(err, ErrTimerCancelled) {
			t.Errorf("key %q: err = %v, want ErrTimerCancelled", k.String(), err)
		}
	}
}

func TestTimerIgnoresOtherKeys(t *testing.T) {
	m := newTimerModel(nil, time.Now, 0)
	next, cmd := press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	if cmd != nil {
		t.Error("unexpected command for an unbound key")
	}
	if _, err := next.(timerModel).result(); !errors.Is(err, ErrTimerCancelled) {
		t.Error("timer should still be running")
	}
}

func TestTimerViewShowsIssuesAndNotes(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 6, 14, 5, 0, 0, time.Local)}
	m := newTimerModel([]string{"ABC-1", "OPS-2"}, clock.Now, 0)
	view := m.View()
	for _, want := range []string{"ABC-1, OPS-2", "14:05", "esc cancel"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "Notes") {
		t.Error("notes row should be hidden without notes")
	}

	next, _ := m.Update(notesMsg(3))
	if view := next.View(); !strings.Contains(view, "Notes") || !strings.Contains(view, "3") {
		t.Errorf("view after notes:\n%s", view)
	}
}

func TestWatchNotesFiresOnReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timer.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 8)
	stop, err := watchNotes(path, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("watchNotes: %v", err)
	}
	defer stop()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	tmp := filepath.Join(dir, "timer-1.json.tmp")
	if err := os.WriteFile(tmp, []byte(`{"notes":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification for the replaced file")
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                      "0m00s",
		59 * time.Second:                       "0m59s",
		time.Hour + 2*time.Minute + 3e9:        "1h02m03s",
		12*time.Minute + 1500*time.Millisecond: "12m01s",
	}
	for in, want := range cases {
		if got := FormatElapsed(in); got != want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestBusyModelCancels(t *testing.T) {
	cancelled := false
	m := newBusyModel("Loading issues...", func() { cancelled = true })
	if !strings.Contains(m.View(), "Loading issues...") {
		t.Errorf("view = %q", m.View())
	}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled || !next.(busyModel).cancelled {
		t.Error("ctrl+c should cancel the work")
	}
	if _, cmd := next.Update(busyDoneMsg{}); cmd == nil {
		t.Error("done message should quit")
	}
}

func TestRunBusyWithoutTerminalRunsDirectly(t *testing.T) {
	if IsTerminal(os.Stderr) {
		t.Skip("stderr is a terminal")
	}
	called := false
	err := RunBusy(context.Background(), "x", func(context.Context) error {
		called = true
		return prompt.ErrAborted
	})
	if !called || !errors.Is(err, prompt.ErrAborted) {
		t.Errorf("called=%v err=%v", called, err)
	}
}
