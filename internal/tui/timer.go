package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/fsnotify/fsnotify"

	"github.com/fakeyudi/worklog/internal/worktime"
)

// ErrTimerCancelled is returned when the user leaves the timer without
// stopping it. Nothing should be logged.
var ErrTimerCancelled = errors.New("timer cancelled")

// TimerOptions configures RunTimer.
type TimerOptions struct {
	Issues []string         // shown in the header
	Clock  func() time.Time // defaults to time.Now

	// WatchPath is a file whose changes refresh the note count through
	// Notes. Both are optional.
	WatchPath string
	Notes     func() int

	Input  io.Reader
	Output io.Writer
	Logger *slog.Logger
}

// TimerResult is a stopped timer.
type TimerResult struct {
	Start    time.Time
	Stop     time.Time
	Elapsed  time.Duration
	Duration time.Duration // Elapsed rounded to whole minutes
}

type notesMsg int

type timerModel struct {
	issues    []string
	clock     func() time.Time
	start     time.Time
	stop      time.Time
	spinner   spinner.Model
	watch     stopwatch.Model
	notes     int
	stopped   bool
	cancelled bool
}

func newTimerModel(issues []string, clock func() time.Time, notes int) timerModel {
	return timerModel{
		issues:  issues,
		clock:   clock,
		start:   clock(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Pulse), spinner.WithStyle(spinnerStyle)),
		watch:   stopwatch.NewWithInterval(time.Second),
		notes:   notes,
	}
}

func (m timerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.watch.Init())
}

func (m timerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", " ", "s":
			m.stopped = true
			m.stop = m.clock()
			return m, tea.Quit
		case "esc", "ctrl+c", "q":
			m.cancelled = true
			return m, tea.Quit
		}
		return m, nil
	case notesMsg:
		m.notes = int(msg)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.watch, cmd = m.watch.Update(msg)
	return m, cmd
}

func (m timerModel) View() string {
	if m.stopped || m.cancelled {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Logging time") + "\n\n")
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-8s", label)) + "  " + value + "\n")
	}
	row("Issues", strings.Join(m.issues, ", "))
	row("Started", m.start.Format("15:04"))
	row("Elapsed", m.spinner.View()+" "+timeStyle.Render(m.watch.View()))
	if m.notes > 0 {
		row("Notes", fmt.Sprintf("%d", m.notes))
	}
	sb.WriteString("\n" + hintStyle.Render("  enter/space/s stop and log  ·  esc cancel") + "\n")
	return sb.String()
}

func (m timerModel) result() (TimerResult, error) {
	if !m.stopped {
		return TimerResult{}, ErrTimerCancelled
	}
	elapsed := m.stop.Sub(m.start)
	if elapsed < 0 {
		elapsed = 0
	}
	return TimerResult{
		Start:    m.start,
		Stop:     m.stop,
		Elapsed:  elapsed,
		Duration: worktime.RoundToMinute(elapsed),
	}, nil
}

// RunTimer shows a running stopwatch until the user stops or cancels it. The
// duration is measured with opts.Clock between program start and the stop
// key, then rounded to whole minutes.
func RunTimer(ctx context.Context, opts TimerOptions) (TimerResult, error) {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	notes := 0
	if opts.Notes != nil {
		notes = opts.Notes()
	}

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	p := tea.NewProgram(newTimerModel(opts.Issues, clock, notes), progOpts...)

	if opts.WatchPath != "" && opts.Notes != nil {
		stop, err := watchNotes(opts.WatchPath, func() { p.Send(notesMsg(opts.Notes())) })
		if err != nil {
			log.Debug("not watching timer notes", slog.String("path", opts.WatchPath), slog.Any("err", err))
		} else {
			defer stop()
		}
	}

	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return TimerResult{}, ctx.Err()
		}
		return TimerResult{}, fmt.Errorf("running timer: %w", err)
	}
	m, ok := final.(timerModel)
	if !ok {
		return TimerResult{}, fmt.Errorf("running timer: unexpected model %T", final)
	}
	return m.result()
}

// watchNotes calls changed whenever path is written or replaced. The
// directory is watched because the file is replaced by rename on save.
func watchNotes(path string, changed func()) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	name := filepath.Clean(path)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) == name && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					changed()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return func() {
		w.Close()
		<-done
	}, nil
}

// FormatElapsed renders a running duration as 1h02m03s for status output.
func FormatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(f.Fd())
}
