package tui

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fakeyudi/worklog/internal/prompt"
)

type busyDoneMsg struct{}

type busyModel struct {
	title     string
	spinner   spinner.Model
	cancel    context.CancelFunc
	cancelled bool
}

func newBusyModel(title string, cancel context.CancelFunc) busyModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle))
	return busyModel{title: title, spinner: sp, cancel: cancel}
}

func (m busyModel) Init() tea.Cmd { return m.spinner.Tick }

func (m busyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case busyDoneMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			// The work notices the cancellation and reports back with busyDoneMsg.
			m.cancelled = true
			m.cancel()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m busyModel) View() string {
	if m.cancelled {
		return m.spinner.View() + " " + hintStyle.Render("cancelling…") + "\n"
	}
	return m.spinner.View() + " " + m.title + "\n"
}

// RunBusy runs fn while a spinner with title is shown on stderr. Without a
// terminal fn simply runs. Esc or Ctrl-C cancels fn's context; the result is
// then prompt.ErrAborted.
func RunBusy(ctx context.Context, title string, fn func(context.Context) error) error {
	if !IsTerminal(os.Stderr) {
		return fn(ctx)
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newBusyModel(title, cancel), tea.WithOutput(os.Stderr))
	result := make(chan error, 1)
	go func() {
		result <- fn(workCtx)
		p.Send(busyDoneMsg{})
	}()

	final, runErr := p.Run()
	if runErr != nil {
		cancel()
	}
	err := <-result
	if m, ok := final.(busyModel); ok && m.cancelled && ctx.Err() == nil && errors.Is(err, context.Canceled) {
		return prompt.ErrAborted
	}
	return err
}
