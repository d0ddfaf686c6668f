package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// Huh asks questions with charmbracelet/huh forms.
type Huh struct {
	out        io.Writer
	theme      *huh.Theme
	accessible bool
}

// NewHuh returns a Prompter writing messages to out. Accessible mode replaces
// the TUI widgets with plain line prompts (screen readers, dumb terminals).
func NewHuh(out io.Writer, accessible bool) *Huh {
	return &Huh{out: out, theme: huh.ThemeCharm(), accessible: accessible}
}

func (h *Huh) run(ctx context.Context, field huh.Field) error {
	err := huh.NewForm(huh.NewGroup(field)).
		WithTheme(h.theme).
		WithAccessible(h.accessible).
		RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	return err
}

func huhOptions(options []Option) []huh.Option[string] {
	out := make([]huh.Option[string], 0, len(options))
	for _, o := range options {
		out = append(out, huh.NewOption(o.Label, o.Value).Selected(o.Selected))
	}
	return out
}

func (h *Huh) Select(ctx context.Context, title string, options []Option) (string, error) {
	var v string
	field := huh.NewSelect[string]().
		Title(title).
		Options(huhOptions(options)...).
		Value(&v)
	if err := h.run(ctx, field); err != nil {
		return "", err
	}
	return v, nil
}

func (h *Huh) MultiSelect(ctx context.Context, title, description string, options []Option) ([]string, error) {
	var vals []string
	height := len(options) + 2
	if height > 20 {
		height = 20
	}
	field := huh.NewMultiSelect[string]().
		Title(title).
		Description(description).
		Options(huhOptions(options)...).
		Filterable(true).
		Height(height).
		Value(&vals)
	if err := h.run(ctx, field); err != nil {
		return nil, err
	}
	return vals, nil
}

func (h *Huh) Input(ctx context.Context, q Question) (string, error) {
	v := q.Default
	validate := q.Validate
	if validate == nil {
		validate = func(string) error { return nil }
	}
	var field huh.Field
	if q.Multiline {
		field = huh.NewText().
			Title(q.Title).
			Description(q.Description).
			Placeholder(q.Placeholder).
			Validate(validate).
			Value(&v)
	} else {
		in := huh.NewInput().
			Title(q.Title).
			Description(q.Description).
			Placeholder(q.Placeholder).
			Validate(validate).
			Value(&v)
		if q.Secret {
			in = in.EchoMode(huh.EchoModePassword)
		}
		field = in
	}
	if err := h.run(ctx, field); err != nil {
		return "", err
	}
	return v, nil
}

func (h *Huh) Confirm(ctx context.Context, title, affirmative, negative string) (bool, error) {
	v := true
	field := huh.NewConfirm().
		Title(title).
		Affirmative(affirmative).
		Negative(negative).
		Value(&v)
	if err := h.run(ctx, field); err != nil {
		return false, err
	}
	return v, nil
}

func (h *Huh) Println(kind Kind, msg string) {
	Print(h.out, kind, msg)
}

// Print writes msg to w in the style of kind.
func Print(w io.Writer, kind Kind, msg string) {
	fmt.Fprintln(w, Style(kind).Render(msg))
}

// Style returns the lipgloss style used for messages of the given kind.
func Style(kind Kind) lipgloss.Style {
	switch kind {
	case Success:
		return successStyle
	case Warning:
		return warningStyle
	case Failure:
		return failureStyle
	default:
		return infoStyle
	}
}
