// Package prompt abstracts the interactive questions asked on the terminal so
// the selection flow can be driven by a script in tests.
package prompt

import (
	"context"
	"errors"
)

// ErrAborted is returned when the user cancels a prompt (Ctrl-C or Esc).
var ErrAborted = errors.New("prompt aborted")

// Option is one choice of a Select or MultiSelect.
type Option struct {
	Label    string
	Value    string
	Selected bool // pre-checked in a MultiSelect
}

// Question describes a free-text prompt.
type Question struct {
	Title       string
	Description string
	Placeholder string
	Default     string
	Secret      bool // hide the typed characters
	Multiline   bool
	Validate    func(string) error
}

// Kind selects the style of a printed message.
type Kind int

const (
	Info Kind = iota
	Success
	Warning
	Failure
)

// Prompter asks the user questions. Every method returns ErrAborted when the
// user cancels.
type Prompter interface {
	Select(ctx context.Context, title string, options []Option) (string, error)
	MultiSelect(ctx context.Context, title, description string, options []Option) ([]string, error)
	Input(ctx context.Context, q Question) (string, error)
	Confirm(ctx context.Context, title, affirmative, negative string) (bool, error)
	Println(kind Kind, msg string)
}
