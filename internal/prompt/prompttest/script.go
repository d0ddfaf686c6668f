// Package prompttest provides a scripted prompt.Prompter for tests.
package prompttest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/fakeyudi/worklog/internal/prompt"
)

// Call records one question asked during a scripted run.
type Call struct {
	Kind    string
	Title   string
	Options []prompt.Option
}

// Step answers the next question. Title must be a substring of the asked title.
type Step struct {
	kind   string
	title  string
	answer func(options []prompt.Option) ([]string, bool, error)
}

// Select answers a Select prompt with value.
func Select(title, value string) Step {
	return Step{kind: "select", title: title, answer: func([]prompt.Option) ([]string, bool, error) {
		return []string{value}, false, nil
	}}
}

// MultiSelect answers a MultiSelect prompt with exactly values.
func MultiSelect(title string, values ...string) Step {
	return Step{kind: "multiselect", title: title, answer: func([]prompt.Option) ([]string, bool, error) {
		return values, false, nil
	}}
}

// KeepChecked answers a MultiSelect with its pre-selected options.
func KeepChecked(title string) Step {
	return Step{kind: "multiselect", title: title, answer: func(opts []prompt.Option) ([]string, bool, error) {
		var vals []string
		for _, o := range opts {
			if o.Selected {
				vals = append(vals, o.Value)
			}
		}
		return vals, false, nil
	}}
}

// Input answers an Input prompt with text.
func Input(title, text string) Step {
	return Step{kind: "input", title: title, answer: func([]prompt.Option) ([]string, bool, error) {
		return []string{text}, false, nil
	}}
}

// Confirm answers a Confirm prompt.
func Confirm(title string, yes bool) Step {
	return Step{kind: "confirm", title: title, answer: func([]prompt.Option) ([]string, bool, error) {
		return nil, yes, nil
	}}
}

// Abort cancels a prompt of the given kind ("select", "multiselect", "input", "confirm").
func Abort(kind, title string) Step {
	return Step{kind: kind, title: title, answer: func([]prompt.Option) ([]string, bool, error) {
		return nil, false, prompt.ErrAborted
	}}
}

// Script replays Steps in order and fails the test on any mismatch.
type Script struct {
	t        testing.TB
	steps    []Step
	Calls    []Call
	Messages []string
}

// New returns a Script answering with steps.
func New(t testing.TB, steps ...Step) *Script {
	return &Script{t: t, steps: steps}
}

// Done fails the test if some steps were never used.
func (s *Script) Done() {
	s.t.Helper()
	if len(s.steps) > 0 {
		s.t.Errorf("prompttest: %d unused step(s), next is %s %q", len(s.steps), s.steps[0].kind, s.steps[0].title)
	}
}

// Printed reports whether a message containing substr was printed.
func (s *Script) Printed(substr string) bool {
	for _, m := range s.Messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func (s *Script) next(kind, title string, options []prompt.Option) ([]string, bool, error) {
	s.t.Helper()
	s.Calls = append(s.Calls, Call{Kind: kind, Title: title, Options: options})
	if len(s.steps) == 0 {
		s.t.Errorf("prompttest: unexpected %s %q, script exhausted", kind, title)
		return nil, false, prompt.ErrAborted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	if step.kind != kind || !strings.Contains(title, step.title) {
		s.t.Errorf("prompttest: asked %s %q, script expected %s %q", kind, title, step.kind, step.title)
		return nil, false, prompt.ErrAborted
	}
	return step.answer(options)
}

func (s *Script) Select(_ context.Context, title string, options []prompt.Option) (string, error) {
	vals, _, err := s.next("select", title, options)
	if err != nil {
		return "", err
	}
	for _, o := range options {
		if o.Value == vals[0] {
			return vals[0], nil
		}
	}
	s.t.Errorf("prompttest: %q is not an option of %q", vals[0], title)
	return "", prompt.ErrAborted
}

func (s *Script) MultiSelect(_ context.Context, title, _ string, options []prompt.Option) ([]string, error) {
	vals, _, err := s.next("multiselect", title, options)
	return vals, err
}

func (s *Script) Input(_ context.Context, q prompt.Question) (string, error) {
	vals, _, err := s.next("input", q.Title, nil)
	if err != nil {
		return "", err
	}
	if q.Validate != nil {
		if verr := q.Validate(vals[0]); verr != nil {
			return "", fmt.Errorf("prompttest: answer %q fails validation: %w", vals[0], verr)
		}
	}
	return vals[0], nil
}

func (s *Script) Confirm(_ context.Context, title, _, _ string) (bool, error) {
	_, yes, err := s.next("confirm", title, nil)
	return yes, err
}

func (s *Script) Println(_ prompt.Kind, msg string) {
	s.Messages = append(s.Messages, msg)
}
