// Package app runs the interactive worklog session: pick a server, select
// issues, capture time, confirm and submit, then optionally start over.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fakeyudi/worklog/internal/config"
	"github.com/fakeyudi/worklog/internal/profile"
	"github.com/fakeyudi/worklog/internal/prompt"
	"github.com/fakeyudi/worklog/internal/report"
	"github.com/fakeyudi/worklog/internal/selector"
	"github.com/fakeyudi/worklog/internal/tracker"
	"github.com/fakeyudi/worklog/internal/tui"
	"github.com/fakeyudi/worklog/internal/worklog"
	"github.com/fakeyudi/worklog/internal/worktime"
)

// ErrCancelled is returned when the user leaves the session at a top-level
// prompt. It is not a failure.
var ErrCancelled = errors.New("cancelled by user")

// Capture methods.
const (
	MethodTimer  = "timer"
	MethodManual = "manual"
)

const addServerValue = "__add__"

// ProfileStore is the part of config.Store the session needs.
type ProfileStore interface {
	Load() ([]config.ServerProfile, error)
	Save(p config.ServerProfile) error
	Path() string
}

// Connector opens an authenticated tracker for a profile.
type Connector func(ctx context.Context, p config.ServerProfile) (tracker.Tracker, error)

// TimerFunc runs the interactive timer for the given issue keys.
type TimerFunc func(ctx context.Context, keys []string) (tui.TimerResult, error)

// SuggestFunc returns issue keys worth offering for a profile, such as
// those referenced in the current git repository.
type SuggestFunc func(ctx context.Context, p config.ServerProfile) []string

// Config wires a Session. Store, Prompter, Connect and Render are required.
type Config struct {
	Store    ProfileStore
	Prompter prompt.Prompter
	Connect  Connector
	Busy     selector.BusyFunc
	Timer    TimerFunc
	Suggest  SuggestFunc
	Render   func(*report.Report) error
	Clock    func() time.Time
	Logger   *slog.Logger

	// ServerName skips the server menu.
	ServerName string
	// VerifyManualKeys looks manual keys up as soon as they are typed.
	VerifyManualKeys bool
}

// Session is one interactive run.
type Session struct {
	cfg Config
	log *slog.Logger
}

// New returns a Session with defaults filled in.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Busy == nil {
		cfg.Busy = func(ctx context.Context, _ string, fn func(context.Context) error) error { return fn(ctx) }
	}
	return &Session{cfg: cfg, log: cfg.Logger}
}

// Run drives the whole session. It returns ErrCancelled when the user backs
// out of the server or view selection, and an error when any worklog failed.
func (s *Session) Run(ctx context.Context) error {
	prof, err := s.chooseServer(ctx)
	if err != nil {
		return err
	}

	var trk tracker.Tracker
	err = s.cfg.Busy(ctx, "Connecting to "+prof.URL+"...", func(ctx context.Context) error {
		var err error
		trk, err = s.cfg.Connect(ctx, prof)
		return err
	})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", prof.Name, err)
	}

	var suggested []string
	if s.cfg.Suggest != nil {
		suggested = s.cfg.Suggest(ctx, prof)
	}

	failed := 0
	// carry holds the selection when the user backs out of time capture.
	var carry []tracker.Issue
	for {
		issues, err := selector.New(selector.Config{
			Profile:          prof,
			Tracker:          trk,
			Prompter:         s.cfg.Prompter,
			Busy:             s.cfg.Busy,
			Suggested:        suggested,
			VerifyManualKeys: s.cfg.VerifyManualKeys,
			Initial:          carry,
			Logger:           s.log,
		}).Run(ctx)
		carry = nil
		if errors.Is(err, prompt.ErrAborted) {
			return ErrCancelled
		}
		if err != nil {
			return err
		}

		verified, err := s.verify(ctx, trk, issues)
		if errors.Is(err, prompt.ErrAborted) {
			carry = issues
			continue
		}
		if err != nil {
			return err
		}
		if len(verified) == 0 {
			continue
		}
		issues = verified

		sum, logged, err := s.logTime(ctx, trk, issues)
		if errors.Is(err, prompt.ErrAborted) {
			s.cfg.Prompter.Println(prompt.Info, "Back to issue selection, nothing was logged.")
			carry = issues
			continue
		}
		if err != nil {
			return err
		}
		if logged {
			if err := s.cfg.Render(report.Build(prof.Name, sum, issues)); err != nil {
				return err
			}
			failed += len(sum.Failed())
		}

		again, err := s.cfg.Prompter.Select(ctx, "Work on another ticket?", []prompt.Option{
			{Label: "Yes.", Value: "yes"},
			{Label: "No.", Value: "no"},
		})
		if err != nil && !errors.Is(err, prompt.ErrAborted) {
			return err
		}
		if again != "yes" {
			break
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d worklog(s) could not be added", failed)
	}
	return nil
}

func (s *Session) chooseServer(ctx context.Context) (config.ServerProfile, error) {
	profiles, err := s.cfg.Store.Load()
	if err != nil {
		return config.ServerProfile{}, err
	}
	if s.cfg.ServerName != "" {
		for _, p := range profiles {
			if p.Name == s.cfg.ServerName {
				return p, nil
			}
		}
		return config.ServerProfile{}, fmt.Errorf("no server named %q in %s", s.cfg.ServerName, s.cfg.Store.Path())
	}
	if len(profiles) == 0 {
		return s.addServer(ctx, nil)
	}

	opts := make([]prompt.Option, 0, len(profiles)+1)
	for _, p := range profiles {
		opts = append(opts, prompt.Option{Label: p.Name + " - " + p.URL, Value: p.Name})
	}
	opts = append(opts, prompt.Option{Label: "Add a new server", Value: addServerValue})
	choice, err := s.cfg.Prompter.Select(ctx, "Please select a server to work with", opts)
	if errors.Is(err, prompt.ErrAborted) {
		return config.ServerProfile{}, ErrCancelled
	}
	if err != nil {
		return config.ServerProfile{}, err
	}
	if choice == addServerValue {
		return s.addServer(ctx, profiles)
	}
	for _, p := range profiles {
		if p.Name == choice {
			return p, nil
		}
	}
	return config.ServerProfile{}, fmt.Errorf("unknown server %q", choice)
}

func (s *Session) addServer(ctx context.Context, existing []config.ServerProfile) (config.ServerProfile, error) {
	taken := make([]string, 0, len(existing))
	for _, p := range existing {
		taken = append(taken, p.Name)
	}
	prof, err := profile.RunSetup(ctx, s.cfg.Prompter, nil, taken)
	if errors.Is(err, prompt.ErrAborted) {
		return config.ServerProfile{}, ErrCancelled
	}
	if err != nil {
		return config.ServerProfile{}, err
	}
	if err := s.cfg.Store.Save(*prof); err != nil {
		return config.ServerProfile{}, err
	}
	s.cfg.Prompter.Println(prompt.Success, fmt.Sprintf("Server %q saved.", prof.Name))
	s.cfg.Prompter.Println(prompt.Warning, config.SecurityWarning(s.cfg.Store.Path()))
	return *prof, nil
}

// verify looks up issues that were never part of a search result and drops
// those the tracker does not know.
func (s *Session) verify(ctx context.Context, trk tracker.Tracker, issues []tracker.Issue) ([]tracker.Issue, error) {
	out := make([]tracker.Issue, 0, len(issues))
	for _, is := range issues {
		if is.Summary != "" {
			out = append(out, is)
			continue
		}
		var got tracker.Issue
		err := s.cfg.Busy(ctx, "Looking up "+is.Key+"...", func(ctx context.Context) error {
			var err error
			got, err = trk.GetIssue(ctx, is.Key)
			return err
		})
		var rej *tracker.RejectedError
		switch {
		case errors.As(err, &rej):
			s.cfg.Prompter.Println(prompt.Failure, fmt.Sprintf("Failed to find issue with key '%s': %s", is.Key, rej.Message))
		case errors.Is(err, prompt.ErrAborted):
			return nil, err
		case err != nil:
			return nil, err
		default:
			out = append(out, got)
		}
	}
	if len(out) < len(issues) && len(out) > 0 {
		s.cfg.Prompter.Println(prompt.Warning, fmt.Sprintf("Continuing with %s.", strings.Join(keys(out), ", ")))
	}
	return out, nil
}

// logTime captures a duration and comment and submits them. logged is false
// when the user discarded the entry. Backing out of any prompt returns
// prompt.ErrAborted so the caller can resume issue selection.
func (s *Session) logTime(ctx context.Context, trk tracker.Tracker, issues []tracker.Issue) (worklog.Summary, bool, error) {
	ks := keys(issues)
	entry, ok, err := s.capture(ctx, ks)
	if err != nil || !ok {
		return worklog.Summary{}, false, err
	}

	yes, err := s.cfg.Prompter.Confirm(ctx,
		fmt.Sprintf("Log %s on %s?", worktime.Format(entry.Duration), strings.Join(ks, ", ")),
		"Log time", "Discard")
	if err != nil {
		return worklog.Summary{}, false, err
	}
	if !yes {
		s.cfg.Prompter.Println(prompt.Warning, "Nothing was logged.")
		return worklog.Summary{}, false, nil
	}

	sum := worklog.NewSubmitter(trk, s.log).Submit(ctx, ks, entry)
	return sum, true, nil
}

// capture asks how the time is measured. ok is false when the timer was
// cancelled; prompt aborts come back as prompt.ErrAborted.
func (s *Session) capture(ctx context.Context, keys []string) (worklog.Entry, bool, error) {
	methods := []prompt.Option{{Label: "Manually", Value: MethodManual}}
	if s.cfg.Timer != nil {
		methods = append([]prompt.Option{{Label: "Automatically (with a timer)", Value: MethodTimer}}, methods...)
	}
	method, err := s.cfg.Prompter.Select(ctx, "How do you want to log the time?", methods)
	if err != nil {
		return worklog.Entry{}, false, err
	}

	var entry worklog.Entry
	if method == MethodTimer {
		start, err := s.cfg.Prompter.Confirm(ctx,
			fmt.Sprintf("Start the timer for %s now?", strings.Join(keys, ", ")), "Start", "Back")
		if err != nil {
			return worklog.Entry{}, false, err
		}
		if !start {
			return worklog.Entry{}, false, prompt.ErrAborted
		}
		res, err := s.cfg.Timer(ctx, keys)
		if errors.Is(err, tui.ErrTimerCancelled) {
			s.cfg.Prompter.Println(prompt.Warning, "Timer cancelled, nothing was logged.")
			return worklog.Entry{}, false, nil
		}
		if err != nil {
			return worklog.Entry{}, false, err
		}
		entry = worklog.Entry{Duration: res.Duration, Started: res.Start}
		s.cfg.Prompter.Println(prompt.Info, fmt.Sprintf("Timer stopped after %s.", worktime.Format(res.Duration)))
	} else {
		d, err := s.askDuration(ctx, "")
		if err != nil {
			return worklog.Entry{}, false, err
		}
		entry = worklog.Entry{Duration: d, Started: s.cfg.Clock().Add(-d)}
	}

	comment, err := s.cfg.Prompter.Input(ctx, prompt.Question{
		Title:     "Enter an optional comment for what you've worked on:",
		Multiline: true,
	})
	if err != nil {
		return worklog.Entry{}, false, err
	}
	entry.Comment = strings.TrimSpace(comment)

	if method == MethodTimer {
		d, err := s.adjust(ctx, entry.Duration)
		if err != nil {
			return worklog.Entry{}, false, err
		}
		entry.Duration = d
	}
	return entry, true, nil
}

// adjust lets the user correct a timed duration until they accept it.
func (s *Session) adjust(ctx context.Context, d time.Duration) (time.Duration, error) {
	for {
		spent := worktime.Format(d)
		choice, err := s.cfg.Prompter.Select(ctx,
			fmt.Sprintf("We've tracked a total of %s. Do you want to adjust the time?", spent),
			[]prompt.Option{
				{Label: fmt.Sprintf("No, %s is fine.", spent), Value: "keep"},
				{Label: "Yes, I want to adjust the time spent.", Value: "adjust"},
			})
		if err != nil {
			return 0, err
		}
		if choice == "keep" {
			return d, nil
		}
		if d, err = s.askDuration(ctx, spent); err != nil {
			return 0, err
		}
	}
}

func (s *Session) askDuration(ctx context.Context, def string) (time.Duration, error) {
	raw, err := s.cfg.Prompter.Input(ctx, prompt.Question{
		Title:       `How much time did you spend, e.g. "1h30m", "45m" or "2h"?`,
		Default:     def,
		Placeholder: "1h30m",
		Validate: func(v string) error {
			_, err := worktime.Parse(v)
			return err
		},
	})
	if err != nil {
		return 0, err
	}
	return worktime.Parse(raw)
}

func keys(issues []tracker.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Key
	}
	return out
}
