// Package selector drives the interactive issue selection: the user picks a
// view, searches the tracker, and checks issues until they are ready to log
// time. The flow is an explicit state machine; every handler returns the
// next state.
package selector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/fakeyudi/worklog/internal/config"
	"github.com/fakeyudi/worklog/internal/prompt"
	"github.com/fakeyudi/worklog/internal/tracker"
)

// State is a step of the selection flow.
type State int

const (
	StateViewSelect State = iota
	StateSearchRunning
	StateIssueList
	StateManualEntry
	StateSelectionReview
	StateNextAction
	StateDone
)

func (s State) String() string {
	switch s {
	case StateViewSelect:
		return "view-select"
	case StateSearchRunning:
		return "search-running"
	case StateIssueList:
		return "issue-list"
	case StateManualEntry:
		return "manual-entry"
	case StateSelectionReview:
		return "selection-review"
	case StateNextAction:
		return "next-action"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// parent is where an aborted prompt returns to.
func (s State) parent() State {
	if s == StateDone {
		return StateDone
	}
	return StateViewSelect
}

// View selector values.
const (
	ViewMine    = "view:mine"
	ViewTeam    = "view:team"
	ViewProject = "view:project"
	ViewGit     = "view:git"
	ViewKeyword = "view:keyword"
	ViewJQL     = "view:jql"
	ViewManual  = "view:manual"
	ViewReview  = "view:review"
	ViewDone    = "view:done"

	// BackValue is the issue list entry that returns to the view selector.
	BackValue = "__back__"

	ActionLog  = "log"
	ActionKeep = "keep"
)

// KeywordSearchLimit caps keyword search results.
const KeywordSearchLimit = 50

const summaryWidth = 72

// Searcher is the part of the tracker the selector uses.
type Searcher interface {
	SearchIssues(ctx context.Context, jql string, limit int) ([]tracker.Issue, error)
	GetIssue(ctx context.Context, key string) (tracker.Issue, error)
}

// BusyFunc runs fn while showing title as a progress indicator.
type BusyFunc func(ctx context.Context, title string, fn func(context.Context) error) error

// Config wires the selector. Profile, Tracker and Prompter are required.
type Config struct {
	Profile  config.ServerProfile
	Tracker  Searcher
	Prompter prompt.Prompter
	Busy     BusyFunc

	// Suggested are issue keys found in the current git repository.
	Suggested []string

	// VerifyManualKeys looks up typed keys before adding them.
	VerifyManualKeys bool

	// Initial pre-populates the selection, e.g. when the user comes back
	// from time capture.
	Initial []tracker.Issue

	Logger *slog.Logger
}

type view struct {
	jql     string
	limit   int
	title   string // multi-select title
	noun    string // "issue(s) assigned to you"
	fixed   []tracker.Issue
	isFixed bool
}

// Selector holds the state of one selection session.
type Selector struct {
	cfg    Config
	log    *slog.Logger
	set    *SelectionSet
	known  map[string]tracker.Issue
	view   view
	issues []tracker.Issue
}

// New returns a Selector ready to Run.
func New(cfg Config) *Selector {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Busy == nil {
		cfg.Busy = func(ctx context.Context, _ string, fn func(context.Context) error) error {
			return fn(ctx)
		}
	}
	s := &Selector{
		cfg:   cfg,
		log:   log,
		set:   NewSelectionSet(),
		known: make(map[string]tracker.Issue),
	}
	for _, is := range cfg.Initial {
		s.set.Add(is.Key)
		if is.Summary != "" {
			s.known[is.Key] = is
		}
	}
	return s
}

// Selection exposes the current selection.
func (s *Selector) Selection() *SelectionSet {
	return s.set
}

// Run drives the flow until the user is done selecting. It returns the
// selected issues in selection order; issues never seen in a search carry
// only their key. Aborting at the view selector returns prompt.ErrAborted.
func (s *Selector) Run(ctx context.Context) ([]tracker.Issue, error) {
	state := StateViewSelect
	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := s.step(ctx, state)
		switch {
		case errors.Is(err, prompt.ErrAborted):
			if state == StateViewSelect {
				return nil, prompt.ErrAborted
			}
			next = state.parent()
		case err != nil:
			return nil, err
		}
		s.log.Debug("selector transition", slog.String("from", state.String()), slog.String("to", next.String()))
		state = next
	}
	out := make([]tracker.Issue, 0, s.set.Len())
	for _, k := range s.set.Keys() {
		if is, ok := s.known[k]; ok {
			out = append(out, is)
			continue
		}
		out = append(out, tracker.Issue{Key: k})
	}
	return out, nil
}

func (s *Selector) step(ctx context.Context, st State) (State, error) {
	switch st {
	case StateViewSelect:
		return s.viewSelect(ctx)
	case StateSearchRunning:
		return s.search(ctx)
	case StateIssueList:
		return s.issueList(ctx)
	case StateManualEntry:
		return s.manualEntry(ctx)
	case StateSelectionReview:
		return s.review(ctx)
	case StateNextAction:
		return s.nextAction(ctx)
	}
	return StateDone, fmt.Errorf("selector: unknown state %v", st)
}

// ViewOptions lists the views offered for the current profile and selection.
func (s *Selector) ViewOptions() []prompt.Option {
	opts := []prompt.Option{{Label: "My assigned issues", Value: ViewMine}}
	if s.cfg.Profile.TeamIssueJQL != "" {
		opts = append(opts, prompt.Option{Label: "Shared/team buckets", Value: ViewTeam})
	}
	if len(s.cfg.Profile.ProjectKeys) > 0 {
		opts = append(opts, prompt.Option{
			Label: "All project tickets (" + strings.Join(s.cfg.Profile.ProjectKeys, ", ") + ")",
			Value: ViewProject,
		})
	}
	if len(s.cfg.Suggested) > 0 {
		opts = append(opts, prompt.Option{Label: "Issues referenced in this git repository", Value: ViewGit})
	}
	opts = append(opts,
		prompt.Option{Label: "Search Jira by keywords", Value: ViewKeyword},
		prompt.Option{Label: "Search Jira with custom JQL", Value: ViewJQL},
		prompt.Option{Label: "Enter issue key manually", Value: ViewManual},
		prompt.Option{Label: fmt.Sprintf("Review current selection (%d selected)", s.set.Len()), Value: ViewReview},
		prompt.Option{Label: "Done selecting issues", Value: ViewDone},
	)
	return opts
}

func (s *Selector) viewSelect(ctx context.Context) (State, error) {
	choice, err := s.cfg.Prompter.Select(ctx, "How would you like to find issues?", s.ViewOptions())
	if err != nil {
		return StateViewSelect, err
	}
	p := s.cfg.Profile
	switch choice {
	case ViewMine:
		jql := p.IssueJQL
		if jql == "" {
			jql = config.DefaultIssueJQL
		}
		s.view = view{jql: jql, title: "Select from your assigned issues", noun: "issue(s) assigned to you"}
	case ViewTeam:
		s.view = view{jql: p.TeamIssueJQL, title: "Select shared/team issues", noun: "team issue(s)"}
	case ViewProject:
		s.view = view{jql: ProjectJQL(p.ProjectKeys), title: "Select project issues", noun: "project issue(s)"}
	case ViewGit:
		fixed := make([]tracker.Issue, 0, len(s.cfg.Suggested))
		for _, k := range s.cfg.Suggested {
			is, ok := s.known[k]
			if !ok {
				is = tracker.Issue{Key: k}
			}
			fixed = append(fixed, is)
		}
		s.view = view{title: "Select issues referenced in git", noun: "issue(s) referenced in git", fixed: fixed, isFixed: true}
	case ViewKeyword:
		term, err := s.cfg.Prompter.Input(ctx, prompt.Question{
			Title:       "Search term to look for in Jira:",
			Description: "Matches summary and description; include an issue key to find it directly.",
			Validate:    nonEmpty,
		})
		if err != nil {
			return StateViewSelect, abortToView(err)
		}
		s.view = view{jql: KeywordJQL(strings.TrimSpace(term)), limit: KeywordSearchLimit,
			title: "Select issues from keyword search", noun: "issue(s) from keyword search"}
	case ViewJQL:
		jql, err := s.cfg.Prompter.Input(ctx, prompt.Question{
			Title:       "Enter the JQL to run:",
			Description: "Example: project = ABC AND statusCategory != Done",
			Multiline:   true,
			Validate:    nonEmpty,
		})
		if err != nil {
			return StateViewSelect, abortToView(err)
		}
		s.view = view{jql: strings.TrimSpace(jql), title: "Select issues from custom JQL", noun: "issue(s) from custom JQL"}
	case ViewManual:
		return StateManualEntry, nil
	case ViewReview:
		return StateSelectionReview, nil
	case ViewDone:
		if err := Require(s.set); err != nil {
			s.cfg.Prompter.Println(prompt.Warning, err.Error())
			return StateViewSelect, nil
		}
		return StateDone, nil
	default:
		return StateViewSelect, fmt.Errorf("selector: unsupported view %q", choice)
	}
	return StateSearchRunning, nil
}

func (s *Selector) search(ctx context.Context) (State, error) {
	if s.view.isFixed {
		s.issues = s.view.fixed
		return StateIssueList, nil
	}
	s.log.Debug("searching issues", slog.String("jql", s.view.jql), slog.Int("limit", s.view.limit))
	var found []tracker.Issue
	err := s.cfg.Busy(ctx, "Loading issues...", func(ctx context.Context) error {
		var err error
		found, err = s.cfg.Tracker.SearchIssues(ctx, s.view.jql, s.view.limit)
		return err
	})
	if err != nil {
		var rej *tracker.RejectedError
		if errors.As(err, &rej) {
			s.cfg.Prompter.Println(prompt.Failure, "Failed to run JQL search: "+rej.Message)
			return StateViewSelect, nil
		}
		return StateViewSelect, err
	}
	for _, is := range found {
		s.known[is.Key] = is
	}
	s.issues = found
	kind := prompt.Success
	if len(found) == 0 {
		kind = prompt.Warning
	}
	s.cfg.Prompter.Println(kind, fmt.Sprintf("Loaded %d %s.", len(found), s.view.noun))
	return StateIssueList, nil
}

func (s *Selector) issueList(ctx context.Context) (State, error) {
	if len(s.issues) == 0 {
		s.cfg.Prompter.Println(prompt.Warning, "No issues matched that choice.")
		return StateViewSelect, nil
	}
	opts := make([]prompt.Option, 0, len(s.issues)+1)
	viewKeys := make([]string, 0, len(s.issues))
	for _, is := range s.issues {
		viewKeys = append(viewKeys, is.Key)
		opts = append(opts, prompt.Option{Label: IssueLabel(is), Value: is.Key, Selected: s.set.Contains(is.Key)})
	}
	opts = append(opts, prompt.Option{Label: "Back to view selector", Value: BackValue})

	chosen, err := s.cfg.Prompter.MultiSelect(ctx, s.view.title,
		"Space toggles an issue; pick 'Back to view selector' to leave the selection unchanged.", opts)
	if err != nil {
		return StateViewSelect, err
	}
	for _, v := range chosen {
		if v == BackValue {
			return StateViewSelect, nil
		}
	}
	if s.set.SyncFromView(viewKeys, chosen) {
		return StateNextAction, nil
	}
	return StateViewSelect, nil
}

func (s *Selector) manualEntry(ctx context.Context) (State, error) {
	raw, err := s.cfg.Prompter.Input(ctx, prompt.Question{
		Title:       "Enter the Jira issue key:",
		Placeholder: "TEAM-123",
		Validate: func(v string) error {
			if !IsIssueKey(NormalizeKey(v)) {
				return fmt.Errorf("%q is not an issue key (expected e.g. TEAM-123)", strings.TrimSpace(v))
			}
			return nil
		},
	})
	if err != nil {
		return StateViewSelect, err
	}
	key := NormalizeKey(raw)
	if !IsIssueKey(key) {
		s.cfg.Prompter.Println(prompt.Failure, fmt.Sprintf("%q is not an issue key.", key))
		return StateViewSelect, nil
	}
	if s.set.Contains(key) {
		s.cfg.Prompter.Println(prompt.Warning, fmt.Sprintf("Issue %s is already selected.", key))
		return StateViewSelect, nil
	}
	if s.cfg.VerifyManualKeys {
		var is tracker.Issue
		err := s.cfg.Busy(ctx, "Looking up "+key+"...", func(ctx context.Context) error {
			var err error
			is, err = s.cfg.Tracker.GetIssue(ctx, key)
			return err
		})
		var rej *tracker.RejectedError
		switch {
		case tracker.IsNotFound(err):
			s.cfg.Prompter.Println(prompt.Failure, fmt.Sprintf("Issue %s was not found.", key))
			return StateViewSelect, nil
		case errors.As(err, &rej):
			s.cfg.Prompter.Println(prompt.Failure, fmt.Sprintf("Cannot use %s: %s", key, rej.Message))
			return StateViewSelect, nil
		case err != nil:
			return StateViewSelect, err
		}
		s.known[key] = is
	}
	s.set.Add(key)
	return StateNextAction, nil
}

func (s *Selector) review(ctx context.Context) (State, error) {
	if s.set.Len() == 0 {
		s.cfg.Prompter.Println(prompt.Warning, "No issues selected yet.")
		return StateViewSelect, nil
	}
	opts := make([]prompt.Option, 0, s.set.Len())
	for _, k := range s.set.Keys() {
		label := k
		if is, ok := s.known[k]; ok {
			label = IssueLabel(is)
		}
		opts = append(opts, prompt.Option{Label: label, Value: k, Selected: true})
	}
	kept, err := s.cfg.Prompter.MultiSelect(ctx, "Review selected issues", "Uncheck any issues you want to remove.", opts)
	if err != nil {
		return StateViewSelect, err
	}
	if s.set.Retain(kept) {
		return StateNextAction, nil
	}
	return StateViewSelect, nil
}

func (s *Selector) nextAction(ctx context.Context) (State, error) {
	if s.set.Len() == 0 {
		return StateViewSelect, nil
	}
	choice, err := s.cfg.Prompter.Select(ctx, fmt.Sprintf("%d issue(s) selected. What next?", s.set.Len()), []prompt.Option{
		{Label: "Log time now", Value: ActionLog},
		{Label: "Keep selecting issues", Value: ActionKeep},
	})
	if err != nil {
		return StateViewSelect, err
	}
	if choice == ActionLog {
		return StateDone, nil
	}
	return StateViewSelect, nil
}

// IssueLabel renders an issue as a single option line, truncating long summaries.
func IssueLabel(is tracker.Issue) string {
	if is.Summary == "" {
		return is.Key
	}
	label := is.Key + " - " + runewidth.Truncate(is.Summary, summaryWidth, "…")
	if is.Status != "" {
		label += " [" + is.Status + "]"
	}
	return label
}

func nonEmpty(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("please enter a value")
	}
	return nil
}

// abortToView keeps an aborted text prompt inside the view selector from
// cancelling the whole session.
func abortToView(err error) error {
	if errors.Is(err, prompt.ErrAborted) {
		return nil
	}
	return err
}
