// Package worklog posts a captured duration to every selected issue.
package worklog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fakeyudi/worklog/internal/tracker"
)

// Poster is the part of the tracker the submitter needs.
type Poster interface {
	PostWorklog(ctx context.Context, entry tracker.WorklogEntry) (tracker.Worklog, error)
}

// ErrSkipped marks issues that were not posted because the context was
// cancelled before their turn.
var ErrSkipped = errors.New("skipped: submission cancelled")

// Entry is the time captured once and logged against each issue.
type Entry struct {
	Duration time.Duration
	Comment  string
	Started  time.Time
}

// Result is the outcome for one issue.
type Result struct {
	IssueKey  string
	WorklogID string
	Err       error
}

// OK reports whether the worklog was created.
func (r Result) OK() bool { return r.Err == nil }

// Skipped reports whether the issue was never attempted.
func (r Result) Skipped() bool { return errors.Is(r.Err, ErrSkipped) }

// Reason is the failure as shown to the user: the tracker's own message for
// rejected requests, the full error otherwise.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	var rej *tracker.RejectedError
	if errors.As(r.Err, &rej) && rej.Message != "" {
		return rej.Message
	}
	return r.Err.Error()
}

// Summary collects the per-issue results of one submission, in selection order.
type Summary struct {
	Entry   Entry
	Results []Result
}

// Succeeded returns the results that were posted.
func (s Summary) Succeeded() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the results that were not posted, including skipped ones.
func (s Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// FailedKeys returns the issue keys that still need a worklog.
func (s Summary) FailedKeys() []string {
	var keys []string
	for _, r := range s.Failed() {
		keys = append(keys, r.IssueKey)
	}
	return keys
}

// Err joins every per-issue error, or returns nil when all succeeded.
func (s Summary) Err() error {
	var errs []error
	for _, r := range s.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", r.IssueKey, r.Err))
	}
	return errors.Join(errs...)
}

// Submitter posts worklogs through a Poster.
type Submitter struct {
	poster Poster
	log    *slog.Logger
}

// NewSubmitter returns a Submitter. A nil logger uses slog.Default().
func NewSubmitter(p Poster, log *slog.Logger) *Submitter {
	if log == nil {
		log = slog.Default()
	}
	return &Submitter{poster: p, log: log}
}

// Submit posts entry to each issue in keys order. Duplicate keys are posted
// once. A failure for one issue does not stop the others.
func (s *Submitter) Submit(ctx context.Context, keys []string, entry Entry) Summary {
	sum := Summary{Entry: entry}
	if entry.Duration <= 0 {
		err := fmt.Errorf("duration must be positive, got %v", entry.Duration)
		for _, k := range dedupe(keys) {
			sum.Results = append(sum.Results, Result{IssueKey: k, Err: err})
		}
		return sum
	}

	for _, key := range dedupe(keys) {
		if ctx.Err() != nil {
			sum.Results = append(sum.Results, Result{IssueKey: key, Err: ErrSkipped})
			continue
		}
		s.log.Debug("adding worklog", slog.String("issue", key), slog.Duration("duration", entry.Duration))
		wl, err := s.poster.PostWorklog(ctx, tracker.WorklogEntry{
			IssueKey: key,
			Duration: entry.Duration,
			Comment:  entry.Comment,
			Started:  entry.Started,
		})
		if err != nil {
			s.log.Info("worklog failed", slog.String("issue", key), slog.Any("error", err))
			sum.Results = append(sum.Results, Result{IssueKey: key, Err: err})
			continue
		}
		sum.Results = append(sum.Results, Result{IssueKey: key, WorklogID: wl.ID})
	}
	return sum
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
