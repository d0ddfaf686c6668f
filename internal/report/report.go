// Package report renders the outcome of a worklog submission for the user.
package report

import (
	"time"

	"github.com/fakeyudi/worklog/internal/tracker"
	"github.com/fakeyudi/worklog/internal/worklog"
	"github.com/fakeyudi/worklog/internal/worktime"
)

// Entry outcomes.
const (
	StatusLogged  = "logged"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Report is the renderable summary of one submission.
type Report struct {
	Server          string    `json:"server,omitempty" yaml:"server,omitempty"`
	Started         time.Time `json:"started" yaml:"started"`
	Duration        string    `json:"duration" yaml:"duration"` // e.g. "1h30m"
	DurationSeconds int       `json:"duration_seconds" yaml:"duration_seconds"`
	Comment         string    `json:"comment,omitempty" yaml:"comment,omitempty"`
	Entries         []Entry   `json:"entries" yaml:"entries"`
	Logged          int       `json:"logged" yaml:"logged"`
	Failed          int       `json:"failed" yaml:"failed"`
}

// Entry is the outcome for one issue.
type Entry struct {
	IssueKey  string `json:"issue_key" yaml:"issue_key"`
	Summary   string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Status    string `json:"status" yaml:"status"`
	WorklogID string `json:"worklog_id,omitempty" yaml:"worklog_id,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Build turns a submission summary into a Report. issues supplies the
// summaries shown next to each key; keys missing from it are listed bare.
func Build(server string, sum worklog.Summary, issues []tracker.Issue) *Report {
	titles := make(map[string]string, len(issues))
	for _, is := range issues {
		titles[is.Key] = is.Summary
	}
	r := &Report{
		Server:          server,
		Started:         sum.Entry.Started,
		Duration:        worktime.Format(sum.Entry.Duration),
		DurationSeconds: int(sum.Entry.Duration / time.Second),
		Comment:         sum.Entry.Comment,
		Entries:         make([]Entry, 0, len(sum.Results)),
	}
	for _, res := range sum.Results {
		e := Entry{IssueKey: res.IssueKey, Summary: titles[res.IssueKey], WorklogID: res.WorklogID}
		switch {
		case res.OK():
			e.Status = StatusLogged
			r.Logged++
		case res.Skipped():
			e.Status = StatusSkipped
			e.Error = res.Reason()
			r.Failed++
		default:
			e.Status = StatusFailed
			e.Error = res.Reason()
			r.Failed++
		}
		r.Entries = append(r.Entries, e)
	}
	return r
}
