// Package session persists a detached worklog timer between invocations:
// `worklog start` saves it, `note` and `status` read and extend it, and
// `stop` turns it into worklogs.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/worklog/internal/worktime"
)

// Session is a running or stopped detached timer.
type Session struct {
	ID        string     `json:"id"`
	Server    string     `json:"server"`
	IssueKeys []string   `json:"issue_keys"`
	StartTime time.Time  `json:"start_time"`
	StopTime  *time.Time `json:"stop_time,omitempty"` // fixed once stop was attempted
	Notes     []Note     `json:"notes"`
}

// Note is a message added with `worklog note` while the timer runs.
type Note struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// New starts a session for keys on server at now.
func New(server string, keys []string, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Server:    server,
		IssueKeys: append([]string(nil), keys...),
		StartTime: now,
	}
}

// AddNote appends a trimmed note; empty messages are ignored.
func (s *Session) AddNote(msg string, now time.Time) bool {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return false
	}
	s.Notes = append(s.Notes, Note{Timestamp: now, Message: msg})
	return true
}

// Stop fixes the stop time unless an earlier stop already did.
func (s *Session) Stop(now time.Time) time.Time {
	if s.StopTime == nil {
		s.StopTime = &now
	}
	return *s.StopTime
}

// Elapsed is the raw time between start and the stop time, or now when the
// timer is still running.
func (s *Session) Elapsed(now time.Time) time.Duration {
	end := now
	if s.StopTime != nil {
		end = *s.StopTime
	}
	if end.Before(s.StartTime) {
		return 0
	}
	return end.Sub(s.StartTime)
}

// Duration is Elapsed rounded the way worklogs are logged.
func (s *Session) Duration(now time.Time) time.Duration {
	return worktime.RoundToMinute(s.Elapsed(now))
}

// Comment joins the notes and an optional closing message, one per line.
func (s *Session) Comment(closing string) string {
	lines := make([]string, 0, len(s.Notes)+1)
	for _, n := range s.Notes {
		lines = append(lines, n.Message)
	}
	if c := strings.TrimSpace(closing); c != "" {
		lines = append(lines, c)
	}
	return strings.Join(lines, "\n")
}
