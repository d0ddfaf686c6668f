// Package tracker adapts the JIRA REST API to the few calls the worklogger
// needs: issue search, issue lookup and worklog creation.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Issue is a search result. It is never persisted.
type Issue struct {
	Key            string `json:"key"`
	Summary        string `json:"summary"`
	Status         string `json:"status"`
	StatusCategory string `json:"status_category"`
}

// User is the authenticated account.
type User struct {
	Name        string
	DisplayName string
	Email       string
}

// WorklogEntry is the time to log against one issue.
type WorklogEntry struct {
	IssueKey string
	Duration time.Duration
	Comment  string
	Started  time.Time
}

// Worklog is the tracker's record of a posted entry.
type Worklog struct {
	ID               string
	IssueKey         string
	TimeSpentSeconds int
}

// Tracker is the subset of the issue tracker used by the selector and submitter.
type Tracker interface {
	SearchIssues(ctx context.Context, jql string, limit int) ([]Issue, error)
	GetIssue(ctx context.Context, key string) (Issue, error)
	PostWorklog(ctx context.Context, entry WorklogEntry) (Worklog, error)
	Myself(ctx context.Context) (User, error)
}

// UnavailableError means the tracker could not be reached or failed on its
// side (network error, 5xx, 429). The request may be retried later.
type UnavailableError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: tracker unavailable after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// RejectedError means the tracker refused the request (4xx). Message holds the
// tracker's own explanation and is shown to the user as is.
type RejectedError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: rejected by tracker (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
}

var _ Tracker = (*Client)(nil)

// IsUnavailable reports whether err is an *UnavailableError.
func IsUnavailable(err error) bool {
	var u *UnavailableError
	return errors.As(err, &u)
}

// IsRejected reports whether err is a *RejectedError.
func IsRejected(err error) bool {
	var r *RejectedError
	return errors.As(err, &r)
}

// IsNotFound reports whether the tracker answered 404.
func IsNotFound(err error) bool {
	var r *RejectedError
	return errors.As(err, &r) && r.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether the tracker answered 401.
func IsUnauthorized(err error) bool {
	var r *RejectedError
	return errors.As(err, &r) && r.StatusCode == http.StatusUnauthorized
}
