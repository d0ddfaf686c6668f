package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fakeyudi/worklog/internal/fsutil"
)

// ErrNoSession is returned by Load when no timer is running.
var ErrNoSession = errors.New("no timer running (start one with `worklog start`)")

// SessionStore keeps the one detached timer between invocations.
type SessionStore interface {
	Save(s *Session) error
	Load() (*Session, error) // ErrNoSession when no timer runs
	Delete() error
	Path() string
}

type fileStore struct {
	path string
}

// NewSessionStore returns the store at
// $XDG_DATA_HOME/jira-worklogger/timer.json, falling back to
// ~/.local/share when XDG_DATA_HOME is unset. The directory is created 0700.
func NewSessionStore() (SessionStore, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving data directory: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	dir := filepath.Join(base, "jira-worklogger")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &fileStore{path: filepath.Join(dir, "timer.json")}, nil
}

func (f *fileStore) Path() string { return f.path }

// Save replaces the timer file. Indented so the shell prompt plugin can pick
// issue keys out line by line.
func (f *fileStore) Save(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err == nil {
		err = fsutil.WriteFileAtomic(f.path, data, 0o600)
	}
	if err != nil {
		return fmt.Errorf("saving timer state: %w", err)
	}
	return nil
}

func (f *fileStore) Load() (*Session, error) {
	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, ErrNoSession
	case err != nil:
		return nil, fmt.Errorf("reading timer state: %w", err)
	}
	s := new(Session)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("timer state %s is corrupt: %w", f.path, err)
	}
	return s, nil
}

// Delete removes the timer file; a missing file is not an error.
func (f *fileStore) Delete() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting timer state: %w", err)
	}
	return nil
}
