package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/fakeyudi/worklog/internal/fsutil"
)

// Store reads and writes server profiles in an INI file.
type Store struct {
	path string
}

// DefaultPath returns ~/.config/jira-worklogger/jira-worklogger.conf.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "jira-worklogger", "jira-worklogger.conf"), nil
}

// IsReservedName reports whether name collides with the INI default
// section and so cannot name a server.
func IsReservedName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), ini.DefaultSection)
}

// NewStore returns a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// NewDefaultStore returns a Store backed by DefaultPath.
func NewDefaultStore() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	return NewStore(path), nil
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Load returns every server profile in file order.
// A missing file yields an empty list.
func (s *Store) Load() ([]ServerProfile, error) {
	f, err := s.read()
	if err != nil {
		return nil, err
	}
	var profiles []ServerProfile
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		p, err := profileFromSection(sec)
		if err != nil {
			return nil, &ParseError{Path: s.path, Section: sec.Name(), Err: err}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Get returns the profile with the given name.
func (s *Store) Get(name string) (ServerProfile, error) {
	profiles, err := s.Load()
	if err != nil {
		return ServerProfile{}, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return ServerProfile{}, fmt.Errorf("no server named %q in %s", name, s.path)
}

// Save adds a new profile. It fails if a profile with the same name exists.
func (s *Store) Save(p ServerProfile) error {
	return s.write(p, false)
}

// Upsert adds p or replaces the existing profile with the same name.
func (s *Store) Upsert(p ServerProfile) error {
	return s.write(p, true)
}

// Remove deletes the named profile. Removing an unknown name is an error.
func (s *Store) Remove(name string) error {
	f, err := s.read()
	if err != nil {
		return err
	}
	if !hasSection(f, name) {
		return fmt.Errorf("no server named %q in %s", name, s.path)
	}
	f.DeleteSection(name)
	return s.flush(f)
}

func (s *Store) write(p ServerProfile, replace bool) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid server %q: %w", p.Name, err)
	}
	f, err := s.read()
	if err != nil {
		return err
	}
	if hasSection(f, p.Name) {
		if !replace {
			return fmt.Errorf("server %q already exists", p.Name)
		}
		f.DeleteSection(p.Name)
	}
	sec, err := f.NewSection(p.Name)
	if err != nil {
		return fmt.Errorf("creating section %q: %w", p.Name, err)
	}
	if err := fillSection(sec, p); err != nil {
		return err
	}
	return s.flush(f)
}

func (s *Store) read() (*ini.File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ini.Empty(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", s.path, err)
	}
	f, err := ini.Load(data)
	if err != nil {
		return nil, &ParseError{Path: s.path, Err: err}
	}
	return f, nil
}

// flush writes f atomically. The file holds credentials, so it gets mode 0600.
func (s *Store) flush(f *ini.File) error {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	if err := fsutil.WriteFileAtomic(s.path, buf.Bytes(), 0o600); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	return nil
}

func hasSection(f *ini.File, name string) bool {
	for _, sec := range f.Sections() {
		if sec.Name() == name {
			return true
		}
	}
	return false
}

func profileFromSection(sec *ini.Section) (ServerProfile, error) {
	if !sec.HasKey("url") {
		return ServerProfile{}, errors.New("missing required key \"url\"")
	}
	p := ServerProfile{
		Name:         sec.Name(),
		URL:          sec.Key("url").String(),
		AuthType:     sec.Key("auth_type").MustString(AuthPAT),
		IssueJQL:     sec.Key("issue_jql").String(),
		TeamIssueJQL: sec.Key("team_issue_jql").String(),
		ProjectKeys:  SplitProjectKeys(sec.Key("project_keys").String()),
	}
	switch strings.TrimSpace(p.AuthType) {
	case AuthPAT:
		p.PAT = sec.Key("pat").String()
	case AuthCloudToken:
		p.Email = sec.Key("email").String()
		p.APIToken = sec.Key("api_token").String()
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return ServerProfile{}, err
	}
	return p, nil
}

func fillSection(sec *ini.Section, p ServerProfile) error {
	kv := [][2]string{
		{"url", p.URL},
		{"auth_type", p.AuthType},
		{"issue_jql", p.IssueJQL},
		{"team_issue_jql", p.TeamIssueJQL},
		{"project_keys", strings.Join(p.ProjectKeys, ",")},
	}
	switch p.AuthType {
	case AuthPAT:
		kv = append(kv, [2]string{"pat", p.PAT})
	case AuthCloudToken:
		kv = append(kv, [2]string{"email", p.Email}, [2]string{"api_token", p.APIToken})
	}
	for _, e := range kv {
		if _, err := sec.NewKey(e[0], e[1]); err != nil {
			return fmt.Errorf("setting %s for %q: %w", e[0], p.Name, err)
		}
	}
	return nil
}
