// Package config holds the per-user server profiles used to talk to JIRA.
// Profiles are stored in an INI file, one section per server, at
// ~/.config/jira-worklogger/jira-worklogger.conf.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Supported authentication types.
const (
	AuthCloudToken = "cloud_token" // Jira Cloud: email + API token
	AuthPAT        = "pat"         // Jira Server / Data Center: personal access token
)

// DefaultIssueJQL lists the user's open issues.
const DefaultIssueJQL = "assignee=currentUser() AND statusCategory not in (Done)"

// ServerProfile describes one JIRA server the user logs time against.
type ServerProfile struct {
	Name         string
	URL          string
	AuthType     string
	PAT          string // pat only
	Email        string // cloud_token only
	APIToken     string // cloud_token only
	IssueJQL     string
	TeamIssueJQL string
	ProjectKeys  []string
}

// Normalize trims every field, fills the default issue JQL and upper-cases and
// de-duplicates project keys while keeping their order.
func (p *ServerProfile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.URL = strings.TrimSpace(p.URL)
	p.AuthType = strings.TrimSpace(p.AuthType)
	p.PAT = strings.TrimSpace(p.PAT)
	p.Email = strings.TrimSpace(p.Email)
	p.APIToken = strings.TrimSpace(p.APIToken)
	p.IssueJQL = strings.TrimSpace(p.IssueJQL)
	if p.IssueJQL == "" {
		p.IssueJQL = DefaultIssueJQL
	}
	p.TeamIssueJQL = strings.TrimSpace(p.TeamIssueJQL)
	p.ProjectKeys = NormalizeProjectKeys(p.ProjectKeys)
}

// Validate reports the first problem that would make the profile unusable.
func (p *ServerProfile) Validate() error {
	if p.Name == "" {
		return errors.New("server name is empty")
	}
	if IsReservedName(p.Name) {
		return fmt.Errorf("server name %q is reserved", p.Name)
	}
	if p.URL == "" {
		return errors.New("url is empty")
	}
	u, err := url.Parse(p.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url %q is not an absolute http(s) URL", p.URL)
	}
	switch p.AuthType {
	case AuthPAT:
		if p.PAT == "" {
			return errors.New("auth_type pat requires a non-empty pat")
		}
	case AuthCloudToken:
		if p.Email == "" || p.APIToken == "" {
			return errors.New("auth_type cloud_token requires both email and api_token")
		}
	default:
		return fmt.Errorf("auth_type %q is not supported (use %q or %q)", p.AuthType, AuthCloudToken, AuthPAT)
	}
	return nil
}

// NormalizeProjectKeys trims, upper-cases and de-duplicates keys, dropping empties.
func NormalizeProjectKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// SplitProjectKeys parses the comma separated project_keys value.
func SplitProjectKeys(raw string) []string {
	return NormalizeProjectKeys(strings.Split(raw, ","))
}

// MaskSecret hides all but the edges of a credential for display.
func MaskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// SecurityWarning is shown after credentials are written to path.
func SecurityWarning(path string) string {
	return "Credentials are stored unencrypted in " + path + "."
}

// ParseError is returned when the config file exists but cannot be parsed or
// contains an invalid server section.
type ParseError struct {
	Path    string
	Section string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Section != "" {
		return "failed to parse config file " + e.Path + " (section \"" + e.Section + "\"): " + e.Err.Error()
	}
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WriteError is returned when the config file cannot be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return "failed to write config file " + e.Path + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
