// Package profile runs the interactive setup wizard that creates or edits a
// JIRA server profile. The caller persists the result with config.Store.
package profile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fakeyudi/worklog/internal/config"
	"github.com/fakeyudi/worklog/internal/prompt"
)

// DefaultURL pre-fills the server question for new profiles.
const DefaultURL = "https://your-instance.atlassian.net"

// APITokenURL is where Jira Cloud API tokens are created.
const APITokenURL = "https://id.atlassian.com/manage-profile/security/api-tokens"

// RunSetup asks for every field of a server profile. If existing is non-nil
// its values are the defaults (edit mode) and blank secrets keep the stored
// ones. taken lists the names of other profiles, which the new name must not
// reuse. The returned profile is normalized and valid.
func RunSetup(ctx context.Context, p prompt.Prompter, existing *config.ServerProfile, taken []string) (*config.ServerProfile, error) {
	ask := func(q prompt.Question) (string, error) {
		v, err := p.Input(ctx, q)
		return strings.TrimSpace(v), err
	}

	prof := &config.ServerProfile{URL: DefaultURL, AuthType: config.AuthCloudToken, IssueJQL: config.DefaultIssueJQL}
	if existing != nil {
		cp := *existing
		prof = &cp
	}

	var err error
	if prof.URL, err = ask(prompt.Question{
		Title:    "Which JIRA server to connect to?",
		Default:  prof.URL,
		Validate: validateURL,
	}); err != nil {
		return nil, err
	}

	authOpts := []prompt.Option{
		{Label: "Jira Cloud - Email and API token", Value: config.AuthCloudToken},
		{Label: "Jira Server / Data Center - Personal Access Token", Value: config.AuthPAT},
	}
	if prof.AuthType == config.AuthPAT {
		authOpts[0], authOpts[1] = authOpts[1], authOpts[0]
	}
	if prof.AuthType, err = p.Select(ctx, "Which authentication method do you want to configure?", authOpts); err != nil {
		return nil, err
	}

	if prof.Name, err = ask(prompt.Question{
		Title:    "What name to give your server?",
		Default:  prof.Name,
		Validate: ValidateName(taken),
	}); err != nil {
		return nil, err
	}

	if prof.IssueJQL, err = ask(prompt.Question{
		Title:   "Which JQL should be used to list issues by default?",
		Default: prof.IssueJQL,
	}); err != nil {
		return nil, err
	}
	if prof.TeamIssueJQL, err = ask(prompt.Question{
		Title:   "Optional JQL for shared/team buckets (leave blank to skip):",
		Default: prof.TeamIssueJQL,
	}); err != nil {
		return nil, err
	}
	keys, err := ask(prompt.Question{
		Title:       "Optional Jira project keys for broader searches (comma separated):",
		Default:     strings.Join(prof.ProjectKeys, ", "),
		Placeholder: "ABC, OPS",
	})
	if err != nil {
		return nil, err
	}
	prof.ProjectKeys = config.SplitProjectKeys(keys)

	if err := askCredentials(ask, prof, existing); err != nil {
		return nil, err
	}

	prof.Normalize()
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	return prof, nil
}

func askCredentials(ask func(prompt.Question) (string, error), prof *config.ServerProfile, existing *config.ServerProfile) error {
	keep := existing != nil && existing.AuthType == prof.AuthType
	secret := func(title, description, current string) (string, error) {
		q := prompt.Question{Title: title, Description: description, Secret: true, Validate: required}
		if keep && current != "" {
			q.Description = strings.TrimSpace(description + " Leave blank to keep the stored value.")
			q.Validate = nil
		}
		v, err := ask(q)
		if err != nil {
			return "", err
		}
		if v == "" {
			return current, nil
		}
		return v, nil
	}

	var err error
	switch prof.AuthType {
	case config.AuthPAT:
		prof.Email, prof.APIToken = "", ""
		current := ""
		if keep {
			current = existing.PAT
		}
		prof.PAT, err = secret("What is your JIRA Personal Access Token (PAT)?", "", current)
		return err
	default:
		prof.PAT = ""
		if prof.Email, err = ask(prompt.Question{
			Title:    "What is your Atlassian account email?",
			Default:  prof.Email,
			Validate: required,
		}); err != nil {
			return err
		}
		current := ""
		if keep {
			current = existing.APIToken
		}
		prof.APIToken, err = secret("What is your Jira Cloud API token?", "Create one at "+APITokenURL+".", current)
		return err
	}
}

// ValidateName rejects empty names and names already used by another profile.
func ValidateName(taken []string) func(string) error {
	return func(name string) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("please enter a name for the server")
		}
		if strings.ContainsAny(name, "[]") {
			return errors.New("server names cannot contain brackets")
		}
		if config.IsReservedName(name) {
			return fmt.Errorf("%q is reserved, please choose another name", name)
		}
		for _, t := range taken {
			if strings.EqualFold(t, name) {
				return fmt.Errorf("name %q is already taken, please choose another one", name)
			}
		}
		return nil
	}
}

func validateURL(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return errors.New("please enter a JIRA server")
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("enter an absolute http(s) URL, e.g. " + DefaultURL)
	}
	return nil
}

func required(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("please enter a value")
	}
	return nil
}
