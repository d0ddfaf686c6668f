package cmd

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fakeyudi/worklog/internal/config"
	"github.com/fakeyudi/worklog/internal/prompt"
	"github.com/fakeyudi/worklog/internal/prompt/prompttest"
)

func TestSetupNeedsTerminal(t *testing.T) {
	testEnv(t)

	_, err := executeCommand(rootCmd, "setup")
	if err == nil || !strings.Contains(err.Error(), "terminal") {
		t.Fatalf("err = %v", err)
	}
}

func TestSetupAddsFirstServer(t *testing.T) {
	testEnv(t)
	sc := prompttest.New(t,
		prompttest.Input("Which JIRA server", "https://jira.corp/"),
		prompttest.Select("authentication method", config.AuthPAT),
		prompttest.Input("What name", "corp"),
		prompttest.Input("list issues by default", ""),
		prompttest.Input("team buckets", ""),
		prompttest.Input("project keys", "abc"),
		prompttest.Input("Personal Access Token", "pat-value"),
	)
	usePrompter(sc)

	if _, err := executeCommand(rootCmd, "setup"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	sc.Done()
	if !sc.Printed(`Server "corp" saved.`) {
		t.Errorf("messages = %q", sc.Messages)
	}

	p, err := configStore(t).Get("corp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.PAT != "pat-value" || p.IssueJQL != config.DefaultIssueJQL || len(p.ProjectKeys) != 1 || p.ProjectKeys[0] != "ABC" {
		t.Errorf("saved profile = %+v", p)
	}
}

func TestSetupRenamesServer(t *testing.T) {
	testEnv(t)
	addServer(t, "corp", "https://jira.corp")
	sc := prompttest.New(t,
		prompttest.Select("What do you want to configure?", "corp"),
		prompttest.Input("Which JIRA server", "https://jira.corp"),
		prompttest.Select("authentication method", config.AuthPAT),
		prompttest.Input("What name", "work"),
		prompttest.Input("list issues by default", ""),
		prompttest.Input("team buckets", ""),
		prompttest.Input("project keys", ""),
		prompttest.Input("Personal Access Token", ""),
	)
	usePrompter(sc)

	if _, err := executeCommand(rootCmd, "setup"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	sc.Done()

	profiles, err := configStore(t).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "work" || profiles[0].PAT != "secret-pat-1234" {
		t.Errorf("profiles = %+v", profiles)
	}
}

func TestSetupCancelled(t *testing.T) {
	testEnv(t)
	sc := prompttest.New(t, prompttest.Abort("input", "Which JIRA server"))
	usePrompter(sc)

	if _, err := executeCommand(rootCmd, "setup"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	sc.Done()
	if !sc.Printed("Setup cancelled") {
		t.Errorf("messages = %q", sc.Messages)
	}
	if profiles, _ := configStore(t).Load(); len(profiles) != 0 {
		t.Errorf("profiles = %+v", profiles)
	}
}

func TestFirstRunRunsSetupBeforeCommand(t *testing.T) {
	testEnv(t)
	sc := prompttest.New(t,
		prompttest.Input("Which JIRA server", "https://jira.corp"),
		prompttest.Select("authentication method", config.AuthPAT),
		prompttest.Input("What name", "corp"),
		prompttest.Input("list issues by default", ""),
		prompttest.Input("team buckets", ""),
		prompttest.Input("project keys", ""),
		prompttest.Input("Personal Access Token", "pat-value"),
	)
	usePrompter(sc)

	out, err := executeCommand(rootCmd, "start", "ABC-1")
	if err != nil {
		t.Fatalf("start: %v\n%s", err, out)
	}
	sc.Done()
	if !strings.Contains(out, "first time") || !strings.Contains(out, "Timer started for ABC-1") {
		t.Errorf("output = %q", out)
	}
}

func TestInteractiveSessionCancelled(t *testing.T) {
	testEnv(t)
	jira := newFakeJira(t)
	addServer(t, "corp", jira.URL)
	addServer(t, "cloud", "https://acme.atlassian.net")
	sc := prompttest.New(t, prompttest.Abort("select", "Please select a server"))
	usePrompter(sc)

	out, err := executeCommand(rootCmd)
	if err != nil {
		t.Fatalf("worklog: %v", err)
	}
	sc.Done()
	if !strings.Contains(out, "Thank you for using this tool.") {
		t.Errorf("output = %q", out)
	}
}

func TestFirstRunCancelledExitsCleanly(t *testing.T) {
	testEnv(t)
	sc := prompttest.New(t, prompttest.Abort("input", "Which JIRA server"))
	usePrompter(sc)

	out, err := executeCommand(rootCmd)
	sc.Done()
	if !errors.Is(err, errCancelled) {
		t.Fatalf("err = %v, want errCancelled", err)
	}
	if code := exitCode(err); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out, "Thank you for using this tool.") {
		t.Errorf("output = %q", out)
	}
	if profiles, _ := configStore(t).Load(); len(profiles) != 0 {
		t.Errorf("profiles = %+v", profiles)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errCancelled, 0},
		{fmt.Errorf("first run: %w", errCancelled), 0},
		{errors.New("connecting to corp: boom"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

var _ prompt.Prompter = (*prompttest.Script)(nil)
