package collector

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"
)

// exitCode128Error returns a real *exec.ExitError with exit code 128
// by running a shell command that exits with that code.
func exitCode128Error() error {
	cmd := exec.Command("sh", "-c", "exit 128")
	return cmd.Run()
}

func TestGitCollectorNonGitRepo(t *testing.T) {
	exitErr := exitCode128Error()
	if exitErr == nil {
		t.Fatal("expected exit code 128 error, got nil")
	}

	gc := &GitCollector{
		WorkDir: "/some/dir",
		Runner: func(context.Context, string, ...string) (string, error) {
			return "", exitErr
		},
	}

	result, err := gc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned unexpected error: %v", err)
	}
	if len(result.Keys) != 0 {
		t.Errorf("expected no keys outside a repository, got %v", result.Keys)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "not a git repository") {
		t.Errorf("expected warning containing 'not a git repository', got: %v", result.Warnings)
	}
}

func TestGitCollectorBranchThenCommits(t *testing.T) {
	responses := map[string]string{
		"rev-parse --abbrev-ref HEAD": "feature/ABC-43-login-form\n",
		"log --oneline -n 20": strings.Join([]string{
			"a1b2c3d ABC-42 validate email",
			"b2c3d4e OPS-7: bump base image",
			"c3d4e5f Merge branch 'main'",
			"d4e5f6a [ABC-40] ABC-41 follow up on OPS-7",
		}, "\n") + "\n",
	}

	var dirs []string
	gc := &GitCollector{
		WorkDir: "/repo",
		Runner: func(_ context.Context, workDir string, args ...string) (string, error) {
			dirs = append(dirs, workDir)
			key := strings.Join(args, " ")
			if out, ok := responses[key]; ok {
				return out, nil
			}
			t.Errorf("unexpected git command: %q", key)
			return "", nil
		},
	}

	result, err := gc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned unexpected error: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got: %v", result.Warnings)
	}
	if result.Branch != "feature/ABC-43-login-form" {
		t.Errorf("Branch = %q", result.Branch)
	}
	want := []string{"ABC-43", "ABC-42", "OPS-7", "ABC-40", "ABC-41"}
	if !reflect.DeepEqual(result.Keys, want) {
		t.Errorf("Keys = %v, want %v", result.Keys, want)
	}
	for _, d := range dirs {
		if d != "/repo" {
			t.Errorf("git ran in %q, want /repo", d)
		}
	}
}

func TestGitCollectorProjectFilterAndDepth(t *testing.T) {
	var logArgs string
	gc := &GitCollector{
		Projects: []string{"abc"},
		LogDepth: 5,
		Runner: func(_ context.Context, _ string, args ...string) (string, error) {
			if args[0] == "rev-parse" {
				return "OPS-1-hotfix\n", nil
			}
			logArgs = strings.Join(args, " ")
			return "1234567 ABC-9 and OPS-2\n", nil
		},
	}
	result, err := gc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if logArgs != "log --oneline -n 5" {
		t.Errorf("log args = %q", logArgs)
	}
	if !reflect.DeepEqual(result.Keys, []string{"ABC-9"}) {
		t.Errorf("Keys = %v", result.Keys)
	}
}

func TestGitCollectorIgnoresLowerCaseWords(t *testing.T) {
	gc := &GitCollector{
		Runner: func(_ context.Context, _ string, args ...string) (string, error) {
			if args[0] == "rev-parse" {
				return "fix/utf-8-decoding\n", nil
			}
			return "1234567 switch checksums to sha-256\n89abcde handle utf-8 BOM\n", nil
		},
	}
	result, err := gc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(result.Keys) != 0 {
		t.Errorf("Keys = %v, want none", result.Keys)
	}
}

func TestGitCollectorLowerCaseBranchWithProjects(t *testing.T) {
	gc := &GitCollector{
		Projects: []string{"ABC"},
		Runner: func(_ context.Context, _ string, args ...string) (string, error) {
			if args[0] == "rev-parse" {
				return "feature/abc-42-login-form\n", nil
			}
			return "1234567 use utf-8 everywhere\n", nil
		},
	}
	result, err := gc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !reflect.DeepEqual(result.Keys, []string{"ABC-42"}) {
		t.Errorf("Keys = %v", result.Keys)
	}
}

func TestGitCollectorEmptyRepositoryWarns(t *testing.T) {
	gc := &GitCollector{
		Runner: func(_ context.Context, _ string, args ...string) (string, error) {
			if args[0] == "rev-parse" {
				return "ABC-3\n", nil
			}
			return "", errors.New("fatal: your current branch 'ABC-3' does not have any commits yet")
		},
	}
	result, err := gc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !reflect.DeepEqual(result.Keys, []string{"ABC-3"}) || len(result.Warnings) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestGitCollectorPropagatesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	gc := &GitCollector{Runner: func(context.Context, string, ...string) (string, error) { return "", boom }}
	if _, err := gc.Collect(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestExtractKeys(t *testing.T) {
	cases := map[string][]string{
		"ABC-1: fix":              {"ABC-1"},
		"bugfix/TEAM_X-12-crash":  {"TEAM_X-12"},
		"no keys here":            nil,
		"v1-2 release":            nil,
		"fix utf-8 and sha-256":   nil,
		"ABC-1 ABC-1 DEF-22,XY-3": {"ABC-1", "DEF-22", "XY-3"},
		"x9ABC-1":                 nil,
		"X9ABC-1":                 {"X9ABC-1"},
	}
	for in, want := range cases {
		if got := ExtractKeys(in); !reflect.DeepEqual(got, want) {
			t.Errorf("ExtractKeys(%q) = %v, want %v", in, got, want)
		}
	}
}
