package collector

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// GitRunner executes a git command and returns its output.
// This abstraction allows mocking in tests.
type GitRunner func(ctx context.Context, workDir string, args ...string) (string, error)

// DefaultLogDepth is how many recent commits are scanned for keys.
const DefaultLogDepth = 20

// keyInText finds issue keys inside branch names and commit subjects, such
// as "feature/ABC-123-login" or "ABC-123: fix login". Keys must be written in
// upper case so that "utf-8" or "sha-256" are not mistaken for issues.
var keyInText = regexp.MustCompile(`(?:^|[^A-Za-z0-9])([A-Z][A-Z0-9_]*-[0-9]+)`)

// anyCaseKey also accepts "feature/abc-123". It is only used when a project
// filter rules out words that merely look like keys.
var anyCaseKey = regexp.MustCompile(`(?:^|[^A-Za-z0-9])([A-Za-z][A-Za-z0-9_]*-[0-9]+)`)

// GitCollector suggests the issue keys referenced by the current branch name
// and the most recent commit subjects.
type GitCollector struct {
	WorkDir  string
	Runner   GitRunner // if nil, uses the real git subprocess
	LogDepth int       // defaults to DefaultLogDepth
	// Projects, when set, keeps only keys of these projects.
	Projects []string
}

// defaultGitRunner runs git as a real subprocess.
func defaultGitRunner(ctx context.Context, workDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workDir
	out, err := cmd.Output()
	return string(out), err
}

// Collect implements Collector. The branch keys come first, then commit keys
// from newest to oldest. Outside a git repository (exit code 128, or git not
// installed) it returns a warning and no keys.
func (g *GitCollector) Collect(ctx context.Context) (Result, error) {
	runner := g.Runner
	if runner == nil {
		runner = defaultGitRunner
	}
	depth := g.LogDepth
	if depth <= 0 {
		depth = DefaultLogDepth
	}

	// Determine branch; also serves as the "is this a git repo?" check.
	branch, err := runner(ctx, g.WorkDir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		if isExitCode128(err) {
			return Result{Warnings: []string{"not a git repository"}}, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return Result{Warnings: []string{"git is not installed"}}, nil
		}
		return Result{}, err
	}
	branch = strings.TrimSpace(branch)

	res := Result{Branch: branch}
	seen := map[string]bool{}
	pattern := keyInText
	if len(g.Projects) > 0 {
		pattern = anyCaseKey
	}
	add := func(text string) {
		for _, k := range extractKeys(pattern, text) {
			if !seen[k] && g.allowed(k) {
				seen[k] = true
				res.Keys = append(res.Keys, k)
			}
		}
	}
	add(branch)

	logOut, err := runner(ctx, g.WorkDir, "log", "--oneline", "-n", strconv.Itoa(depth))
	if err != nil {
		// A fresh repository has a branch but no commits yet.
		res.Warnings = append(res.Warnings, "could not read git log: "+err.Error())
		return res, nil
	}
	for _, line := range parseLogLines(logOut) {
		add(commitSubject(line))
	}
	return res, nil
}

func (g *GitCollector) allowed(key string) bool {
	if len(g.Projects) == 0 {
		return true
	}
	project := key[:strings.LastIndex(key, "-")]
	for _, p := range g.Projects {
		if strings.EqualFold(p, project) {
			return true
		}
	}
	return false
}

// ExtractKeys returns the upper-case issue keys found in text, in order of
// appearance and without duplicates.
func ExtractKeys(text string) []string {
	return extractKeys(keyInText, text)
}

func extractKeys(re *regexp.Regexp, text string) []string {
	var keys []string
	seen := map[string]bool{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		k := strings.ToUpper(m[1])
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// commitSubject strips the abbreviated hash from a --oneline entry.
func commitSubject(line string) string {
	if _, subject, ok := strings.Cut(line, " "); ok {
		return subject
	}
	return ""
}

// isExitCode128 reports whether err is an *exec.ExitError with exit code 128.
func isExitCode128(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 128
	}
	return false
}

// parseLogLines splits git log output into individual commit lines,
// discarding empty lines.
func parseLogLines(output string) []string {
	lines := strings.Split(output, "\n")
	result := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			result = append(result, l)
		}
	}
	return result
}
