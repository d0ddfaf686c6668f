package cmd

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fakeyudi/worklog/internal/prompt/prompttest"
	"github.com/fakeyudi/worklog/internal/session"
)

func startedTimer(t *testing.T, server string, keys ...string) *session.Session {
	t.Helper()
	s := session.New(server, keys, testNow.Add(-90*time.Minute-20*time.Second))
	s.AddNote("reviewed the patch", testNow.Add(-time.Hour))
	if err := timerStore(t).Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return s
}

func TestStopLogsEveryIssueAndClearsTimer(t *testing.T) {
	testEnv(t)
	jira := newFakeJira(t)
	addServer(t, "corp", jira.URL)
	startedTimer(t, "corp", "ABC-1", "ABC-2")

	out, err := executeCommand(rootCmd, "stop", "-m", "done for today")
	if err != nil {
		t.Fatalf("stop: %v\n%s", err, out)
	}

	posts := jira.Posts()
	if len(posts) != 2 || posts[0].Key != "ABC-1" || posts[1].Key != "ABC-2" {
		t.Fatalf("posts = %+v", posts)
	}
	for _, p := range posts {
		if p.Seconds != 90*60 {
			t.Errorf("%s: timeSpentSeconds = %d, want 5400", p.Key, p.Seconds)
		}
		if p.Comment != "reviewed the patch\ndone for today" {
			t.Errorf("%s: comment = %q", p.Key, p.Comment)
		}
		if !strings.HasPrefix(p.Started, "2024-05-06T08:59:40.000") {
			t.Errorf("%s: started = %q", p.Key, p.Started)
		}
	}
	if !strings.Contains(out, "Added worklog of 1h30m to issue ABC-2") || !strings.Contains(out, "2 of 2 worklog(s) added") {
		t.Errorf("output = %q", out)
	}
	if _, err := timerStore(t).Load(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("timer still present: %v", err)
	}
}

func TestStopKeepsFailedIssues(t *testing.T) {
	testEnv(t)
	jira := newFakeJira(t)
	jira.reject["ABC-2"] = "You do not have permission to work on this issue."
	addServer(t, "corp", jira.URL)
	startedTimer(t, "corp", "ABC-1", "ABC-2", "ABC-3")

	out, err := executeCommand(rootCmd, "stop")
	if err == nil || !strings.Contains(err.Error(), "1 of 3 worklog(s) could not be added") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, "Failed to log time on ABC-2: You do not have permission to work on this issue.") {
		t.Errorf("output = %q", out)
	}

	s, err := timerStore(t).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(s.IssueKeys, []string{"ABC-2"}) {
		t.Errorf("IssueKeys = %v, want only the failed one", s.IssueKeys)
	}
	if s.StopTime == nil || !s.StopTime.Equal(testNow) {
		t.Fatalf("StopTime = %v, want %v", s.StopTime, testNow)
	}

	// A retry later logs the same duration on the remaining issue.
	delete(jira.reject, "ABC-2")
	now = func() time.Time { return testNow.Add(3 * time.Hour) }
	resetFlags()
	if out, err := executeCommand(rootCmd, "stop"); err != nil {
		t.Fatalf("retry: %v\n%s", err, out)
	}
	posts := jira.Posts()
	last := posts[len(posts)-1]
	if len(posts) != 3 || last.Key != "ABC-2" || last.Seconds != 90*60 {
		t.Errorf("posts = %+v", posts)
	}
	if _, err := timerStore(t).Load(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("timer still present: %v", err)
	}
}

func TestStopDiscard(t *testing.T) {
	testEnv(t)
	jira := newFakeJira(t)
	addServer(t, "corp", jira.URL)
	startedTimer(t, "corp", "ABC-1")

	out, err := executeCommand(rootCmd, "stop", "--discard")
	if err != nil {
		t.Fatalf("stop --discard: %v", err)
	}
	if !strings.Contains(out, "Nothing was logged") {
		t.Errorf("output = %q", out)
	}
	if len(jira.Posts()) != 0 {
		t.Errorf("posts = %+v", jira.Posts())
	}
	if _, err := timerStore(t).Load(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("timer still present: %v", err)
	}
}

func TestStopDeclinedKeepsTimerRunning(t *testing.T) {
	testEnv(t)
	jira := newFakeJira(t)
	addServer(t, "corp", jira.URL)
	startedTimer(t, "corp", "ABC-1")

	sc := prompttest.New(t, prompttest.Confirm("Log 1h30m on ABC-1?", false))
	usePrompter(sc)

	out, err := executeCommand(rootCmd, "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	sc.Done()
	if !strings.Contains(out, "the timer keeps running") {
		t.Errorf("output = %q", out)
	}
	s, err := timerStore(t).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.StopTime != nil {
		t.Errorf("StopTime = %v, want the timer still running", s.StopTime)
	}
	if len(jira.Posts()) != 0 {
		t.Errorf("posts = %+v", jira.Posts())
	}
}

func TestStopWithoutTimer(t *testing.T) {
	testEnv(t)

	_, err := executeCommand(rootCmd, "stop")
	if !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestStopUnknownServer(t *testing.T) {
	testEnv(t)
	addServer(t, "corp", "https://jira.corp")
	startedTimer(t, "gone", "ABC-1")

	_, err := executeCommand(rootCmd, "stop")
	if err == nil || !strings.Contains(err.Error(), `timer was started on server "gone"`) {
		t.Fatalf("err = %v", err)
	}
}
