package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fakeyudi/worklog/internal/config"
	"github.com/fakeyudi/worklog/internal/prompt"
	"github.com/fakeyudi/worklog/internal/session"
)

var testNow = time.Date(2024, 5, 6, 10, 30, 0, 0, time.UTC)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{}, args...))
	_, err = root.ExecuteC()
	return buf.String(), err
}

// resetFlags puts every flag of the command tree back to its default so
// values do not leak between test runs.
func resetFlags() {
	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)
}

// testEnv points config and timer state at a temp dir, fixes the clock and
// disables prompts.
func testEnv(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	t.Setenv("WORKLOG_DEBUG", "")

	oldNow, oldInteractive, oldPrompter, oldBusy := now, interactive, newPrompter, runBusy
	now = func() time.Time { return testNow }
	interactive = func() bool { return false }
	runBusy = func(ctx context.Context, _ string, fn func(context.Context) error) error { return fn(ctx) }
	resetFlags()
	t.Cleanup(func() {
		now, interactive, newPrompter, runBusy = oldNow, oldInteractive, oldPrompter, oldBusy
		resetFlags()
	})
	return tmp
}

// usePrompter makes the commands interactive and answer through p.
func usePrompter(p prompt.Prompter) {
	interactive = func() bool { return true }
	newPrompter = func(*cobra.Command) prompt.Prompter { return p }
}

func configStore(t *testing.T) *config.Store {
	t.Helper()
	store, err := config.NewDefaultStore()
	if err != nil {
		t.Fatalf("NewDefaultStore: %v", err)
	}
	return store
}

func addServer(t *testing.T, name, url string) config.ServerProfile {
	t.Helper()
	p := config.ServerProfile{Name: name, URL: url, AuthType: config.AuthPAT, PAT: "secret-pat-1234"}
	p.Normalize()
	if err := configStore(t).Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return p
}

func timerStore(t *testing.T) session.SessionStore {
	t.Helper()
	store, err := session.NewSessionStore()
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	return store
}

type postedWorklog struct {
	Key     string
	Seconds int
	Comment string
	Started string
}

// fakeJira serves the endpoints the commands use: myself and worklog POSTs.
type fakeJira struct {
	*httptest.Server

	mu     sync.Mutex
	posts  []postedWorklog
	reject map[string]string
}

func newFakeJira(t *testing.T) *fakeJira {
	t.Helper()
	f := &fakeJira{reject: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/myself", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-pat-1234" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"errorMessages": []string{"Unauthorized"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"name": "dev", "displayName": "Dev Eloper"})
	})
	mux.HandleFunc("/rest/api/2/issue/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/rest/api/2/issue/")
		key, ok := strings.CutSuffix(rest, "/worklog")
		if r.Method != http.MethodPost || !ok {
			http.NotFound(w, r)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if msg, rejected := f.reject[key]; rejected {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessages": []string{msg}})
			return
		}
		var body struct {
			Comment          string `json:"comment"`
			TimeSpentSeconds int    `json:"timeSpentSeconds"`
			Started          string `json:"started"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding worklog body: %v", err)
		}
		f.posts = append(f.posts, postedWorklog{Key: key, Seconds: body.TimeSpentSeconds, Comment: body.Comment, Started: body.Started})
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":               fmt.Sprint(10000 + len(f.posts)),
			"timeSpentSeconds": body.TimeSpentSeconds,
		})
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeJira) Posts() []postedWorklog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postedWorklog(nil), f.posts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
