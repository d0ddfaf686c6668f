package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/worklog/internal/app"
	"github.com/fakeyudi/worklog/internal/collector"
	"github.com/fakeyudi/worklog/internal/config"
	"github.com/fakeyudi/worklog/internal/prompt"
	"github.com/fakeyudi/worklog/internal/report"
	"github.com/fakeyudi/worklog/internal/tracker"
	"github.com/fakeyudi/worklog/internal/tui"
)

// Global flags.
var (
	serverName   string
	debugLogging bool
	outputFormat string
)

// logger is configured in PersistentPreRunE from --debug / WORKLOG_DEBUG.
var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// now is the clock used by the timer commands.
var now = time.Now

// runBusy shows a spinner around slow tracker calls.
var runBusy = tui.RunBusy

// interactive reports whether prompts can be shown. Tests force it off.
var interactive = func() bool { return term.IsTerminal(os.Stdin.Fd()) && term.IsTerminal(os.Stdout.Fd()) }

// skipFirstRun lists commands that work without a configured server.
var skipFirstRun = map[string]bool{
	"setup": true, "servers": true, "remove": true, "status": true, "note": true,
	"help": true, "completion": true, "shell": true, "install": true,
}

var rootCmd = &cobra.Command{
	Use:   "worklog",
	Short: "Log time on JIRA issues from the terminal",
	Long: `worklog lets you pick one or more JIRA issues and log time against them,
either by running a timer or by typing a duration such as 1h30m.

Run without arguments for the interactive session.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(cmd.ErrOrStderr())

		if _, err := report.ForFormat(outputFormat, false); err != nil {
			return err
		}
		if skipFirstRun[cmd.Name()] {
			return nil
		}

		// First run: no server configured yet. Only when a human can answer.
		store, err := config.NewDefaultStore()
		if err != nil {
			return err
		}
		profiles, err := store.Load()
		if err != nil {
			return err
		}
		if len(profiles) == 0 && interactive() {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to worklog! Looks like this is your first time.")
			err := runSetup(cmd, store, "")
			if errors.Is(err, errCancelled) {
				prompt.Print(cmd.OutOrStdout(), prompt.Info, "Thank you for using this tool.")
			}
			return err
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !interactive() {
			return errors.New("the interactive session needs a terminal; use `worklog log KEY --time 1h` instead")
		}
		store, err := config.NewDefaultStore()
		if err != nil {
			return err
		}
		s := app.New(app.Config{
			Store:      store,
			Prompter:   newPrompter(cmd),
			Connect:    connectTracker,
			Busy:       runBusy,
			Timer:      runTimer,
			Suggest:    suggestFromGit,
			Render:     func(r *report.Report) error { return renderReport(cmd, r) },
			Clock:      now,
			Logger:     logger,
			ServerName: serverName,
		})
		err = s.Run(cmd.Context())
		if errors.Is(err, app.ErrCancelled) {
			prompt.Print(cmd.OutOrStdout(), prompt.Info, "Thank you for using this tool.")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverName, "server", "s", "", "Server profile to use (see `worklog servers`)")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Log requests and decisions to stderr")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", report.FormatText,
		"Output format for worklog results: "+strings.Join(report.Formats(), ", "))
}

// errCancelled stops a command after the user backed out of a prompt.
// It is not a failure.
var errCancelled = errors.New("cancelled by user")

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if code := exitCode(err); code != 0 {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(code)
	}
}

func exitCode(err error) int {
	if err == nil || errors.Is(err, errCancelled) {
		return 0
	}
	return 1
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if debugLogging || os.Getenv("WORKLOG_DEBUG") == "1" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

var newPrompter = func(cmd *cobra.Command) prompt.Prompter {
	return prompt.NewHuh(cmd.OutOrStdout(), os.Getenv("ACCESSIBLE") != "")
}

// connectTracker opens a client for p and checks the credentials.
func connectTracker(ctx context.Context, p config.ServerProfile) (tracker.Tracker, error) {
	c, err := tracker.New(p, tracker.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	u, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("connected", slog.String("server", p.Name), slog.String("user", u.Name))
	return c, nil
}

func runTimer(ctx context.Context, keys []string) (tui.TimerResult, error) {
	return tui.RunTimer(ctx, tui.TimerOptions{Issues: keys, Clock: now, Logger: logger})
}

// suggestFromGit offers the keys referenced by the current branch and recent
// commits, limited to the profile's projects when it has any.
func suggestFromGit(ctx context.Context, p config.ServerProfile) []string {
	wd, err := os.Getwd()
	if err != nil {
		return nil
	}
	gc := &collector.GitCollector{WorkDir: wd, Projects: p.ProjectKeys}
	res, err := gc.Collect(ctx)
	if err != nil {
		logger.Debug("git suggestions unavailable", slog.Any("error", err))
		return nil
	}
	for _, w := range res.Warnings {
		logger.Debug("git suggestions", slog.String("warning", w))
	}
	return res.Keys
}

// resolveProfile picks the server for a non-interactive command: the
// --server flag, the only configured server, or a menu on a terminal.
func resolveProfile(cmd *cobra.Command, store *config.Store, name string) (config.ServerProfile, error) {
	if name != "" {
		return store.Get(name)
	}
	profiles, err := store.Load()
	if err != nil {
		return config.ServerProfile{}, err
	}
	switch {
	case len(profiles) == 0:
		return config.ServerProfile{}, fmt.Errorf("no JIRA server configured in %s; run `worklog setup`", store.Path())
	case len(profiles) == 1:
		return profiles[0], nil
	case !interactive():
		return config.ServerProfile{}, errors.New("several servers are configured; choose one with --server")
	}
	opts := make([]prompt.Option, 0, len(profiles))
	for _, p := range profiles {
		opts = append(opts, prompt.Option{Label: p.Name + " - " + p.URL, Value: p.Name})
	}
	choice, err := newPrompter(cmd).Select(cmd.Context(), "Please select a server to work with", opts)
	if err != nil {
		return config.ServerProfile{}, err
	}
	return store.Get(choice)
}

func renderReport(cmd *cobra.Command, r *report.Report) error {
	out := cmd.OutOrStdout()
	terminal := false
	if f, ok := out.(*os.File); ok {
		terminal = tui.IsTerminal(f)
	}
	rr, err := report.ForFormat(outputFormat, terminal)
	if err != nil {
		return err
	}
	b, err := rr.Render(r)
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}
