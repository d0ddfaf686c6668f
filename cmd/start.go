package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/worklog/internal/config"
	"github.com/fakeyudi/worklog/internal/prompt"
	"github.com/fakeyudi/worklog/internal/selector"
	"github.com/fakeyudi/worklog/internal/session"
)

var startCmd = &cobra.Command{
	Use:   "start [KEY...]",
	Short: "Start a timer that keeps running between commands",
	Long: `start records the start time for the given issues. Add notes with
'worklog note', check it with 'worklog status' and log the time with
'worklog stop'. Without keys the issues are picked interactively.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewSessionStore()
		if err != nil {
			return err
		}

		s, err := store.Load()
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			return err
		}
		if s != nil {
			return fmt.Errorf("timer already running for %s (started at %s)",
				strings.Join(s.IssueKeys, ", "), s.StartTime.Format(time.RFC3339))
		}

		cfgStore, err := config.NewDefaultStore()
		if err != nil {
			return err
		}
		prof, err := resolveProfile(cmd, cfgStore, serverName)
		if err != nil {
			return err
		}

		var keys []string
		if len(args) > 0 {
			if keys, err = parseIssueKeys(args); err != nil {
				return err
			}
		} else {
			if keys, err = pickIssues(cmd, prof); err != nil {
				return err
			}
		}

		started := session.New(prof.Name, keys, now())
		if err := store.Save(started); err != nil {
			return err
		}

		cmd.Printf("Timer started for %s at %s.\n", strings.Join(keys, ", "), started.StartTime.Format("15:04"))
		return nil
	},
}

// pickIssues runs the interactive selector against prof.
func pickIssues(cmd *cobra.Command, prof config.ServerProfile) ([]string, error) {
	if !interactive() {
		return nil, errors.New("no issue keys given; pass them as arguments or run in a terminal")
	}
	ctx := cmd.Context()
	trk, err := connectTracker(ctx, prof)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", prof.Name, err)
	}
	issues, err := selector.New(selector.Config{
		Profile:   prof,
		Tracker:   trk,
		Prompter:  newPrompter(cmd),
		Busy:      runBusy,
		Suggested: suggestFromGit(ctx, prof),
		Logger:    logger,
	}).Run(ctx)
	if errors.Is(err, prompt.ErrAborted) {
		return nil, errors.New("no timer started")
	}
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(issues))
	for i, is := range issues {
		keys[i] = is.Key
	}
	return keys, nil
}

func init() {
	rootCmd.AddCommand(startCmd)
}
