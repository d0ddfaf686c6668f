package cmd

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/worklog/internal/session"
	"github.com/fakeyudi/worklog/internal/tui"
	"github.com/fakeyudi/worklog/internal/worktime"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running timer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewSessionStore()
		if err != nil {
			return err
		}

		s, err := store.Load()
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				cmd.Println("no timer running")
				return nil
			}
			return err
		}

		t := now()
		cmd.Printf("Server: %s\n", s.Server)
		cmd.Printf("Issues: %s\n", strings.Join(s.IssueKeys, ", "))
		cmd.Printf("Started: %s\n", s.StartTime.Format(time.RFC3339))
		if s.StopTime != nil {
			cmd.Printf("Stopped: %s (waiting to be logged, run `worklog stop` again)\n", s.StopTime.Format(time.RFC3339))
		}
		cmd.Printf("Elapsed: %s\n", tui.FormatElapsed(s.Elapsed(t)))
		cmd.Printf("Will log: %s\n", worktime.Format(s.Duration(t)))
		cmd.Printf("Notes: %d\n", len(s.Notes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
