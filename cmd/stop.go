package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/worklog/internal/config"
	"github.com/fakeyudi/worklog/internal/prompt"
	"github.com/fakeyudi/worklog/internal/session"
	"github.com/fakeyudi/worklog/internal/worklog"
	"github.com/fakeyudi/worklog/internal/worktime"
)

var (
	stopMessage string
	stopYes     bool
	stopDiscard bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running timer and log the time on its issues",
	Long: `stop fixes the end time of the running timer and adds a worklog of the
rounded duration to every issue. Notes added with 'worklog note' and the
--message text become the worklog comment.

If some worklogs fail, the timer is kept for the failed issues only and
'worklog stop' can be run again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewSessionStore()
		if err != nil {
			return err
		}

		s, err := store.Load()
		if err != nil {
			return err
		}

		if stopDiscard {
			if err := store.Delete(); err != nil {
				return err
			}
			cmd.Printf("Timer for %s discarded. Nothing was logged.\n", strings.Join(s.IssueKeys, ", "))
			return nil
		}

		cfgStore, err := config.NewDefaultStore()
		if err != nil {
			return err
		}
		name := s.Server
		if serverName != "" {
			name = serverName
		}
		prof, err := cfgStore.Get(name)
		if err != nil {
			return fmt.Errorf("timer was started on server %q: %w", s.Server, err)
		}

		stopped := s.Stop(now())
		d := s.Duration(stopped)
		entry := worklog.Entry{
			Duration: d,
			Comment:  s.Comment(stopMessage),
			Started:  s.StartTime,
		}

		if !stopYes && interactive() {
			ok, err := newPrompter(cmd).Confirm(cmd.Context(),
				fmt.Sprintf("Log %s on %s?", worktime.Format(d), strings.Join(s.IssueKeys, ", ")),
				"Log time", "Not now")
			if err != nil && !errors.Is(err, prompt.ErrAborted) {
				return err
			}
			if !ok {
				cmd.Println("Nothing was logged; the timer keeps running.")
				return nil
			}
		}

		// The stop time is persisted first so a retry logs the same duration.
		if err := store.Save(s); err != nil {
			return err
		}

		sum, err := submit(cmd, prof, s.IssueKeys, entry)
		if err != nil {
			return err
		}

		failed := sum.FailedKeys()
		if len(failed) == 0 {
			return store.Delete()
		}

		s.IssueKeys = failed
		if err := store.Save(s); err != nil {
			return err
		}
		return fmt.Errorf("%d of %d worklog(s) could not be added; run `worklog stop` again to retry %s",
			len(failed), len(sum.Results), strings.Join(failed, ", "))
	},
}

func init() {
	stopCmd.Flags().StringVarP(&stopMessage, "message", "m", "", "Closing comment appended after the notes")
	stopCmd.Flags().BoolVarP(&stopYes, "yes", "y", false, "Log without asking for confirmation")
	stopCmd.Flags().BoolVar(&stopDiscard, "discard", false, "Delete the timer without logging anything")
	rootCmd.AddCommand(stopCmd)
}
