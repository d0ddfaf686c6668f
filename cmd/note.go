package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/worklog/internal/session"
)

var noteCmd = &cobra.Command{
	Use:   "note <message>",
	Short: "Add a note to the running timer; notes become the worklog comment",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewSessionStore()
		if err != nil {
			return err
		}

		s, err := store.Load()
		if err != nil {
			return err
		}

		if !s.AddNote(strings.Join(args, " "), now()) {
			cmd.Println("Empty note ignored.")
			return nil
		}
		if err := store.Save(s); err != nil {
			return err
		}

		cmd.Println("Note added.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(noteCmd)
}
