package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/worklog/internal/config"
	"github.com/fakeyudi/worklog/internal/profile"
	"github.com/fakeyudi/worklog/internal/prompt"
)

const addNewServer = "__add__"

var setupCmd = &cobra.Command{
	Use:   "setup [NAME]",
	Short: "Add a JIRA server or edit an existing one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !interactive() {
			return errors.New("setup needs a terminal")
		}
		store, err := config.NewDefaultStore()
		if err != nil {
			return err
		}
		name := serverName
		if len(args) == 1 {
			name = args[0]
		}
		err = runSetup(cmd, store, name)
		if errors.Is(err, errCancelled) {
			return nil
		}
		return err
	},
}

// runSetup runs the setup wizard for name, or lets the user pick a server
// to edit when name is empty and servers exist.
func runSetup(cmd *cobra.Command, store *config.Store, name string) error {
	profiles, err := store.Load()
	if err != nil {
		return err
	}
	p := newPrompter(cmd)

	var existing *config.ServerProfile
	if name != "" {
		for i := range profiles {
			if profiles[i].Name == name {
				existing = &profiles[i]
			}
		}
		if existing == nil {
			return fmt.Errorf("no server named %q in %s", name, store.Path())
		}
	} else if len(profiles) > 0 {
		opts := []prompt.Option{{Label: "Add a new server", Value: addNewServer}}
		for _, sp := range profiles {
			opts = append(opts, prompt.Option{Label: "Edit " + sp.Name + " - " + sp.URL, Value: sp.Name})
		}
		choice, err := p.Select(cmd.Context(), "What do you want to configure?", opts)
		if err != nil {
			return setupErr(p, err)
		}
		for i := range profiles {
			if profiles[i].Name == choice {
				existing = &profiles[i]
			}
		}
	}

	var taken []string
	for _, sp := range profiles {
		if existing == nil || sp.Name != existing.Name {
			taken = append(taken, sp.Name)
		}
	}

	prof, err := profile.RunSetup(cmd.Context(), p, existing, taken)
	if err != nil {
		return setupErr(p, err)
	}

	if existing == nil {
		err = store.Save(*prof)
	} else {
		err = store.Upsert(*prof)
		if err == nil && prof.Name != existing.Name {
			err = store.Remove(existing.Name)
		}
	}
	if err != nil {
		return fmt.Errorf("saving server: %w", err)
	}

	p.Println(prompt.Success, fmt.Sprintf("  ✓ Server %q saved.", prof.Name))
	p.Println(prompt.Warning, "  "+config.SecurityWarning(store.Path()))
	return nil
}

// setupErr turns an aborted wizard into errCancelled.
func setupErr(p prompt.Prompter, err error) error {
	if errors.Is(err, prompt.ErrAborted) {
		p.Println(prompt.Warning, "Setup cancelled, nothing was saved.")
		return errCancelled
	}
	return err
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
