package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/worklog/internal/config"
)

var (
	serverNameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	fieldStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
)

var serversCmd = &cobra.Command{
	Use:     "servers",
	Aliases: []string{"server"},
	Short:   "List the configured JIRA servers",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.NewDefaultStore()
		if err != nil {
			return err
		}
		profiles, err := store.Load()
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			cmd.Printf("No servers configured in %s. Run `worklog setup` to add one.\n", store.Path())
			return nil
		}
		cmd.Printf("Servers in %s:\n", store.Path())
		for _, p := range profiles {
			printProfile(cmd, p)
		}
		return nil
	},
}

var serversRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a server and its stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.NewDefaultStore()
		if err != nil {
			return err
		}
		if err := store.Remove(args[0]); err != nil {
			return err
		}
		cmd.Printf("Server %q removed.\n", args[0])
		return nil
	},
}

func printProfile(cmd *cobra.Command, p config.ServerProfile) {
	row := func(label, value string) {
		cmd.Printf("  %s %s\n", fieldStyle.Render(fmt.Sprintf("%-14s", label+":")), value)
	}
	cmd.Println()
	cmd.Println(serverNameStyle.Render(p.Name))
	row("url", p.URL)
	row("auth_type", p.AuthType)
	switch p.AuthType {
	case config.AuthPAT:
		row("pat", config.MaskSecret(p.PAT))
	case config.AuthCloudToken:
		row("email", p.Email)
		row("api_token", config.MaskSecret(p.APIToken))
	}
	row("issue_jql", p.IssueJQL)
	if p.TeamIssueJQL != "" {
		row("team_issue_jql", p.TeamIssueJQL)
	}
	if len(p.ProjectKeys) > 0 {
		row("project_keys", strings.Join(p.ProjectKeys, ", "))
	}
}

func init() {
	serversCmd.AddCommand(serversRemoveCmd)
	rootCmd.AddCommand(serversCmd)
}
