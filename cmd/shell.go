package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/worklog/internal/shell"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Shell integration: completions and a prompt segment for the running timer",
}

var shellInstallCmd = &cobra.Command{
	Use:       "install [zsh|bash]",
	Short:     "Write the shell plugin; defaults to the shell in $SHELL",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: shell.Supported,
	RunE: func(cmd *cobra.Command, args []string) error {
		sh := filepath.Base(os.Getenv("SHELL"))
		if len(args) == 1 {
			sh = args[0]
		}
		if !slices.Contains(shell.Supported, sh) {
			return fmt.Errorf("cannot install for shell %q; pass one of: zsh, bash", sh)
		}
		if shell.IsInstalled(sh) {
			logger.Debug("overwriting shell plugin", slog.String("shell", sh))
		}
		_, err := shell.Install(cmd.OutOrStdout(), sh)
		return err
	},
}

func init() {
	shellCmd.AddCommand(shellInstallCmd)
	rootCmd.AddCommand(shellCmd)
}
