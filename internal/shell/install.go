// Package shell installs the worklog shell plugin: command completion plus a
// prompt segment that names the issues of the running timer.
package shell

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Supported lists the shells a plugin exists for.
var Supported = []string{"zsh", "bash"}

// PluginPath returns the path where the plugin file for shell is written.
func PluginPath(shell string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "jira-worklogger", "worklog.plugin."+shell), nil
}

// Plugin returns the plugin source for shell.
func Plugin(shell string) (string, error) {
	switch shell {
	case "zsh":
		return ZshPlugin, nil
	case "bash":
		return BashPlugin, nil
	default:
		return "", fmt.Errorf("unsupported shell for plugin: %s (supported: zsh, bash)", shell)
	}
}

// Install writes the plugin file for shell and prints to w the line the user
// needs to add to their rc file. It returns the plugin path.
func Install(w io.Writer, shell string) (string, error) {
	content, err := Plugin(shell)
	if err != nil {
		return "", err
	}
	path, err := PluginPath(shell)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing plugin file: %w", err)
	}

	rcFile := rcFileName(shell)
	fmt.Fprintf(w, "\n  ✓ Plugin written to %s\n", path)
	fmt.Fprintf(w, "\n  Add this line to your %s:\n", rcFile)
	fmt.Fprintf(w, "    source %s\n", path)
	fmt.Fprintf(w, "\n  Show the running timer in your prompt with %s\n", promptHint(shell))
	fmt.Fprintf(w, "\n  Then reload: source %s\n\n", rcFile)
	return path, nil
}

// IsInstalled reports whether the plugin file exists on disk.
func IsInstalled(shell string) bool {
	path, err := PluginPath(shell)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func rcFileName(shell string) string {
	switch shell {
	case "zsh":
		return "~/.zshrc"
	case "bash":
		return "~/.bashrc"
	default:
		return "~/." + shell + "rc"
	}
}

func promptHint(shell string) string {
	if shell == "zsh" {
		return `RPROMPT='$(worklog_prompt)'`
	}
	return `PS1='$(worklog_prompt)'"$PS1"`
}
