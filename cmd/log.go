package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/worklog/internal/config"
	"github.com/fakeyudi/worklog/internal/report"
	"github.com/fakeyudi/worklog/internal/selector"
	"github.com/fakeyudi/worklog/internal/tracker"
	"github.com/fakeyudi/worklog/internal/worklog"
	"github.com/fakeyudi/worklog/internal/worktime"
)

var (
	logTime    string
	logMessage string
	logStarted string
)

var logCmd = &cobra.Command{
	Use:   "log KEY... --time DURATION",
	Short: "Log time on one or more issues without prompts",
	Example: `  worklog log ABC-123 --time 1h30m -m "code review"
  worklog log ABC-1 ABC-2 --time 45m --started 2024-05-06T09:00:00+02:00`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := parseIssueKeys(args)
		if err != nil {
			return err
		}
		d, err := worktime.Parse(logTime)
		if err != nil {
			return err
		}
		started := now().Add(-d)
		if logStarted != "" {
			if started, err = time.Parse(time.RFC3339, logStarted); err != nil {
				return fmt.Errorf("invalid --started %q: use RFC 3339, e.g. 2024-05-06T09:00:00Z", logStarted)
			}
		}

		store, err := config.NewDefaultStore()
		if err != nil {
			return err
		}
		prof, err := resolveProfile(cmd, store, serverName)
		if err != nil {
			return err
		}
		return submitAndReport(cmd, prof, keys, worklog.Entry{
			Duration: d,
			Comment:  strings.TrimSpace(logMessage),
			Started:  started,
		})
	},
}

// parseIssueKeys normalizes and validates keys typed on the command line.
func parseIssueKeys(args []string) ([]string, error) {
	keys := make([]string, 0, len(args))
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			k := selector.NormalizeKey(part)
			if k == "" {
				continue
			}
			if !selector.IsIssueKey(k) {
				return nil, fmt.Errorf("%q is not an issue key (expected e.g. ABC-123)", strings.TrimSpace(part))
			}
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no issue keys given")
	}
	return keys, nil
}

// submitAndReport connects to prof, posts entry to every key and renders
// the outcome. It fails when any worklog was not added.
func submitAndReport(cmd *cobra.Command, prof config.ServerProfile, keys []string, entry worklog.Entry) error {
	sum, err := submit(cmd, prof, keys, entry)
	if err != nil {
		return err
	}
	if n := len(sum.Failed()); n > 0 {
		return fmt.Errorf("%d of %d worklog(s) could not be added", n, len(sum.Results))
	}
	return nil
}

func submit(cmd *cobra.Command, prof config.ServerProfile, keys []string, entry worklog.Entry) (worklog.Summary, error) {
	ctx := cmd.Context()
	var trk tracker.Tracker
	err := runBusy(ctx, "Connecting to "+prof.URL+"...", func(ctx context.Context) error {
		var err error
		trk, err = connectTracker(ctx, prof)
		return err
	})
	if err != nil {
		return worklog.Summary{}, fmt.Errorf("connecting to %s: %w", prof.Name, err)
	}
	sum := worklog.NewSubmitter(trk, logger).Submit(ctx, keys, entry)
	if err := renderReport(cmd, report.Build(prof.Name, sum, nil)); err != nil {
		return sum, err
	}
	return sum, nil
}

func init() {
	logCmd.Flags().StringVarP(&logTime, "time", "t", "", "Time spent, e.g. 1h30m, 45m or 2h")
	logCmd.Flags().StringVarP(&logMessage, "message", "m", "", "Worklog comment")
	logCmd.Flags().StringVar(&logStarted, "started", "", "When the work started (RFC 3339); defaults to now minus the duration")
	_ = logCmd.MarkFlagRequired("time")
	rootCmd.AddCommand(logCmd)
}
