package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/webservice/packages/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent requests from the history database",
	Long: `List the most recent attempts recorded in the history database
configured with --history or the history key of the config file.

Examples:
  websvc history --history sqlite://./websvc.db
  websvc history --limit 50 --failed
  websvc history --prune 168h`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

var (
	historyLimitFlag  int
	historyFailedFlag bool
	historyPruneFlag  time.Duration
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "l", 20, "Number of entries to show")
	historyCmd.Flags().BoolVar(&historyFailedFlag, "failed", false, "Only show failed attempts")
	historyCmd.Flags().DurationVar(&historyPruneFlag, "prune", 0, "Delete entries older than this age instead of listing")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History == "" {
		return withExitCode(ExitConfigError, fmt.Errorf("no history database configured (use --history or the history config key)"))
	}
	if cfg.GetNoColor() {
		color.NoColor = true
	}

	log, _ := newLogger(cfg, cmd.ErrOrStderr())
	journal, err := history.Open(cfg.History, history.WithLogger(log))
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer journal.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if historyPruneFlag > 0 {
		removed, err := journal.Prune(ctx, historyPruneFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d entries older than %s\n", removed, historyPruneFlag)
		return nil
	}

	query := journal.Recent
	if historyFailedFlag {
		query = journal.Failures
	}
	entries, err := query(ctx, historyLimitFlag)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for _, e := range entries {
		status := fmt.Sprintf("%3d", e.Status)
		if e.Status == 0 {
			status = "---"
		}
		if e.Failed() {
			status = red(status)
		} else {
			status = green(status)
		}
		fmt.Fprintf(out, "%s  %s %-6s %s %s\n",
			dim(e.CreatedAt.Format("2006-01-02 15:04:05")), status, e.Method, e.URL,
			dim(fmt.Sprintf("(%dms)", e.Duration.Milliseconds())))
		if e.Failed() {
			detail := e.Kind
			if e.Code != "" {
				detail += " " + e.Code
			}
			fmt.Fprintf(out, "    %s %s\n", red("→"), detail)
		}
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No entries")
	}
	return nil
}
