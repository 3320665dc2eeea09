package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/obentoo/paperbot/internal/common/output"
	"github.com/obentoo/paperbot/internal/paper"
	"github.com/spf13/cobra"
)

var (
	checkSave    bool
	checkHistory bool
	checkLimit   int
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one polling cycle without Discord",
	Long: `Fetch the current Paper version from the download page and compare it
with the stored one. Nothing is written unless --save is given, and no
Discord message is ever sent.

With --history the version changes recorded by the sqlite store are
listed instead.

Examples:
  # Show whether the download page has a new version
  paperbot check

  # Record the current version as seen
  paperbot check --save

  # List the last 5 recorded versions (sqlite store only)
  paperbot check --history --limit 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if checkHistory {
			return printHistory(cmd.Context(), cmd.OutOrStdout(), a.store, checkLimit)
		}
		return runCheck(cmd.Context(), cmd.OutOrStdout(), a, checkSave)
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkSave, "save", false, "Store the current version when it changed")
	checkCmd.Flags().BoolVar(&checkHistory, "history", false, "List recorded version changes")
	checkCmd.Flags().IntVar(&checkLimit, "limit", 10, "Maximum number of history entries")
	rootCmd.AddCommand(checkCmd)
}

// runCheck compares the live version with the stored one and prints the
// outcome. With save, a changed version is written to the store.
func runCheck(ctx context.Context, w io.Writer, a *app, save bool) error {
	var (
		result *paper.CycleResult
		err    error
	)
	if save {
		result, err = paper.NewPoller(a.source, a.store, nil).RunCycle(ctx)
	} else {
		result, err = paper.Compare(ctx, a.source, a.store)
	}
	if result == nil {
		fmt.Fprintf(w, "%s %v\n", output.FormatStatus("Failed"), err)
		return err
	}

	status := "Unchanged"
	if result.Changed {
		status = "Changed"
	}
	fmt.Fprintf(w, "%s %s -> %s\n", output.FormatStatus(status),
		output.FormatVersion(displayStored(result)), output.FormatVersion(result.Current))
	if result.Saved {
		fmt.Fprintf(w, "Saved %s\n", result.Current)
	}
	return err
}

func displayStored(r *paper.CycleResult) string {
	if !r.HadPrevious {
		return ""
	}
	return r.Previous
}

// errNoHistory is returned when the configured store does not keep history.
var errNoHistory = errors.New("the configured store does not keep history, use the sqlite backend")

// printHistory lists the most recent version changes.
func printHistory(ctx context.Context, w io.Writer, store paper.Store, limit int) error {
	hs, ok := store.(paper.HistoryStore)
	if !ok {
		return errNoHistory
	}

	entries, err := hs.History(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, output.Sprint(output.Dim, "No versions recorded yet"))
		return nil
	}

	fmt.Fprintln(w, output.Sprint(output.Header, "Recorded versions"))
	for _, e := range entries {
		fmt.Fprintf(w, "  %s  %s\n", e.ObservedAt.Local().Format("2006-01-02 15:04:05"), output.FormatVersion(e.Version))
	}
	return nil
}
