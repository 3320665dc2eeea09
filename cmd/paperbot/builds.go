package main

import (
	"context"
	"fmt"
	"io"

	"github.com/obentoo/paperbot/internal/common/output"
	"github.com/obentoo/paperbot/internal/paper"
	"github.com/spf13/cobra"
)

var buildsCmd = &cobra.Command{
	Use:   "builds [version]",
	Short: "Show the latest build of a Paper version",
	Long: `Query the PaperMC builds API and print the latest build of a version,
the same answer the !last_version command gives in Discord.

Without an argument the version currently shown on the download page is
used.

Examples:
  # Latest build of the current version
  paperbot builds

  # Latest build of 1.20.4
  paperbot builds 1.20.4`,
	Args: cobra.MaximumNArgs(1),
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

		v := ""
		if len(args) == 1 {
			v = args[0]
		}
		return runBuilds(cmd.Context(), cmd.OutOrStdout(), a, v)
	},
}

func init() {
	rootCmd.AddCommand(buildsCmd)
}

// runBuilds prints the latest build of v, or of the live version when v
// is empty.
func runBuilds(ctx context.Context, w io.Writer, a *app, v string) error {
	if v == "" {
		current, err := a.source.Current(ctx)
		if err != nil {
			return err
		}
		v = current
	}

	record, err := a.builds.Lookup(ctx, v)
	if err != nil {
		if paper.KindOf(err) == paper.KindInvalidVersion {
			return fmt.Errorf("wrong version input %q: %w", v, err)
		}
		return err
	}

	label := record.Channel.Label()
	fmt.Fprintf(w, "%s #%d %s\n", output.FormatVersion(record.Version), record.Build,
		output.Sprintf(output.StatusColor(label), "[%s]", label))
	fmt.Fprintf(w, "Published %s (%s)\n", a.builds.DisplayTime(record), a.builds.Location())
	return nil
}
