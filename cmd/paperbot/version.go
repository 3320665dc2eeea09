package main

import (
	"fmt"

	"github.com/obentoo/paperbot/internal/common/version"
	"github.com/spf13/cobra"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the paperbot version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), version.Short())
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}

func init() {
	versionCmd.Flags().BoolVarP(&versionShort, "short", "s", false, "Print only the version number")
	rootCmd.AddCommand(versionCmd)
}
