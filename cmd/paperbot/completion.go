package main

import (
	"github.com/spf13/cobra"
)

// configExtensions are the config formats accepted by --config
var configExtensions = []string{"json", "yaml", "yml", "toml"}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate a shell completion script for paperbot.

The script completes the check, builds, version and completion
subcommands with their flags, and offers only .json, .yaml, .yml and
.toml files for --config.

Load it for the current shell:
  $ source <(paperbot completion bash)
  $ source <(paperbot completion zsh)
  $ paperbot completion fish | source
  PS> paperbot completion powershell | Out-String | Invoke-Expression

Install it for every session (bash on Linux, zsh, fish):
  $ paperbot completion bash > /etc/bash_completion.d/paperbot
  $ paperbot completion zsh > "${fpath[1]}/_paperbot"
  $ paperbot completion fish > ~/.config/fish/completions/paperbot.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(w, true)
		case "zsh":
			return rootCmd.GenZshCompletion(w)
		case "fish":
			return rootCmd.GenFishCompletion(w, true)
		default:
			return rootCmd.GenPowerShellCompletionWithDesc(w)
		}
	},
}

// completeConfigFile restricts --config completion to config files.
func completeConfigFile(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return configExtensions, cobra.ShellCompDirectiveFilterFileExt
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
