package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/obentoo/paperbot/internal/bot"
	"github.com/obentoo/paperbot/internal/common/logger"
	"github.com/obentoo/paperbot/internal/common/output"
	"github.com/obentoo/paperbot/internal/paper"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	quiet      bool
	noColor    bool
	logFile    bool
)

var rootCmd = &cobra.Command{
	Use:   "paperbot",
	Short: "Discord bot announcing new PaperMC versions",
	Long: `paperbot watches the PaperMC download page and announces every new
Paper version in a Discord channel. It also answers the !version and
!last_version commands.

Running paperbot without a subcommand connects to Discord and starts
polling. The configuration is read from ./config.json, or from
$XDG_CONFIG_HOME/paperbot/config.{json,yaml,toml}, and PAPERBOT_*
environment variables override file values.

Examples:
  # Run the bot with the default configuration
  paperbot

  # Run with a specific config file and debug logs
  paperbot -c /etc/paperbot/config.yaml -v`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure logging based on flags
		if verbose {
			logger.SetVerbose(true)
		}
		if quiet {
			logger.SetQuiet(true)
		}
		if noColor {
			output.NoColor()
		}
		if logFile {
			if err := logger.Default().EnableFileLogging(); err != nil {
				return fmt.Errorf("enabling file logging: %w", err)
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runBot(ctx)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (json, yaml or toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Also write logs to $XDG_STATE_HOME/paperbot/logs")

	// Registered here since the flag must exist first
	if err := rootCmd.RegisterFlagCompletionFunc("config", completeConfigFile); err != nil {
		panic(err)
	}
}

// runBot connects to Discord and polls until ctx is cancelled.
func runBot(ctx context.Context) error {
	log := logger.Named("main")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := bot.NewSession(cfg.Token)
	if err != nil {
		return err
	}
	bot.RouteLibraryLogs(logger.Named("discord"))

	commands := bot.NewCommands(a.source, a.store, a.builds)
	router := bot.NewRouter(cfg.CommandPrefix, commands.All()...)

	b := bot.New(session, bot.Options{
		ChannelID: cfg.ChannelID.String(),
		Router:    router,
	})

	notifier := paper.NewMultiNotifier(b, a.webhook())
	poller := paper.NewPoller(a.source, a.store, notifier,
		paper.WithInterval(cfg.PollInterval.Duration()),
	)
	b.SetPoller(poller)

	if err := b.Open(); err != nil {
		return err
	}
	log.Info("Connected, waiting for the gateway (store: %s, notifiers: %d)", storeName(cfg.Store.Backend), notifier.Len())

	<-ctx.Done()
	log.Info("Shutting down")
	return b.Close()
}

func storeName(backend string) string {
	if backend == "" {
		return "file"
	}
	return backend
}

// exitCode logs a failed run through log, so it also reaches the log
// file, and returns the process exit status.
func exitCode(log *logger.Logger, err error) int {
	if err == nil {
		return 0
	}
	log.Error("%v", err)
	return 1
}

func main() {
	code := exitCode(logger.Default(), rootCmd.Execute())
	logger.Default().Close()
	os.Exit(code)
}
