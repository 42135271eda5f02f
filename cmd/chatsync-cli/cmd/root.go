package cmd

import (
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/vibecheck/chatsync/internal/config"
	"github.com/vibecheck/chatsync/internal/engine"
	"github.com/vibecheck/chatsync/internal/logging"
	"github.com/vibecheck/chatsync/internal/session"
)

var (
	flagConfig string
	flagAPIURL string
	flagToken  string
)

var rootCmd = &cobra.Command{
	Use:   "chatsync-cli",
	Short: "Command-line client for the vibecheck chat backend",
	Long: `chatsync-cli drives the chatsync engine from the terminal.

Available commands:
  conversations    List the conversations you are a member of
  messages         Print a conversation's message history
  send             Send a message to a conversation
  upload           Attach a file to a conversation
  watch            Follow a conversation live (messages, typing, presence)

Use "chatsync-cli [command] --help" for more information about a command.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.New()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "REST base address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token (overrides config)")
}

// newInjector wires the CLI's dependency graph: config, session, engine.
func newInjector() do.Injector {
	injector := do.New()

	do.Provide(injector, func(i do.Injector) (*config.Config, error) {
		var cfg *config.Config
		var err error
		if flagConfig != "" {
			cfg, err = config.NewFromFile(flagConfig)
		} else {
			cfg, err = config.New()
		}
		if err != nil {
			return nil, err
		}
		if flagAPIURL != "" {
			cfg.APIBaseURL = flagAPIURL
		}
		if flagToken != "" {
			cfg.Token = flagToken
		}
		return cfg, nil
	})

	do.Provide(injector, func(i do.Injector) (*session.Session, error) {
		cfg, err := do.Invoke[*config.Config](i)
		if err != nil {
			return nil, err
		}
		return session.New(cfg.Token), nil
	})

	do.Provide(injector, func(i do.Injector) (*engine.Engine, error) {
		cfg, err := do.Invoke[*config.Config](i)
		if err != nil {
			return nil, err
		}
		sess, err := do.Invoke[*session.Session](i)
		if err != nil {
			return nil, err
		}
		return engine.New(cfg, sess)
	})

	return injector
}
