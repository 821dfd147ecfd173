package main

import (
	"github.com/Sternrassler/search-client/pkg/config"
	"github.com/Sternrassler/search-client/pkg/logging"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "searchctl",
		Short: "Query search engines through the cached search client",
		Long: `searchctl runs searches through the same engines the search proxy serves.

Examples:
  searchctl engines
  searchctl search wikipedia "golang generics" --top 5
  searchctl search bing news --type image --param api_key=KEY --json`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				level, err := logging.ParseLevel(opts.logLevel)
				if err != nil {
					return err
				}
				cfg.Log.Level = level
			}
			cfg.Log.Output = cmd.ErrOrStderr()
			logging.Setup(cfg.Log)
			opts.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to YAML config file (default: built-in defaults plus SEARCH_* environment)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log", "",
		"Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(newEnginesCmd(opts), newSearchCmd(opts))
	return rootCmd
}
