// Package cli implements the ragchat command line.
package cli

import (
	"github.com/spf13/cobra"

	"ragchat/internal/config"
	"ragchat/internal/logger"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Retrieval-augmented site assistant",
	Long: `ragchat indexes a directory of documents and answers questions about
them with citations, over HTTP or in an interactive terminal chat.

Secrets are read from the environment.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (yaml or toml; defaults to ./config.yaml, ./config.toml, ~/.config/ragchat/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.AppConfig, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	cfg, path, err := config.LoadDefault()
	if err == nil {
		logger.Debug("SERVICE: using config %s", path)
	}
	return cfg, err
}
