// Package commands provides the gemini-chat CLI: the web server and a few
// maintenance commands over the exchange history.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slotter-org/gemini-chat/internal/config"
	"github.com/slotter-org/gemini-chat/internal/logger"
)

var (
	envFileFlag string

	log = logger.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "gemini-chat",
	Short: "Chat with Google Gemini and keep a history of every exchange",
	Long: `gemini-chat serves a small web chat in front of the Gemini API and records
each prompt and reply in a relational store.

Examples:
  gemini-chat serve                              Start the web server
  gemini-chat history recent --limit 10          Show the latest exchanges
  gemini-chat history export --out history.csv   Export the latest 5 as CSV
  gemini-chat history purge --yes                Delete every stored exchange`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

// setup loads the dotenv file and builds the logger every command uses.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(logger.Nop(), envFileFlag); err != nil {
		return fmt.Errorf("failed to load %s: %w", envFileFlag, err)
	}
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	l, err := logger.New(logMode)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	log = l
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
}
