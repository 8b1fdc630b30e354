package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

// Global flags
type globalFlags struct {
	configPath string
	dbPath     string
	provider   string
	baseURL    string
	logLevel   string
	offline    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "scout",
		Short: "Scout - conversational lead qualification with a live component graph",
		Long: `Scout runs a short qualification conversation with a visitor, collects
business insights from what they say, and maps the AI clients, models and
company systems they mention onto a component graph.

Settings come from flags, SCOUT_* environment variables and
~/.scout/config.yaml, in that order.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file (default: ~/.scout/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database path (default: ~/.scout/scout.db)")
	rootCmd.PersistentFlags().StringVar(&flags.provider, "provider", "", "Completion gateway: openai, openrouter, ollama, deepseek or custom")
	rootCmd.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "Gateway base URL override")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flags.offline, "offline", false, "Never call the gateway; use fallback replies and pattern extraction")

	rootCmd.AddCommand(
		newChatCmd(flags),
		newAnalyzeCmd(flags),
		newServeCmd(flags),
		newMCPCmd(flags),
		newPatternsCmd(),
		newConfigCmd(flags),
		newStatsCmd(flags),
		newSessionsCmd(flags),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scout version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scout %s\n", version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
