// Package commands holds the lookbook CLI and its composition root.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	env        string
	configPath string
	logLevel   string
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "lookbook",
		Short: "Fashion recommender: intent normalization, vector retrieval, LLM reranking",
		Long: `lookbook recommends catalog items for a free-text shopping query.

A query is rewritten into a normalized intent by a language model, matched
against a precomputed embedding index of item descriptions, and the nearest
candidates are reranked by a second model call.

Examples:
  lookbook build --limit 5000
  lookbook serve
  lookbook recommend "something warm for a winter wedding"
  lookbook describe ./dress.jpg`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// .env is optional; config secrets_file and the process env still apply.
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.env, "env", "", "Environment name selecting config/<env>.yaml (default $ENV or local)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Explicit config file path, overrides --env lookup")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	cmd.AddCommand(
		newServeCmd(opts),
		newBuildCmd(opts),
		newRecommendCmd(opts),
		newDescribeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute() //nolint:wrapcheck // cobra errors are already user-facing
}
