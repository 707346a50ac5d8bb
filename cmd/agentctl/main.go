// cmd/agentctl/main.go
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	projectDir string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "Drive a code-modifying agent with checkpointed undo",
	Long: `agentctl runs agent tasks against a project while keeping the ability to
undo their effects. Every task can be wrapped in a checkpoint: a git stash
for version-controlled projects, a recursive file backup otherwise.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "C", ".", "project directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
