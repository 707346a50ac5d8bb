// cmd/agentctl/checkpoint.go
package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"agentctl/internal/agent"
	"agentctl/internal/checkpoint"
	"agentctl/internal/config"
)

// openStore builds a checkpoint store without constructing a provider, so
// checkpoint commands work even when no agent CLI is installed.
func openStore() (*checkpoint.Store, *agent.Config, error) {
	layout, err := config.Resolve(projectDir)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := agent.LoadConfig(layout.AgentConfigPath)
	if err != nil {
		return nil, nil, err
	}
	return checkpoint.NewStore(layout, slog.Default()), cfg, nil
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Manage project checkpoints",
}

var checkpointCreateCmd = &cobra.Command{
	Use:   "create [description]",
	Short: "Snapshot the current project state",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}

		cp, err := store.Create(strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("✓ created checkpoint %s (%s backend)\n", cp.ID, cp.Backend)
		return nil
	},
}

var checkpointRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore the project to a checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}

		if err := store.Restore(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ restored checkpoint %s\n", args[0])
		return nil
	},
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}

		checkpoints, err := store.List()
		if err != nil {
			return err
		}
		if len(checkpoints) == 0 {
			fmt.Println("no checkpoints")
			return nil
		}
		for _, cp := range checkpoints {
			fmt.Printf("%s  %-5s  %3d files  %s\n",
				cp.ID, cp.Backend, len(cp.ModifiedFiles), cp.Description)
		}
		return nil
	},
}

var cleanupKeep int

var checkpointCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old checkpoints, keeping the most recent ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}

		keep := cleanupKeep
		if keep < 0 {
			keep = cfg.MaxCheckpoints
		}

		removed, err := store.Cleanup(keep)
		if err != nil {
			return err
		}
		fmt.Printf("✓ removed %d checkpoint(s), kept up to %d\n", removed, keep)
		return nil
	},
}

func init() {
	checkpointCleanupCmd.Flags().IntVar(&cleanupKeep, "keep", -1, "checkpoints to retain (default: max_checkpoints from agent.yml)")
	checkpointCmd.AddCommand(checkpointCreateCmd, checkpointRestoreCmd, checkpointListCmd, checkpointCleanupCmd)
	rootCmd.AddCommand(checkpointCmd)
}
