// cmd/agentctl/task.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"agentctl/internal/agent"
)

var taskFlags struct {
	noCheckpoint       bool
	checkpointRequired bool
	checkpointAfter    bool
	autoAccept         bool
	continueSession    bool
	autoRestore        bool
	template           string
}

var taskCmd = &cobra.Command{
	Use:   "task <description>",
	Short: "Execute one agent task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, err := agent.Open(projectDir, slog.Default())
		if err != nil {
			return err
		}

		opts := ex.DefaultOptions()
		if taskFlags.noCheckpoint {
			opts.Checkpoint = false
		}
		if taskFlags.checkpointRequired {
			opts.CheckpointRequired = true
		}
		opts.CheckpointAfter = taskFlags.checkpointAfter
		opts.AutoAccept = taskFlags.autoAccept
		opts.ContinueSession = taskFlags.continueSession
		if taskFlags.autoRestore {
			opts.AutoRestoreOnFailure = true
		}
		opts.PromptTemplate = taskFlags.template

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		res, err := ex.ExecuteTask(ctx, strings.Join(args, " "), opts)
		if err != nil {
			return err
		}

		printTaskResult(res)
		if !res.Success {
			return fmt.Errorf("task failed")
		}
		return nil
	},
}

func printTaskResult(res *agent.TaskResult) {
	switch {
	case res.Interrupted:
		fmt.Println("⚠ task interrupted")
	case res.Success:
		fmt.Println("✓ task completed")
	default:
		fmt.Println("✗ task failed")
	}

	if res.CheckpointID != "" {
		fmt.Printf("  checkpoint: %s\n", res.CheckpointID)
	}
	if res.CheckpointErr != nil {
		fmt.Printf("  checkpoint skipped: %v\n", res.CheckpointErr)
	}
	if res.RestoreAttempted {
		if res.RestoreErr != nil {
			fmt.Printf("  auto-restore failed: %v\n", res.RestoreErr)
		} else {
			fmt.Printf("  auto-restored checkpoint %s\n", res.CheckpointID)
		}
	}
	if res.PostCheckpointID != "" {
		fmt.Printf("  post-task checkpoint: %s\n", res.PostCheckpointID)
	}
	if res.PostCheckpointErr != nil {
		fmt.Printf("  post-task checkpoint failed: %v\n", res.PostCheckpointErr)
	}
	if len(res.FilesTouched) > 0 {
		fmt.Printf("  files touched: %s\n", strings.Join(res.FilesTouched, ", "))
	}
	if res.Output != "" {
		fmt.Println(res.Output)
	}
	if res.Error != "" {
		fmt.Fprintln(os.Stderr, res.Error)
	}
}

func init() {
	taskCmd.Flags().BoolVar(&taskFlags.noCheckpoint, "no-checkpoint", false, "skip the pre-task checkpoint")
	taskCmd.Flags().BoolVar(&taskFlags.checkpointRequired, "checkpoint-required", false, "abort if the pre-task checkpoint cannot be created")
	taskCmd.Flags().BoolVar(&taskFlags.checkpointAfter, "checkpoint-after", false, "create a second checkpoint after success")
	taskCmd.Flags().BoolVar(&taskFlags.autoAccept, "auto-accept", false, "let the provider apply destructive actions without asking")
	taskCmd.Flags().BoolVar(&taskFlags.continueSession, "continue", false, "continue the provider's previous session")
	taskCmd.Flags().BoolVar(&taskFlags.autoRestore, "auto-restore", false, "restore the pre-task checkpoint if the task fails")
	taskCmd.Flags().StringVar(&taskFlags.template, "template", "", "prompt template name")
	rootCmd.AddCommand(taskCmd)
}
