// cmd/agentctl/batch.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"agentctl/internal/agent"
)

var batchFlags struct {
	file              string
	noCheckpoint      bool
	autoAccept        bool
	autoRestore       bool
	continueOnFailure bool
}

var batchCmd = &cobra.Command{
	Use:   "batch [task]...",
	Short: "Execute tasks in sequence with one shared checkpoint",
	Long: `Runs the given tasks (or one task per line from --file) as a single
logical unit: one leading checkpoint, one continued provider session. The
batch stops at the first failure unless --continue-on-failure is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks := args
		if batchFlags.file != "" {
			fromFile, err := readTaskFile(batchFlags.file)
			if err != nil {
				return err
			}
			tasks = append(tasks, fromFile...)
		}
		if len(tasks) == 0 {
			return fmt.Errorf("no tasks given")
		}

		ex, err := agent.Open(projectDir, slog.Default())
		if err != nil {
			return err
		}

		opts := ex.DefaultOptions()
		if batchFlags.noCheckpoint {
			opts.Checkpoint = false
		}
		opts.AutoAccept = batchFlags.autoAccept
		if batchFlags.autoRestore {
			opts.AutoRestoreOnFailure = true
		}
		opts.ContinueOnFailure = batchFlags.continueOnFailure

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		br, err := ex.ExecuteBatch(ctx, tasks, opts)
		if err != nil {
			return err
		}

		if br.CheckpointID != "" {
			fmt.Printf("batch checkpoint: %s\n", br.CheckpointID)
		}
		for i, res := range br.Results {
			fmt.Printf("\n[%d/%d] %s\n", i+1, len(tasks), res.Task)
			printTaskResult(res)
		}
		if br.HaltedAt >= 0 {
			return fmt.Errorf("batch halted at task %d of %d", br.HaltedAt+1, len(tasks))
		}
		return nil
	},
}

func readTaskFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tasks []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tasks = append(tasks, line)
	}
	return tasks, scanner.Err()
}

func init() {
	batchCmd.Flags().StringVarP(&batchFlags.file, "file", "f", "", "file with one task per line")
	batchCmd.Flags().BoolVar(&batchFlags.noCheckpoint, "no-checkpoint", false, "skip the leading batch checkpoint")
	batchCmd.Flags().BoolVar(&batchFlags.autoAccept, "auto-accept", false, "let the provider apply destructive actions without asking")
	batchCmd.Flags().BoolVar(&batchFlags.autoRestore, "auto-restore", false, "restore the batch checkpoint when a task fails")
	batchCmd.Flags().BoolVar(&batchFlags.continueOnFailure, "continue-on-failure", false, "keep running tasks after a failure")
	rootCmd.AddCommand(batchCmd)
}
