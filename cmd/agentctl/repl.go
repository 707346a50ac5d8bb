// cmd/agentctl/repl.go
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"agentctl/internal/agent"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive agent mode with checkpoint controls",
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, err := agent.Open(projectDir, slog.Default())
		if err != nil {
			return err
		}

		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "agent> ",
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return err
		}
		defer rl.Close()

		fmt.Println("agentctl interactive mode")
		fmt.Println("commands: task <description>, checkpoint [description], restore <id>, list, exit")

		for {
			line, err := rl.Readline()
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}

			input := strings.TrimSpace(line)
			if input == "" {
				continue
			}
			command, rest, _ := strings.Cut(input, " ")

			switch strings.ToLower(command) {
			case "exit", "quit":
				return nil

			case "task":
				if rest == "" {
					fmt.Println("usage: task <description>")
					continue
				}
				runReplTask(ex, rest)

			case "checkpoint":
				cp, err := ex.Store().Create(rest)
				if err != nil {
					fmt.Printf("✗ checkpoint failed: %v\n", err)
					continue
				}
				fmt.Printf("✓ created checkpoint %s\n", cp.ID)

			case "restore":
				if rest == "" {
					fmt.Println("usage: restore <id>")
					continue
				}
				if err := ex.Store().Restore(rest); err != nil {
					fmt.Printf("✗ restore failed: %v\n", err)
					continue
				}
				fmt.Printf("✓ restored checkpoint %s\n", rest)

			case "list":
				checkpoints, err := ex.Store().List()
				if err != nil {
					fmt.Printf("✗ list failed: %v\n", err)
					continue
				}
				if len(checkpoints) > 10 {
					checkpoints = checkpoints[:10]
				}
				for _, cp := range checkpoints {
					fmt.Printf("  %s - %s (%d files)\n", cp.ID, cp.Description, len(cp.ModifiedFiles))
				}

			default:
				fmt.Println("unknown command; use task, checkpoint, restore, list, or exit")
			}
		}
	},
}

func runReplTask(ex *agent.Executor, task string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := ex.DefaultOptions()
	res, err := ex.ExecuteTask(ctx, task, opts)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		return
	}
	printTaskResult(res)
}

func init() {
	rootCmd.AddCommand(replCmd)
}
