// cmd/agentctl/log.go
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"agentctl/internal/agent"
	"agentctl/internal/config"
)

var logFlags struct {
	limit      int
	transcript string
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the session log",
	RunE: func(cmd *cobra.Command, args []string) error {
		layout, err := config.Resolve(projectDir)
		if err != nil {
			return err
		}
		sessionLog := agent.NewSessionLog(layout)

		if logFlags.transcript != "" {
			output, err := sessionLog.Transcript(logFlags.transcript)
			if err != nil {
				return err
			}
			fmt.Print(output)
			return nil
		}

		entries, err := sessionLog.Read(logFlags.limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no session entries")
			return nil
		}

		for _, e := range entries {
			status := "✓"
			if !e.Success {
				status = "✗"
			}
			line := fmt.Sprintf("%s %s  %-8s  %s", status,
				e.Timestamp.Format(time.RFC3339), e.Provider, e.Task)
			if e.CheckpointID != "" {
				line += fmt.Sprintf("  [checkpoint %s]", e.CheckpointID)
			}
			if e.ErrorKind != "" {
				line += fmt.Sprintf("  (%s)", e.ErrorKind)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	logCmd.Flags().IntVarP(&logFlags.limit, "limit", "n", 20, "entries to show (0 for all)")
	logCmd.Flags().StringVar(&logFlags.transcript, "transcript", "", "print the stored output of a log entry id")
	rootCmd.AddCommand(logCmd)
}
