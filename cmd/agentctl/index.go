// cmd/agentctl/index.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"agentctl/internal/agent"
	"agentctl/internal/config"
	"agentctl/internal/index"
)

func openIndexer() (*index.Indexer, *index.Store, error) {
	layout, err := config.Resolve(projectDir)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := agent.LoadConfig(layout.AgentConfigPath)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := index.NewOpenAIEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model)
	if err != nil {
		return nil, nil, err
	}

	store, err := index.OpenStore(layout.IndexPath)
	if err != nil {
		return nil, nil, err
	}

	return index.New(layout.ProjectDir, store, embedder, slog.Default()), store, nil
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the semantic code index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, store, err := openIndexer()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		stats, err := ix.Index(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✓ scanned %d files, indexed %d (%d chunks)\n",
			stats.FilesScanned, stats.FilesIndexed, stats.Chunks)
		return nil
	},
}

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the semantic code index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, store, err := openIndexer()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		results, err := ix.Search(ctx, args[0], searchLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no results")
			return nil
		}

		for i, r := range results {
			fmt.Printf("%d. %s:%d-%d  (%s, score %.4f)\n",
				i+1, r.Path, r.StartLine, r.EndLine, r.Kind, r.Score)
			preview := r.Content
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			fmt.Printf("   %s\n", preview)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "results to return")
	rootCmd.AddCommand(indexCmd, searchCmd)
}
