// internal/index/indexer.go
package index

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"agentctl/internal/config"
)

// embedBatchSize bounds how many chunks go into one embedding request.
const embedBatchSize = 16

// Indexer builds and queries the semantic index for one project tree. It has
// no interaction with checkpointing beyond sharing the project directory.
type Indexer struct {
	root     string
	store    *Store
	embedder Embedder
	logger   *slog.Logger
}

// Stats summarizes one indexing run.
type Stats struct {
	FilesScanned int
	FilesIndexed int
	Chunks       int
}

// New creates an indexer rooted at root.
func New(root string, store *Store, embedder Embedder, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{root: root, store: store, embedder: embedder, logger: logger}
}

// Index walks the project tree and (re)embeds every changed source file.
// Unchanged files are detected by content hash and skipped.
func (ix *Indexer) Index(ctx context.Context) (Stats, error) {
	var stats Stats

	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := config.SkipDirs[d.Name()]; skip && path != ix.root {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		info, err := d.Info()
		if err != nil || !indexableFile(path, info.Size()) {
			return nil
		}
		stats.FilesScanned++

		rel, err := filepath.Rel(ix.root, path)
		if err != nil {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			ix.logger.Warn("skipping unreadable file", "path", rel, "error", err)
			return nil
		}
		hash := fmt.Sprintf("%x", sha256.Sum256(data))

		if stored, ok := ix.store.FileHash(rel); ok && stored == hash {
			return nil
		}

		chunks, err := ChunkFile(path, rel)
		if err != nil {
			ix.logger.Warn("skipping unchunkable file", "path", rel, "error", err)
			return nil
		}
		if len(chunks) == 0 {
			return nil
		}

		embeddings, err := ix.embedChunks(ctx, chunks)
		if err != nil {
			return fmt.Errorf("embed %s: %w", rel, err)
		}

		if err := ix.store.ReplaceFile(rel, hash, chunks, embeddings); err != nil {
			return fmt.Errorf("store %s: %w", rel, err)
		}

		stats.FilesIndexed++
		stats.Chunks += len(chunks)
		return nil
	})
	if err != nil {
		return stats, err
	}

	ix.logger.Info("index updated", "scanned", stats.FilesScanned,
		"indexed", stats.FilesIndexed, "chunks", stats.Chunks)
	return stats, nil
}

// Search embeds the query and returns the best-matching chunks.
func (ix *Indexer) Search(ctx context.Context, query string, limit int) ([]ScoredChunk, error) {
	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.store.Search(vectors[0], limit)
}

func (ix *Indexer) embedChunks(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Content)
		}

		batch, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}
