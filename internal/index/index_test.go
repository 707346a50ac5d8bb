// internal/index/index_test.go
package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestChunkFileBreaksAtDeclarations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.go")

	var b strings.Builder
	b.WriteString("package main\n\n")
	for i := 0; i < 40; i++ {
		b.WriteString("var filler = 1\n")
	}
	b.WriteString("func second() {\n\treturn\n}\n")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}

	chunks, err := ChunkFile(path, "code.go")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	if chunks[0].StartLine != 1 {
		t.Errorf("first chunk starts at %d, want 1", chunks[0].StartLine)
	}
	// The declaration past the half-window opens a fresh chunk.
	second := chunks[1]
	if !strings.HasPrefix(strings.TrimSpace(strings.Split(second.Content, "\n")[0]), "func ") {
		t.Errorf("second chunk does not start at the declaration: %q", second.Content)
	}
	if second.Kind != "declaration" {
		t.Errorf("second chunk kind = %q, want declaration", second.Kind)
	}
	if !strings.HasPrefix(second.ID, "code.go:") {
		t.Errorf("unexpected chunk id %q", second.ID)
	}
	if second.StartLine != chunks[0].EndLine+1 {
		t.Errorf("chunks not contiguous: %d after %d", second.StartLine, chunks[0].EndLine)
	}
}

func TestChunkFileSkipsBlankContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.go")
	if err := os.WriteFile(path, []byte("\n\n\n"), 0644); err != nil {
		t.Fatal(err)
	}

	chunks, err := ChunkFile(path, "empty.go")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("blank file produced %d chunks", len(chunks))
	}
}

func TestIndexableFile(t *testing.T) {
	if !indexableFile("main.go", 100) {
		t.Error("go files should be indexable")
	}
	if indexableFile("photo.png", 100) {
		t.Error("binary formats should not be indexable")
	}
	if indexableFile("huge.go", maxIndexedFileSize+1) {
		t.Error("oversized files should not be indexable")
	}
}

// wordEmbedder produces deterministic vectors from word occurrence, enough to
// make similar texts score higher than unrelated ones.
type wordEmbedder struct {
	vocab []string
}

func (e *wordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(e.vocab))
		lower := strings.ToLower(text)
		for j, word := range e.vocab {
			vec[j] = float32(strings.Count(lower, word))
		}
		out[i] = vec
	}
	return out, nil
}

func TestIndexAndSearch(t *testing.T) {
	root := t.TempDir()

	writeSource := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	writeSource("auth.go", "package auth\n\nfunc Login(user, password string) error {\n\treturn checkPassword(user, password)\n}\n")
	writeSource("parse.go", "package parse\n\nfunc ParseConfig(data []byte) error {\n\treturn yamlUnmarshal(data)\n}\n")
	writeSource("notes.txt", "not indexed\n")

	store, err := OpenStore(filepath.Join(root, "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	embedder := &wordEmbedder{vocab: []string{"login", "password", "parse", "config", "yaml"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ix := New(root, store, embedder, logger)

	stats, err := ix.Index(context.Background())
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if stats.FilesIndexed != 2 {
		t.Fatalf("expected 2 files indexed, got %d", stats.FilesIndexed)
	}

	results, err := ix.Search(context.Background(), "login password handling", 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "auth.go" {
		t.Errorf("top result %q, want auth.go", results[0].Path)
	}
	if results[0].Content == "" || results[0].StartLine < 1 {
		t.Errorf("result not hydrated: %+v", results[0])
	}
}

func TestIndexSkipsUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := OpenStore(filepath.Join(root, "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	embedder := &wordEmbedder{vocab: []string{"package"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ix := New(root, store, embedder, logger)

	if _, err := ix.Index(context.Background()); err != nil {
		t.Fatal(err)
	}
	stats, err := ix.Index(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIndexed != 0 {
		t.Errorf("unchanged file re-indexed: %+v", stats)
	}

	// A content change invalidates the stored hash.
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n\nvar x = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	stats, err = ix.Index(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIndexed != 1 {
		t.Errorf("changed file not re-indexed: %+v", stats)
	}
}

func TestReplaceFileDropsStaleChunks(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	old := []Chunk{{ID: "f.go:1-10", Path: "f.go", StartLine: 1, EndLine: 10, Kind: "block", Content: "old"}}
	if err := store.ReplaceFile("f.go", "hash1", old, [][]float32{{1, 0}}); err != nil {
		t.Fatal(err)
	}

	fresh := []Chunk{{ID: "f.go:1-5", Path: "f.go", StartLine: 1, EndLine: 5, Kind: "block", Content: "new"}}
	if err := store.ReplaceFile("f.go", "hash2", fresh, [][]float32{{0, 1}}); err != nil {
		t.Fatal(err)
	}

	results, err := store.Search([]float32{1, 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "f.go:1-5" {
		t.Errorf("stale chunks survived replacement: %+v", results)
	}

	hash, ok := store.FileHash("f.go")
	if !ok || hash != "hash2" {
		t.Errorf("FileHash = %q, %v; want hash2", hash, ok)
	}
}
