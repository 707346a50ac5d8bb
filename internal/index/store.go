// internal/index/store.go
package index

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Chunk is one indexed slice of a source file.
type Chunk struct {
	ID        string
	Path      string
	StartLine int
	EndLine   int
	Kind      string
	Content   string
}

// ScoredChunk pairs a chunk with its cosine similarity to a query.
type ScoredChunk struct {
	Chunk
	Score float64
}

// Store persists chunks and their embeddings in SQLite. Embeddings are kept
// normalized in memory for brute-force cosine search; at the sizes a single
// project produces this is exact and fast.
type Store struct {
	db *sql.DB

	mu      sync.RWMutex
	vectors map[string][]float32
}

// OpenStore opens (and if needed creates) the index database.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	s := &Store{db: db, vectors: make(map[string][]float32)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("index migrate: %w", err)
	}
	if err := s.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("index load: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS files (
		path       TEXT PRIMARY KEY,
		hash       TEXT NOT NULL,
		indexed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id         TEXT PRIMARY KEY,
		path       TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line   INTEGER NOT NULL,
		kind       TEXT NOT NULL DEFAULT 'code',
		content    TEXT NOT NULL,
		embedding  BLOB NOT NULL,
		dims       INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path);
	`)
	return err
}

func (s *Store) loadVectors() error {
	rows, err := s.db.Query("SELECT id, embedding, dims FROM chunks")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		var dims int
		if err := rows.Scan(&id, &blob, &dims); err != nil {
			return err
		}
		s.vectors[id] = blobToFloat32(blob, dims)
	}
	return rows.Err()
}

// FileHash returns the stored content hash for a file path, if indexed.
func (s *Store) FileHash(path string) (string, bool) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM files WHERE path = ?", path).Scan(&hash)
	if err != nil {
		return "", false
	}
	return hash, true
}

// ReplaceFile atomically swaps a file's chunks and embeddings for fresh ones.
func (s *Store) ReplaceFile(path, hash string, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	oldIDs, err := chunkIDsForPath(tx, path)
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM chunks WHERE path = ?", path); err != nil {
		return err
	}

	normalized := make([][]float32, len(embeddings))
	for i, chunk := range chunks {
		vec := normalize(embeddings[i])
		normalized[i] = vec
		_, err := tx.Exec(
			"INSERT INTO chunks (id, path, start_line, end_line, kind, content, embedding, dims) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			chunk.ID, chunk.Path, chunk.StartLine, chunk.EndLine, chunk.Kind, chunk.Content,
			float32ToBlob(vec), len(vec),
		)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(
		"INSERT INTO files (path, hash, indexed_at) VALUES (?, ?, ?) ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, indexed_at = excluded.indexed_at",
		path, hash, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, id := range oldIDs {
		delete(s.vectors, id)
	}
	for i, chunk := range chunks {
		s.vectors[chunk.ID] = normalized[i]
	}
	s.mu.Unlock()

	return nil
}

// Search returns the limit chunks most similar to the query embedding.
func (s *Store) Search(query []float32, limit int) ([]ScoredChunk, error) {
	q := normalize(query)

	s.mu.RLock()
	scores := make([]ScoredChunk, 0, len(s.vectors))
	for id, vec := range s.vectors {
		scores = append(scores, ScoredChunk{Chunk: Chunk{ID: id}, Score: dot(q, vec)})
	}
	s.mu.RUnlock()

	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}

	for i := range scores {
		chunk, err := s.chunk(scores[i].ID)
		if err != nil {
			return nil, err
		}
		scores[i].Chunk = chunk
	}
	return scores, nil
}

func (s *Store) chunk(id string) (Chunk, error) {
	var c Chunk
	err := s.db.QueryRow(
		"SELECT id, path, start_line, end_line, kind, content FROM chunks WHERE id = ?", id,
	).Scan(&c.ID, &c.Path, &c.StartLine, &c.EndLine, &c.Kind, &c.Content)
	if err != nil {
		return Chunk{}, fmt.Errorf("load chunk %s: %w", id, err)
	}
	return c, nil
}

func chunkIDsForPath(tx *sql.Tx, path string) ([]string, error) {
	rows, err := tx.Query("SELECT id FROM chunks WHERE path = ?", path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func float32ToBlob(vec []float32) []byte {
	blob := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func blobToFloat32(blob []byte, dims int) []float32 {
	if len(blob) < 4*dims {
		dims = len(blob) / 4
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
