// internal/agent/sessionlog.go
package agent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"agentctl/internal/config"
)

// Error kinds recorded in the session log.
const (
	ErrorKindProvider    = "provider"
	ErrorKindInterrupted = "interrupted"
)

// LogEntry is one append-only session log record. Entries are never mutated
// or deleted by the engine.
type LogEntry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Task         string    `json:"task"`
	Provider     string    `json:"provider"`
	Success      bool      `json:"success"`
	CheckpointID string    `json:"checkpoint_id,omitempty"`
	BatchID      string    `json:"batch_id,omitempty"`
	OutputLength int       `json:"output_length"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	FilesTouched []string  `json:"files_touched,omitempty"`
}

// SessionLog appends one JSONL record per task execution and stores the full
// provider output as a zstd-compressed transcript beside it.
type SessionLog struct {
	path           string
	transcriptsDir string
	encoder        *zstd.Encoder
	decoder        *zstd.Decoder
	mu             sync.Mutex
}

// NewSessionLog creates the session log for the project described by layout.
func NewSessionLog(layout *config.Layout) *SessionLog {
	encoder, _ := zstd.NewWriter(nil)
	decoder, _ := zstd.NewReader(nil)

	return &SessionLog{
		path:           layout.SessionLogPath,
		transcriptsDir: layout.TranscriptsDir,
		encoder:        encoder,
		decoder:        decoder,
	}
}

// Append writes one log record and its transcript. The transcript write is
// best effort; the JSONL record is the source of truth.
func (l *SessionLog) Append(entry LogEntry, output string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal session entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append session entry: %w", err)
	}

	if output != "" {
		compressed := l.encoder.EncodeAll([]byte(output), nil)
		transcriptPath := filepath.Join(l.transcriptsDir, entry.ID+".zst")
		if err := os.WriteFile(transcriptPath, compressed, 0644); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
	}

	return nil
}

// Read returns the most recent limit entries in log order. limit <= 0 means
// all entries.
func (l *SessionLog) Read(limit int) ([]LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan session log: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Transcript loads and decompresses the stored provider output for one log
// entry.
func (l *SessionLog) Transcript(entryID string) (string, error) {
	compressed, err := os.ReadFile(filepath.Join(l.transcriptsDir, entryID+".zst"))
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}

	data, err := l.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return "", fmt.Errorf("decompress transcript: %w", err)
	}
	return string(data), nil
}
