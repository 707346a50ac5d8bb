// internal/checkpoint/store.go
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"agentctl/internal/config"
	"agentctl/internal/gitutil"
)

// Store persists checkpoint metadata and dispatches snapshot and restore
// operations to the backend recorded in each checkpoint. All operations for
// one project directory are serialized behind an advisory lock file; the lock
// is never held across a provider call.
type Store struct {
	layout *config.Layout
	logger *slog.Logger
}

// NewStore creates a checkpoint store for the project described by layout.
func NewStore(layout *config.Layout, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{layout: layout, logger: logger}
}

// Create snapshots the current project state. Projects under version control
// get a stash-backed checkpoint, everything else a copy-backed one. The
// modified-files capture is best effort: a failed status query yields an
// empty list, not an error.
func (s *Store) Create(description string) (*Checkpoint, error) {
	lock, err := acquire(s.lockPath())
	if err != nil {
		return nil, err
	}
	defer lock.release()

	id := newID()

	repo, isGit, err := gitutil.Detect(s.layout.ProjectDir)
	if err != nil {
		s.logger.Warn("git detection failed, using copy backend", "error", err)
		isGit = false
	}

	cp := &Checkpoint{
		ID:          id,
		Description: description,
		CreatedAt:   time.Now(),
	}

	var b backend
	if isGit {
		// Keep our metadata directory out of status output and stashes.
		if err := repo.EnsureExcluded(config.MetaDirName + "/"); err != nil {
			s.logger.Warn("could not exclude metadata directory from git", "error", err)
		}
		b = newStashBackend(repo, s.logger)
		if files, err := repo.ModifiedFiles(); err == nil {
			cp.ModifiedFiles = files
		} else {
			s.logger.Warn("could not capture modified files", "error", err)
		}
	} else {
		b = newCopyBackend(s.layout.ProjectDir, s.layout.CheckpointsDir)
	}

	ref, err := b.Snapshot(id)
	if err != nil {
		return nil, fmt.Errorf("%w: checkpoint %s: %v", ErrSnapshotFailed, id, err)
	}
	cp.Backend = b.Kind()
	cp.BackendRef = ref

	// Logged before the metadata write so a crash between snapshot and
	// persistence leaves a discoverable locator in the log.
	s.logger.Info("snapshot captured", "checkpoint", id, "backend", cp.Backend, "ref", ref)

	if err := s.writeMetadata(cp); err != nil {
		return nil, fmt.Errorf("persist checkpoint %s: %w", id, err)
	}

	s.logger.Info("checkpoint created", "checkpoint", id, "description", description,
		"modified_files", len(cp.ModifiedFiles))
	return cp, nil
}

// Restore applies the snapshot behind the given checkpoint id. The backend
// kind stored in the metadata is trusted; the project's VCS status is not
// re-derived.
func (s *Store) Restore(id string) error {
	lock, err := acquire(s.lockPath())
	if err != nil {
		return err
	}
	defer lock.release()

	cp, err := s.Get(id)
	if err != nil {
		return err
	}

	var b backend
	switch cp.Backend {
	case BackendStash:
		repo, isGit, err := gitutil.Detect(s.layout.ProjectDir)
		if err != nil || !isGit {
			return fmt.Errorf("%w: checkpoint %s is stash-backed but %s is not a git repository",
				ErrRestoreFailed, id, s.layout.ProjectDir)
		}
		if err := repo.EnsureExcluded(config.MetaDirName + "/"); err != nil {
			s.logger.Warn("could not exclude metadata directory from git", "error", err)
		}
		b = newStashBackend(repo, s.logger)
	case BackendCopy:
		b = newCopyBackend(s.layout.ProjectDir, s.layout.CheckpointsDir)
	default:
		return fmt.Errorf("%w: checkpoint %s has unknown backend %q", ErrRestoreFailed, id, cp.Backend)
	}

	if err := b.Apply(cp.BackendRef); err != nil {
		if errors.Is(err, ErrBackendRefMissing) {
			return err
		}
		return fmt.Errorf("%w: checkpoint %s: %v", ErrRestoreFailed, id, err)
	}

	s.logger.Info("checkpoint restored", "checkpoint", id, "backend", cp.Backend)
	return nil
}

// Get loads a single checkpoint record.
func (s *Store) Get(id string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.metadataPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read checkpoint metadata: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint %s: %w", id, err)
	}
	return &cp, nil
}

// List returns all checkpoints, newest first.
func (s *Store) List() ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.layout.CheckpointsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var checkpoints []Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		cp, err := s.Get(id)
		if err != nil {
			s.logger.Warn("skipping unreadable checkpoint metadata", "file", entry.Name(), "error", err)
			continue
		}
		checkpoints = append(checkpoints, *cp)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		if checkpoints[i].CreatedAt.Equal(checkpoints[j].CreatedAt) {
			return checkpoints[i].ID > checkpoints[j].ID
		}
		return checkpoints[i].CreatedAt.After(checkpoints[j].CreatedAt)
	})

	return checkpoints, nil
}

// Cleanup retains the keepCount most recent checkpoints and removes the
// metadata of everything older. Copy-backed snapshots have their backup
// directories deleted; stash entries are left in git's stash list until git
// garbage-collects them.
func (s *Store) Cleanup(keepCount int) (int, error) {
	lock, err := acquire(s.lockPath())
	if err != nil {
		return 0, err
	}
	defer lock.release()

	checkpoints, err := s.List()
	if err != nil {
		return 0, err
	}
	if len(checkpoints) <= keepCount {
		return 0, nil
	}

	removed := 0
	for _, cp := range checkpoints[keepCount:] {
		if cp.Backend == BackendCopy {
			if err := os.RemoveAll(cp.BackendRef); err != nil {
				s.logger.Warn("could not remove backup directory", "checkpoint", cp.ID, "error", err)
				continue
			}
		}
		if err := os.Remove(s.metadataPath(cp.ID)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("could not remove checkpoint metadata", "checkpoint", cp.ID, "error", err)
			continue
		}
		removed++
	}

	s.logger.Info("checkpoint cleanup finished", "kept", keepCount, "removed", removed)
	return removed, nil
}

func (s *Store) lockPath() string {
	return filepath.Join(s.layout.CheckpointsDir, ".lock")
}

func (s *Store) metadataPath(id string) string {
	return filepath.Join(s.layout.CheckpointsDir, id+".json")
}

// writeMetadata persists the checkpoint record atomically via a temp file
// rename.
func (s *Store) writeMetadata(cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tmp := s.metadataPath(cp.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, s.metadataPath(cp.ID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

var (
	idMu   sync.Mutex
	lastID string
)

// newID returns a lexicographically sortable, timestamp-derived identifier.
// The millisecond suffix plus the strictly-greater check keep ids unique and
// increasing under single-writer use.
func newID() string {
	idMu.Lock()
	defer idMu.Unlock()

	for {
		now := time.Now()
		id := fmt.Sprintf("%s_%03d", now.Format("20060102_150405"), now.Nanosecond()/1e6)
		if id > lastID {
			lastID = id
			return id
		}
		time.Sleep(time.Millisecond)
	}
}
