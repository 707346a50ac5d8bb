// internal/checkpoint/store_test.go
package checkpoint

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"agentctl/internal/config"
)

func newTestStore(t *testing.T) (*Store, *config.Layout) {
	t.Helper()

	layout, err := config.Resolve(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(layout, logger), layout
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestCopyBackendRoundTrip(t *testing.T) {
	store, layout := newTestStore(t)

	writeFile(t, filepath.Join(layout.ProjectDir, "main.go"), "package main\n")
	writeFile(t, filepath.Join(layout.ProjectDir, "pkg", "util.go"), "package pkg\n")

	cp, err := store.Create("before edits")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if cp.Backend != BackendCopy {
		t.Fatalf("expected copy backend for non-git project, got %s", cp.Backend)
	}
	if _, err := os.Stat(cp.BackendRef); err != nil {
		t.Fatalf("backup directory not resolvable: %v", err)
	}

	// Mutate both files, one of them inside a directory that gets replaced
	// wholesale on restore.
	writeFile(t, filepath.Join(layout.ProjectDir, "main.go"), "package main // changed\n")
	writeFile(t, filepath.Join(layout.ProjectDir, "pkg", "util.go"), "package pkg // changed\n")
	writeFile(t, filepath.Join(layout.ProjectDir, "pkg", "extra.go"), "package pkg\n")

	if err := store.Restore(cp.ID); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if got := readFile(t, filepath.Join(layout.ProjectDir, "main.go")); got != "package main\n" {
		t.Errorf("main.go not restored byte-for-byte: %q", got)
	}
	if got := readFile(t, filepath.Join(layout.ProjectDir, "pkg", "util.go")); got != "package pkg\n" {
		t.Errorf("pkg/util.go not restored byte-for-byte: %q", got)
	}
	// Directories are replaced delete-then-copy, so the file created after
	// the checkpoint is gone.
	if _, err := os.Stat(filepath.Join(layout.ProjectDir, "pkg", "extra.go")); !os.IsNotExist(err) {
		t.Errorf("expected pkg/extra.go to be removed by directory replacement")
	}
}

func TestRestoreNotFound(t *testing.T) {
	store, layout := newTestStore(t)

	writeFile(t, filepath.Join(layout.ProjectDir, "main.go"), "package main\n")

	err := store.Restore("19700101_000000_000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// No filesystem mutation happened.
	if got := readFile(t, filepath.Join(layout.ProjectDir, "main.go")); got != "package main\n" {
		t.Errorf("restore of unknown id mutated the project: %q", got)
	}
}

func TestRestoreMissingBackupDir(t *testing.T) {
	store, layout := newTestStore(t)

	writeFile(t, filepath.Join(layout.ProjectDir, "main.go"), "package main\n")

	cp, err := store.Create("doomed")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(cp.BackendRef); err != nil {
		t.Fatal(err)
	}

	err = store.Restore(cp.ID)
	if !errors.Is(err, ErrBackendRefMissing) {
		t.Fatalf("expected ErrBackendRefMissing, got %v", err)
	}
}

func TestListOrdering(t *testing.T) {
	store, layout := newTestStore(t)
	writeFile(t, filepath.Join(layout.ProjectDir, "a.txt"), "a\n")

	var ids []string
	for i := 0; i < 3; i++ {
		cp, err := store.Create("checkpoint")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, cp.ID)
	}

	list, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(list))
	}
	// Newest first.
	for i, cp := range list {
		want := ids[len(ids)-1-i]
		if cp.ID != want {
			t.Errorf("list[%d] = %s, want %s", i, cp.ID, want)
		}
	}

	// IDs are lexicographically sortable in creation order.
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("id %s is not greater than predecessor %s", ids[i], ids[i-1])
		}
	}
}

func TestCleanupKeepsMostRecent(t *testing.T) {
	store, layout := newTestStore(t)
	writeFile(t, filepath.Join(layout.ProjectDir, "a.txt"), "a\n")

	var all []*Checkpoint
	for i := 0; i < 5; i++ {
		cp, err := store.Create("checkpoint")
		if err != nil {
			t.Fatal(err)
		}
		all = append(all, cp)
	}

	removed, err := store.Cleanup(2)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 removed, got %d", removed)
	}

	list, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 checkpoints after cleanup, got %d", len(list))
	}
	if list[0].ID != all[4].ID || list[1].ID != all[3].ID {
		t.Errorf("cleanup kept wrong checkpoints: %s, %s", list[0].ID, list[1].ID)
	}

	// The 3 oldest backup directories and metadata files are gone.
	for _, cp := range all[:3] {
		if _, err := os.Stat(cp.BackendRef); !os.IsNotExist(err) {
			t.Errorf("backup dir for %s still present", cp.ID)
		}
		if _, err := os.Stat(filepath.Join(layout.CheckpointsDir, cp.ID+".json")); !os.IsNotExist(err) {
			t.Errorf("metadata for %s still present", cp.ID)
		}
	}
}

func TestLockBlocksConcurrentOperations(t *testing.T) {
	store, layout := newTestStore(t)
	writeFile(t, filepath.Join(layout.ProjectDir, "a.txt"), "a\n")

	held, err := acquire(store.lockPath())
	if err != nil {
		t.Fatal(err)
	}
	defer held.release()

	if _, err := store.Create("blocked"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked while lock held, got %v", err)
	}
}

func TestSnapshotExcludesHousekeepingDirs(t *testing.T) {
	store, layout := newTestStore(t)

	writeFile(t, filepath.Join(layout.ProjectDir, "a.txt"), "a\n")
	writeFile(t, filepath.Join(layout.ProjectDir, "node_modules", "dep.js"), "x\n")

	cp, err := store.Create("exclusions")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(cp.BackendRef, "a.txt")); err != nil {
		t.Errorf("expected a.txt in backup: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cp.BackendRef, "node_modules")); !os.IsNotExist(err) {
		t.Errorf("node_modules should not be captured")
	}
	if _, err := os.Stat(filepath.Join(cp.BackendRef, config.MetaDirName)); !os.IsNotExist(err) {
		t.Errorf("metadata directory should not be captured")
	}
}
