// internal/checkpoint/stash.go
package checkpoint

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"agentctl/internal/gitutil"
)

// stashLabelPrefix is prepended to the checkpoint id to form the stash
// message we later search for.
const stashLabelPrefix = "agent-checkpoint: "

// stashRefNoChanges marks a checkpoint taken on a clean working tree. git
// creates no stash entry for a clean tree ("No local changes to save"), so
// there is nothing to search for at restore time; the marker keeps the
// backend ref resolvable anyway.
const stashRefNoChanges = "no-changes"

// stashBackend snapshots through the project's git stash. Stash entries are
// never deleted by cleanup; they persist until git garbage-collects them.
type stashBackend struct {
	repo   *gitutil.Repo
	logger *slog.Logger
}

func newStashBackend(repo *gitutil.Repo, logger *slog.Logger) *stashBackend {
	return &stashBackend{repo: repo, logger: logger}
}

func (b *stashBackend) Kind() BackendKind {
	return BackendStash
}

// Snapshot stashes all tracked and untracked changes under a label derived
// from the checkpoint id. An empty working tree is not an error; it yields a
// checkpoint with the no-changes marker instead of a stash label, since git
// creates no entry to label.
func (b *stashBackend) Snapshot(id string) (string, error) {
	dirty, err := b.hasChanges()
	if err != nil {
		return "", fmt.Errorf("check working tree: %w", err)
	}
	if !dirty {
		return stashRefNoChanges, nil
	}

	label := stashLabelPrefix + id
	if _, err := b.repo.Run("stash", "push", "--include-untracked", "-m", label); err != nil {
		return "", fmt.Errorf("stash push: %w", err)
	}

	return label, nil
}

// Apply restores the stash entry whose label matches ref. The current
// uncommitted state is first stashed away under a transient label so the
// restore itself is undoable and never silently discards work.
func (b *stashBackend) Apply(ref string) error {
	// Resolve the target before touching the tree, so a missing stash entry
	// fails without moving the user's uncommitted work anywhere.
	if ref != stashRefNoChanges {
		if _, err := b.findStash(ref); err != nil {
			return err
		}
	}

	dirty, err := b.hasChanges()
	if err != nil {
		return fmt.Errorf("check working tree: %w", err)
	}
	if dirty {
		safety := "agentctl restore safety " + uuid.NewString()
		if _, err := b.repo.Run("stash", "push", "--include-untracked", "-m", safety); err != nil {
			return fmt.Errorf("safety stash before restore: %w", err)
		}
		b.logger.Info("stashed uncommitted changes before restore", "label", safety)
	}

	if ref == stashRefNoChanges {
		// The checkpoint captured a clean tree; stashing the current changes
		// already brought the tree back to that state.
		return nil
	}

	// The safety stash shifted every index by one, so resolve again.
	index, err := b.findStash(ref)
	if err != nil {
		return err
	}

	if _, err := b.repo.Run("stash", "pop", fmt.Sprintf("stash@{%d}", index)); err != nil {
		return fmt.Errorf("stash pop: %w", err)
	}

	return nil
}

// findStash locates the stash entry whose message contains ref. Multiple
// matches should not happen under single-writer discipline; when they do the
// most recent entry wins and a warning is logged.
func (b *stashBackend) findStash(ref string) (int, error) {
	out, err := b.repo.Run("stash", "list")
	if err != nil {
		return 0, fmt.Errorf("stash list: %w", err)
	}

	var matches []int
	for _, line := range strings.Split(out, "\n") {
		if line == "" || !strings.Contains(line, ref) {
			continue
		}
		// Lines look like "stash@{2}: On main: agent-checkpoint: <id>".
		open := strings.Index(line, "{")
		end := strings.Index(line, "}")
		if open < 0 || end < open {
			continue
		}
		index, err := strconv.Atoi(line[open+1 : end])
		if err != nil {
			continue
		}
		matches = append(matches, index)
	}

	if len(matches) == 0 {
		return 0, fmt.Errorf("%w: no stash entry matches %q", ErrBackendRefMissing, ref)
	}
	if len(matches) > 1 {
		b.logger.Warn("multiple stash entries match checkpoint label, applying most recent",
			"label", ref, "matches", len(matches))
	}

	// stash@{0} is the newest entry, so the smallest index is the most
	// recently created match.
	best := matches[0]
	for _, m := range matches[1:] {
		if m < best {
			best = m
		}
	}
	return best, nil
}

func (b *stashBackend) hasChanges() (bool, error) {
	out, err := b.repo.Run("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}
