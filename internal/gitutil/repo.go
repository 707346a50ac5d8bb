// internal/gitutil/repo.go
package gitutil

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
)

// Repo represents a Git repository
type Repo struct {
	path string
	repo *git.Repository
}

// Detect opens the git repository at path. The boolean reports whether the
// directory is under version control at all; other failures (corrupt
// repository, permission errors) are returned as errors.
func Detect(path string) (*Repo, bool, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open git repository: %w", err)
	}

	return &Repo{path: path, repo: repo}, true, nil
}

// Path returns the repository root path.
func (r *Repo) Path() string {
	return r.path
}

// ModifiedFiles returns the repo-relative paths of all files that differ from
// HEAD, including untracked files, in sorted order.
func (r *Repo) ModifiedFiles() ([]string, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	var paths []string
	for path, fileStatus := range status {
		if fileStatus.Staging == git.Unmodified && fileStatus.Worktree == git.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	return paths, nil
}

// EnsureExcluded appends pattern to .git/info/exclude if it is not already
// listed, keeping the matched paths out of status output and stashes without
// touching the project's .gitignore.
func (r *Repo) EnsureExcluded(pattern string) error {
	excludePath := filepath.Join(r.path, ".git", "info", "exclude")

	data, err := os.ReadFile(excludePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read exclude file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == pattern {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(excludePath), 0755); err != nil {
		return fmt.Errorf("create info dir: %w", err)
	}
	f, err := os.OpenFile(excludePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open exclude file: %w", err)
	}
	defer f.Close()

	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Fprintln(f)
	}
	_, err = fmt.Fprintln(f, pattern)
	return err
}

// Run executes a git command in the repository directory and returns its
// trimmed stdout. Used for operations go-git does not implement (stash).
func (r *Repo) Run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.path

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return strings.TrimSpace(stdout.String()), fmt.Errorf("git %s: %w, stderr: %s",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}
