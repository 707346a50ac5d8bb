// internal/checkpoint/copy.go
package checkpoint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"agentctl/internal/config"
)

// copyBackend snapshots non-VCS projects through a recursive file copy into a
// per-checkpoint backup directory.
type copyBackend struct {
	projectDir string
	backupRoot string
}

func newCopyBackend(projectDir, backupRoot string) *copyBackend {
	return &copyBackend{projectDir: projectDir, backupRoot: backupRoot}
}

func (b *copyBackend) Kind() BackendKind {
	return BackendCopy
}

// Snapshot copies the project tree into a fresh backup directory and returns
// that directory as the backend ref.
func (b *copyBackend) Snapshot(id string) (string, error) {
	dest := filepath.Join(b.backupRoot, id)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	if err := copyTree(b.projectDir, dest); err != nil {
		os.RemoveAll(dest)
		return "", fmt.Errorf("backup project files: %w", err)
	}

	return dest, nil
}

// Apply overwrites project files from the backup directory. Directories are
// replaced wholesale (delete then copy), files are overwritten in place.
func (b *copyBackend) Apply(ref string) error {
	info, err := os.Stat(ref)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: backup directory %s", ErrBackendRefMissing, ref)
		}
		return fmt.Errorf("stat backup dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrBackendRefMissing, ref)
	}

	entries, err := os.ReadDir(ref)
	if err != nil {
		return fmt.Errorf("read backup dir: %w", err)
	}

	for _, entry := range entries {
		src := filepath.Join(ref, entry.Name())
		dest := filepath.Join(b.projectDir, entry.Name())

		if entry.IsDir() {
			if err := os.RemoveAll(dest); err != nil {
				return fmt.Errorf("remove %s: %w", dest, err)
			}
			if err := copyTree(src, dest); err != nil {
				return fmt.Errorf("restore %s: %w", dest, err)
			}
		} else {
			if err := copyFile(src, dest); err != nil {
				return fmt.Errorf("restore %s: %w", dest, err)
			}
		}
	}

	return nil
}

// copyTree recursively copies src into dst, skipping excluded directory names
// at every level. Non-regular files other than directories are ignored.
func copyTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			if _, excluded := config.SkipDirs[entry.Name()]; excluded {
				continue
			}
			if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

// copyFile copies a single file, preserving its permission bits.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
