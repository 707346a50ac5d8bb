// internal/checkpoint/errors.go
package checkpoint

import "errors"

var (
	// ErrNotFound reports an unknown checkpoint id.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrSnapshotFailed reports that the backend could not capture the
	// project state.
	ErrSnapshotFailed = errors.New("snapshot failed")

	// ErrRestoreFailed reports that applying a snapshot failed.
	ErrRestoreFailed = errors.New("restore failed")

	// ErrBackendRefMissing reports that a checkpoint's metadata resolves to
	// no snapshot, e.g. a stash entry dropped outside this tool.
	ErrBackendRefMissing = errors.New("backend reference missing")

	// ErrLocked reports that another operation holds the store lock for the
	// same project directory.
	ErrLocked = errors.New("checkpoint store is locked")
)
