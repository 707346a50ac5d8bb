// internal/checkpoint/models.go
package checkpoint

import "time"

// BackendKind identifies the snapshot mechanism behind a checkpoint. It is
// fixed at creation time and trusted at restore time; the project's VCS
// status is never re-derived once a checkpoint exists.
type BackendKind string

const (
	// BackendStash snapshots through the project's git stash.
	BackendStash BackendKind = "stash"
	// BackendCopy snapshots through a recursive file copy.
	BackendCopy BackendKind = "copy"
)

// Checkpoint is the immutable record of one project snapshot.
type Checkpoint struct {
	ID            string      `json:"id"`
	Description   string      `json:"description,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	Backend       BackendKind `json:"backend"`
	BackendRef    string      `json:"backend_ref"`
	ModifiedFiles []string    `json:"modified_files,omitempty"`
}
