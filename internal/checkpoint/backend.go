// internal/checkpoint/backend.go
package checkpoint

// backend is the capability set shared by the two snapshot mechanisms. A
// backend owns no metadata; the Store records which kind produced each
// checkpoint and dispatches restores accordingly.
type backend interface {
	// Kind identifies the backend in checkpoint metadata.
	Kind() BackendKind

	// Snapshot captures the current project state under the given checkpoint
	// id and returns an opaque locator for it.
	Snapshot(id string) (ref string, err error)

	// Apply restores the project state from a previously returned locator.
	Apply(ref string) error
}
