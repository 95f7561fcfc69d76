// Package drive implements the remote hierarchy cache and the conflict-aware
// transfer pipeline: an entity store keyed by drivewsid, a pure path resolver
// over it, a reconciler that fills cache misses from the API, a transfer task
// planner, local-filesystem conflict detection with pluggable resolution
// policies, and a chunked parallel transfer executor.
package drive

import "errors"

// Sentinel errors for the cache and pipeline. Use errors.Is to check.
var (
	// ErrNotFound means a path or id does not resolve, locally or remotely.
	ErrNotFound = errors.New("drive: not found")

	// ErrNotAFolder means a path traverses through a file.
	ErrNotAFolder = errors.New("drive: not a folder")

	// ErrMissingDetails means the cache holds only a child summary for a
	// folder. Always recoverable: reconcile the id and retry.
	ErrMissingDetails = errors.New("drive: missing details")

	// ErrMissingRoot means the store has no root entity. Indicates a bug or
	// a corrupted persisted cache, not a transient condition.
	ErrMissingRoot = errors.New("drive: missing root")

	// ErrMissingParent means an entity's parent link dangles. Same severity
	// as ErrMissingRoot.
	ErrMissingParent = errors.New("drive: missing parent")

	// ErrConflictUnresolved means a resolution policy declined to decide.
	ErrConflictUnresolved = errors.New("drive: conflict unresolved")
)
