package drive

import (
	"strings"
)

// ResolveReason classifies why a resolution stopped short of its target.
type ResolveReason string

const (
	// ReasonNone marks a valid resolution.
	ReasonNone ResolveReason = ""
	// ReasonNotFound: a segment does not exist among the current folder's children.
	ReasonNotFound ResolveReason = "not_found"
	// ReasonNotAFolder: a non-final segment resolved to a file.
	ReasonNotAFolder ResolveReason = "not_a_folder"
	// ReasonMissingDetails: a folder on the path is cached as a summary only.
	// The caller should reconcile the last chain entity and retry.
	ReasonMissingDetails ResolveReason = "missing_details"
)

// Resolution is the outcome of resolving a user path against the store:
// either valid (Rest empty, Chain runs root→target) or invalid (Chain is the
// longest valid prefix, Rest the unconsumed remainder, Reason the cause).
// For ReasonMissingDetails the summary-only folder is the last chain entity.
type Resolution struct {
	Chain  []Entity
	Rest   []string
	Reason ResolveReason
}

// Valid reports whether the full path resolved.
func (r Resolution) Valid() bool {
	return r.Reason == ReasonNone
}

// Target returns the resolved entity (the last of the chain).
func (r Resolution) Target() Entity {
	return r.Chain[len(r.Chain)-1]
}

// Err converts an invalid resolution into its sentinel error.
func (r Resolution) Err() error {
	switch r.Reason {
	case ReasonNotFound:
		return ErrNotFound
	case ReasonNotAFolder:
		return ErrNotAFolder
	case ReasonMissingDetails:
		return ErrMissingDetails
	default:
		return nil
	}
}

// SplitPath splits a user path into segments, treating "/" and "" as root.
func SplitPath(path string) []string {
	clean := strings.Trim(path, "/")
	if clean == "" {
		return nil
	}

	return strings.Split(clean, "/")
}

// Resolve walks path segments from root against the store. It is a pure
// function of (store, root, path): no I/O, case-sensitive exact name matches
// only. A folder-like entity cached without details yields
// ReasonMissingDetails, whether it is traversed or is the target itself; the
// resolver never fetches.
func Resolve(s *Store, root Entity, path []string) Resolution {
	chain := []Entity{root}
	current := root

	for i, segment := range path {
		rest := path[i:]

		if !current.IsFolderLike() {
			return Resolution{Chain: chain, Rest: rest, Reason: ReasonNotAFolder}
		}

		if !current.HasDetails {
			return Resolution{Chain: chain, Rest: rest, Reason: ReasonMissingDetails}
		}

		child, ok := childByName(s, current, segment)
		if !ok {
			return Resolution{Chain: chain, Rest: rest, Reason: ReasonNotFound}
		}

		chain = append(chain, child)

		if child.Kind == KindFile && i < len(path)-1 {
			return Resolution{Chain: chain, Rest: path[i+1:], Reason: ReasonNotAFolder}
		}

		current = child
	}

	// A folder-like target cached as a summary is not resolved either: its
	// children are unknown, and a listing would conflate "empty" with
	// "not fetched".
	if current.IsFolderLike() && !current.HasDetails {
		return Resolution{Chain: chain, Reason: ReasonMissingDetails}
	}

	return Resolution{Chain: chain}
}

// ResolveAll resolves multiple paths independently, in input order.
func ResolveAll(s *Store, root Entity, paths [][]string) []Resolution {
	out := make([]Resolution, 0, len(paths))
	for _, p := range paths {
		out = append(out, Resolve(s, root, p))
	}

	return out
}

// childByName finds a child of parent by exact listing name. The store's flat
// map is preferred over the embedded summary so a child upgraded to full
// details is returned in its upgraded state.
func childByName(s *Store, parent Entity, name string) (Entity, bool) {
	for _, child := range parent.Items {
		if child.FullName() != name {
			continue
		}

		if cached, ok := s.Get(child.ID); ok {
			return cached, true
		}

		return child, true
	}

	return Entity{}, false
}
