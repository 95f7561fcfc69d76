package drive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/icdrive/icdrive/internal/icloud"
)

// Store is the in-memory entity cache: drivewsid → Entity. It is owned by a
// single command invocation and mutated only by the Reconciler, so it needs
// no locking. All operations are synchronous and perform no I/O except the
// explicit Load/Save snapshot calls at the command boundary.
//
// Invariants: at most one entry per id; every non-root entry's ParentID is a
// well-known root id or another entry in the store; child summaries embedded
// in a parent's Items list are kept in sync with the flat map on Put.
type Store struct {
	byID map[string]Entity
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]Entity)}
}

// Get returns the entity for id, if cached.
func (s *Store) Get(id string) (Entity, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Len returns the number of cached entities.
func (s *Store) Len() int {
	return len(s.byID)
}

// Root returns the docs root entity. Fails with ErrMissingRoot if the root
// has not been cached yet.
func (s *Store) Root() (Entity, error) {
	e, ok := s.byID[icloud.RootID]
	if !ok {
		return Entity{}, ErrMissingRoot
	}

	return e, nil
}

// Trash returns the trash root entity. Fails with ErrMissingRoot if absent.
func (s *Store) Trash() (Entity, error) {
	e, ok := s.byID[icloud.TrashID]
	if !ok {
		return Entity{}, ErrMissingRoot
	}

	return e, nil
}

// Put upserts full details for one entity and upserts its children as
// summaries. A child that already holds full details keeps them: only its
// shallow summary fields are refreshed. Re-inserting details for an id that
// already holds details overwrites the previous details wholesale.
func (s *Store) Put(details Entity) {
	s.byID[details.ID] = details

	for _, child := range details.Items {
		s.mergeSummary(child)
	}
}

// PutSummary merges a child summary into the store without ever degrading an
// entity that already holds full details back to summary-only.
func (s *Store) PutSummary(e Entity) {
	s.mergeSummary(e.summary())
}

func (s *Store) mergeSummary(summary Entity) {
	existing, ok := s.byID[summary.ID]
	if !ok || !existing.HasDetails {
		s.byID[summary.ID] = summary
		return
	}

	// Details are monotonic: refresh the shallow fields, keep the children.
	summary.HasDetails = true
	summary.Items = existing.Items
	s.byID[summary.ID] = summary
}

// Invalidate demotes a folder's cached details back to a summary so the next
// resolution refetches its children. This is the explicit counterpart to the
// monotonic merge rule: only mutating remote operations (move, trash, upload,
// mkdir) call it, never a merge.
func (s *Store) Invalidate(id string) {
	e, ok := s.byID[id]
	if !ok || !e.HasDetails {
		return
	}

	s.byID[id] = e.summary()
}

// Remove evicts an id and scrubs it from its parent's child list, keeping the
// embedded summaries consistent with the flat map.
func (s *Store) Remove(id string) {
	e, ok := s.byID[id]
	if !ok {
		return
	}

	delete(s.byID, id)

	parent, ok := s.byID[e.ParentID]
	if !ok || !parent.HasDetails {
		return
	}

	kept := parent.Items[:0]

	for _, child := range parent.Items {
		if child.ID != id {
			kept = append(kept, child)
		}
	}

	parent.Items = kept
	s.byID[parent.ID] = parent
}

// HierarchyPath walks the parent links from id up to a well-known root and
// returns the chain ordered root-first. A dangling parent link is a cache
// consistency violation and fails with ErrMissingParent.
func (s *Store) HierarchyPath(id string) ([]Entity, error) {
	e, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("entity %q: %w", id, ErrNotFound)
	}

	chain := []Entity{e}

	for e.Kind != KindRoot && e.Kind != KindTrash {
		parent, ok := s.byID[e.ParentID]
		if !ok {
			return nil, fmt.Errorf("entity %q has dangling parent %q: %w", e.ID, e.ParentID, ErrMissingParent)
		}

		chain = append(chain, parent)
		e = parent
	}

	// Reverse to root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return chain, nil
}

// snapshot is the persisted form of the store: one whole JSON document.
type snapshot struct {
	ByID map[string]Entity `json:"byId"`
}

// LoadStore reads a persisted snapshot. A missing file yields an empty store;
// a corrupt file is an error so a broken cache never masquerades as empty.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(), nil
		}

		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing cache file %q: %w", path, err)
	}

	s := NewStore()
	if snap.ByID != nil {
		s.byID = snap.ByID
	}

	return s, nil
}

// Save writes the store as one whole JSON document, creating parent
// directories as needed.
func (s *Store) Save(path string) error {
	data, err := json.MarshalIndent(snapshot{ByID: s.byID}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}
