package drive

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/icdrive/icdrive/internal/icloud"
)

// DetailsFetcher is the slice of the API client the reconciler needs.
type DetailsFetcher interface {
	RetrieveItemDetailsInFolders(ctx context.Context, drivewsids []string) ([]icloud.DriveItem, error)
}

// Reconciler bridges cache misses to the remote API. It is the only component
// that mutates the store during a command, and the only place where a missing
// cache entry escalates to network I/O.
type Reconciler struct {
	store  *Store
	api    DetailsFetcher
	logger *slog.Logger
}

// NewReconciler creates a reconciler over the given store and API client.
func NewReconciler(store *Store, api DetailsFetcher, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{store: store, api: api, logger: logger}
}

// Store returns the underlying entity store.
func (r *Reconciler) Store() *Store {
	return r.store
}

// Ensure returns full-details entities for ids, serving cached details and
// batch-fetching the rest in a single call. Fetched details are merged into
// the store as one synchronous fold after the network call returns; ids the
// server reports invalid are evicted. Fails with ErrNotFound if an id is
// neither cached nor returned. Idempotent: fully cached ids cost no network.
func (r *Reconciler) Ensure(ctx context.Context, ids []string) ([]Entity, error) {
	var missed []string

	for _, id := range ids {
		if e, ok := r.store.Get(id); !ok || (e.IsFolderLike() && !e.HasDetails) {
			missed = append(missed, id)
		}
	}

	if len(missed) > 0 {
		r.logger.Debug("cache miss, fetching details",
			slog.Int("requested", len(ids)),
			slog.Int("missed", len(missed)),
		)

		items, err := r.api.RetrieveItemDetailsInFolders(ctx, missed)
		if err != nil {
			return nil, err
		}

		for i, item := range items {
			if item.Status != "" && item.Status != icloud.StatusOK {
				r.logger.Debug("evicting invalid id", slog.String("drivewsid", missed[i]))
				r.store.Remove(missed[i])

				continue
			}

			r.store.Put(EntityFromItem(item))
		}
	}

	out := make([]Entity, 0, len(ids))

	for _, id := range ids {
		e, ok := r.store.Get(id)
		if !ok {
			return nil, fmt.Errorf("entity %q: %w", id, ErrNotFound)
		}

		out = append(out, e)
	}

	return out, nil
}

// EnsureRoot primes and returns the docs root with full details.
func (r *Reconciler) EnsureRoot(ctx context.Context) (Entity, error) {
	return r.ensureWellKnown(ctx, icloud.RootID)
}

// EnsureTrash primes and returns the trash root with full details.
func (r *Reconciler) EnsureTrash(ctx context.Context) (Entity, error) {
	return r.ensureWellKnown(ctx, icloud.TrashID)
}

func (r *Reconciler) ensureWellKnown(ctx context.Context, id string) (Entity, error) {
	entities, err := r.Ensure(ctx, []string{id})
	if err != nil {
		return Entity{}, err
	}

	return entities[0], nil
}

// ResolvePath resolves a path against root, reconciling summary-only folders
// on the way until the resolution is terminal. The loop is bounded by the
// path length: each reconcile upgrades at least the last chain entity, so
// MissingDetails cannot recur for the same entity.
func (r *Reconciler) ResolvePath(ctx context.Context, root Entity, segments []string) (Resolution, error) {
	for {
		// Re-read the root each pass; a reconcile may have upgraded it.
		current, ok := r.store.Get(root.ID)
		if !ok {
			return Resolution{}, fmt.Errorf("root %q: %w", root.ID, ErrNotFound)
		}

		res := Resolve(r.store, current, segments)
		if res.Reason != ReasonMissingDetails {
			return res, nil
		}

		if _, err := r.Ensure(ctx, []string{res.Target().ID}); err != nil {
			return Resolution{}, err
		}
	}
}

// TreeItem is one node of a flattened subtree: its path relative to the
// flatten root ("" for the root itself) and its entity.
type TreeItem struct {
	Path   string
	Entity Entity
}

// FlattenSubtree walks the folder tree under root breadth-first, reconciling
// folder details level by level, and returns all nodes with their relative
// paths. depth < 0 means unlimited; depth 0 lists only the root's immediate
// children. Child folders at each level are reconciled in one batch.
func (r *Reconciler) FlattenSubtree(ctx context.Context, root Entity, depth int) ([]TreeItem, error) {
	entities, err := r.Ensure(ctx, []string{root.ID})
	if err != nil {
		return nil, err
	}

	level := []TreeItem{{Path: "", Entity: entities[0]}}
	out := []TreeItem{}

	for len(level) > 0 {
		var next []TreeItem
		var folderIDs []string

		for _, node := range level {
			for _, child := range node.Entity.Items {
				item := TreeItem{
					Path:   path.Join(node.Path, child.FullName()),
					Entity: child,
				}
				out = append(out, item)

				if child.IsFolderLike() && depth != 0 {
					next = append(next, item)
					folderIDs = append(folderIDs, child.ID)
				}
			}
		}

		if len(folderIDs) == 0 {
			break
		}

		resolved, err := r.Ensure(ctx, folderIDs)
		if err != nil {
			return nil, err
		}

		for i := range next {
			next[i].Entity = resolved[i]
		}

		level = next

		if depth > 0 {
			depth--
		}
	}

	return out, nil
}
