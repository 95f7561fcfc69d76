package drive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icdrive/icdrive/internal/icloud"
)

// fakeFetcher serves canned retrieveItemDetailsInFolders responses and counts
// calls.
type fakeFetcher struct {
	items map[string]icloud.DriveItem
	calls int
	fail  error
}

func (f *fakeFetcher) RetrieveItemDetailsInFolders(_ context.Context, ids []string) ([]icloud.DriveItem, error) {
	f.calls++

	if f.fail != nil {
		return nil, f.fail
	}

	out := make([]icloud.DriveItem, 0, len(ids))

	for _, id := range ids {
		item, ok := f.items[id]
		if !ok {
			item = icloud.DriveItem{Drivewsid: id, Status: icloud.StatusIDInvalid}
		}

		out = append(out, item)
	}

	return out, nil
}

func apiRoot(children ...icloud.DriveItem) icloud.DriveItem {
	return icloud.DriveItem{
		Drivewsid: icloud.RootID,
		Docwsid:   "root",
		Zone:      "com.apple.CloudDocs",
		Type:      icloud.TypeFolder,
		Status:    icloud.StatusOK,
		Items:     children,
	}
}

func apiFolder(id, parentID, name string, children ...icloud.DriveItem) icloud.DriveItem {
	return icloud.DriveItem{
		Drivewsid: id,
		ParentID:  parentID,
		Name:      name,
		Etag:      "e-" + id,
		Type:      icloud.TypeFolder,
		Status:    icloud.StatusOK,
		Items:     children,
	}
}

func apiFile(id, parentID, name, ext string, size int64) icloud.DriveItem {
	return icloud.DriveItem{
		Drivewsid: id,
		Docwsid:   "doc-" + id,
		Zone:      "com.apple.CloudDocs",
		ParentID:  parentID,
		Name:      name,
		Extension: ext,
		Etag:      "e-" + id,
		Type:      icloud.TypeFile,
		Size:      size,
	}
}

func TestEnsure_FullyCachedCostsNoNetwork(t *testing.T) {
	s := seededStore(t)
	api := &fakeFetcher{}
	rec := NewReconciler(s, api, testLogger(t))

	entities, err := rec.Ensure(context.Background(), []string{"F::a", "FILE::x"})
	require.NoError(t, err)

	require.Len(t, entities, 2)
	assert.Equal(t, 0, api.calls, "cached details must not trigger a fetch")
}

func TestEnsure_FetchesMissedIDsInOneBatch(t *testing.T) {
	s := NewStore()
	s.Put(rootWith(
		folderSummary("F::a", icloud.RootID, "a"),
		folderSummary("F::b", icloud.RootID, "b"),
	))

	api := &fakeFetcher{items: map[string]icloud.DriveItem{
		"F::a": apiFolder("F::a", icloud.RootID, "a"),
		"F::b": apiFolder("F::b", icloud.RootID, "b"),
	}}
	rec := NewReconciler(s, api, testLogger(t))

	entities, err := rec.Ensure(context.Background(), []string{"F::a", "F::b"})
	require.NoError(t, err)

	assert.Equal(t, 1, api.calls, "misses batch into a single call")
	require.Len(t, entities, 2)
	assert.True(t, entities[0].HasDetails)
	assert.True(t, entities[1].HasDetails)

	// Second call is now fully served from cache.
	_, err = rec.Ensure(context.Background(), []string{"F::a", "F::b"})
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)
}

func TestEnsure_EvictsInvalidIDs(t *testing.T) {
	s := seededStore(t)
	s.Invalidate("F::a") // force a refetch

	api := &fakeFetcher{} // reports every id as invalid
	rec := NewReconciler(s, api, testLogger(t))

	_, err := rec.Ensure(context.Background(), []string{"F::a"})
	require.ErrorIs(t, err, ErrNotFound)

	_, ok := s.Get("F::a")
	assert.False(t, ok, "invalid id must be gone even though it was cached")
}

func TestEnsure_PropagatesFetchErrors(t *testing.T) {
	s := NewStore()
	s.Put(rootWith(folderSummary("F::a", icloud.RootID, "a")))

	api := &fakeFetcher{fail: errors.New("boom")}
	rec := NewReconciler(s, api, testLogger(t))

	_, err := rec.Ensure(context.Background(), []string{"F::a"})
	require.Error(t, err)
}

func TestEnsureRoot_PrimesEmptyStore(t *testing.T) {
	s := NewStore()
	api := &fakeFetcher{items: map[string]icloud.DriveItem{
		icloud.RootID: apiRoot(apiFolder("F::a", icloud.RootID, "a")),
	}}
	rec := NewReconciler(s, api, testLogger(t))

	root, err := rec.EnsureRoot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, KindRoot, root.Kind)
	assert.True(t, root.HasDetails)

	_, ok := s.Get("F::a")
	assert.True(t, ok, "root children land in the store as summaries")
}

func TestResolvePath_ReconcilesMissingDetails(t *testing.T) {
	s := NewStore()
	api := &fakeFetcher{items: map[string]icloud.DriveItem{
		icloud.RootID: apiRoot(apiFolder("F::a", icloud.RootID, "a")),
		"F::a":        apiFolder("F::a", icloud.RootID, "a", apiFile("FILE::x", "F::a", "x", "txt", 10)),
	}}
	rec := NewReconciler(s, api, testLogger(t))

	root, err := rec.EnsureRoot(context.Background())
	require.NoError(t, err)

	res, err := rec.ResolvePath(context.Background(), root, []string{"a", "x.txt"})
	require.NoError(t, err)

	require.True(t, res.Valid())
	assert.Equal(t, int64(10), res.Target().Size)
	assert.Equal(t, 2, api.calls, "one call for the root, one for the summary-only folder")
}

func TestResolvePath_UpgradesSummaryOnlyTarget(t *testing.T) {
	s := NewStore()
	api := &fakeFetcher{items: map[string]icloud.DriveItem{
		icloud.RootID: apiRoot(apiFolder("F::a", icloud.RootID, "a")),
		"F::a":        apiFolder("F::a", icloud.RootID, "a"),
	}}
	rec := NewReconciler(s, api, testLogger(t))

	root, err := rec.EnsureRoot(context.Background())
	require.NoError(t, err)

	res, err := rec.ResolvePath(context.Background(), root, []string{"a"})
	require.NoError(t, err)

	require.True(t, res.Valid())
	assert.True(t, res.Target().HasDetails, "resolved folders always carry details")
	assert.Equal(t, 2, api.calls)
}

func TestResolvePath_TerminalNotFound(t *testing.T) {
	s := NewStore()
	api := &fakeFetcher{items: map[string]icloud.DriveItem{
		icloud.RootID: apiRoot(),
	}}
	rec := NewReconciler(s, api, testLogger(t))

	root, err := rec.EnsureRoot(context.Background())
	require.NoError(t, err)

	res, err := rec.ResolvePath(context.Background(), root, []string{"ghost"})
	require.NoError(t, err)

	assert.Equal(t, ReasonNotFound, res.Reason)
}

func TestFlattenSubtree(t *testing.T) {
	s := NewStore()
	api := &fakeFetcher{items: map[string]icloud.DriveItem{
		icloud.RootID: apiRoot(apiFolder("F::a", icloud.RootID, "a")),
		"F::a": apiFolder("F::a", icloud.RootID, "a",
			apiFile("FILE::x", "F::a", "x", "txt", 10),
			apiFolder("F::b", "F::a", "b"),
		),
		"F::b": apiFolder("F::b", "F::a", "b", apiFile("FILE::y", "F::b", "y", "dat", 7)),
	}}
	rec := NewReconciler(s, api, testLogger(t))

	root, err := rec.EnsureRoot(context.Background())
	require.NoError(t, err)

	items, err := rec.FlattenSubtree(context.Background(), root, -1)
	require.NoError(t, err)

	paths := make([]string, 0, len(items))
	for _, item := range items {
		paths = append(paths, item.Path)
	}

	assert.ElementsMatch(t, []string{"a", "a/x.txt", "a/b", "a/b/y.dat"}, paths)
}

func TestFlattenSubtree_DepthZeroListsChildrenOnly(t *testing.T) {
	s := NewStore()
	api := &fakeFetcher{items: map[string]icloud.DriveItem{
		icloud.RootID: apiRoot(apiFolder("F::a", icloud.RootID, "a")),
	}}
	rec := NewReconciler(s, api, testLogger(t))

	root, err := rec.EnsureRoot(context.Background())
	require.NoError(t, err)

	items, err := rec.FlattenSubtree(context.Background(), root, 0)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Path)
}
