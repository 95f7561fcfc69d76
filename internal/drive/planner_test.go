package drive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remoteFile(path string, size int64) RemoteFile {
	return RemoteFile{
		Path:  path,
		ID:    "FILE::" + path,
		DocID: "doc-" + path,
		Zone:  "com.apple.CloudDocs",
		Etag:  "e-" + path,
		Size:  size,
	}
}

func localPaths(items []PlanItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.LocalPath)
	}

	return out
}

func TestPlan_MirrorKeepsStructure(t *testing.T) {
	files := []RemoteFile{
		remoteFile("a/x.txt", 10),
		remoteFile("a/b/y.dat", 7),
	}

	task, excluded, err := Plan(files, PlanOpts{DstDir: "dst"})
	require.NoError(t, err)

	assert.Empty(t, excluded)
	assert.Equal(t, []string{
		filepath.Join("dst", "a", "x.txt"),
		filepath.Join("dst", "a", "b", "y.dat"),
	}, localPaths(task.Transferable))
}

func TestPlan_DirsAreParentFirst(t *testing.T) {
	files := []RemoteFile{
		remoteFile("a/b/y.dat", 7),
		remoteFile("a/x.txt", 10),
	}

	task, _, err := Plan(files, PlanOpts{DstDir: "dst"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"dst",
		filepath.Join("dst", "a"),
		filepath.Join("dst", "a", "b"),
	}, task.DirsToCreate)
}

func TestPlan_EmptyFilesSplitOut(t *testing.T) {
	files := []RemoteFile{
		remoteFile("full.bin", 10),
		remoteFile("empty.bin", 0),
	}

	task, _, err := Plan(files, PlanOpts{DstDir: "dst"})
	require.NoError(t, err)

	require.Len(t, task.Transferable, 1)
	assert.Equal(t, "full.bin", task.Transferable[0].Remote.Path)

	require.Len(t, task.Empty, 1)
	assert.Equal(t, "empty.bin", task.Empty[0].Remote.Path)
}

func TestPlan_IncludeExcludeCascade(t *testing.T) {
	files := []RemoteFile{
		remoteFile("keep.txt", 1),
		remoteFile("drop.log", 1),
		remoteFile("notes.txt", 1),
	}

	task, excluded, err := Plan(files, PlanOpts{
		DstDir:  "dst",
		Include: []string{"*.txt"},
		Exclude: []string{"notes.txt"},
	})
	require.NoError(t, err)

	require.Len(t, task.Transferable, 1)
	assert.Equal(t, "keep.txt", task.Transferable[0].Remote.Path)

	require.Len(t, excluded, 2)
	assert.Equal(t, "drop.log", excluded[0].Path)
	assert.Equal(t, "notes.txt", excluded[1].Path)
}

func TestPlan_ExcludedDirsDoNotAppear(t *testing.T) {
	files := []RemoteFile{
		remoteFile("a/x.txt", 1),
		remoteFile("junk/huge.iso", 1),
	}

	task, _, err := Plan(files, PlanOpts{DstDir: "dst", Exclude: []string{"junk/"}})
	require.NoError(t, err)

	assert.NotContains(t, task.DirsToCreate, filepath.Join("dst", "junk"),
		"directories implied only by excluded files stay out of the plan")
}

func TestPlan_FullyExcludedCreatesNoDirs(t *testing.T) {
	files := []RemoteFile{
		remoteFile("a/x.txt", 1),
		remoteFile("a/b/y.dat", 1),
	}

	task, excluded, err := Plan(files, PlanOpts{DstDir: "dst", Exclude: []string{"*"}})
	require.NoError(t, err)

	require.Len(t, excluded, 2)
	assert.Empty(t, task.DirsToCreate, "nothing survives, nothing is created")
}

func TestPlan_Flatten(t *testing.T) {
	files := []RemoteFile{
		remoteFile("a/b/y.dat", 7),
	}

	task, _, err := Plan(files, PlanOpts{DstDir: "dst", Mapping: MapFlatten})
	require.NoError(t, err)

	require.Len(t, task.Transferable, 1)
	assert.Equal(t, filepath.Join("dst", "y.dat"), task.Transferable[0].LocalPath)
	assert.Equal(t, []string{"dst"}, task.DirsToCreate)
}

func TestPlan_FlattenBasenameCollisionFails(t *testing.T) {
	// Flattening drops the directory part, so equal basenames from different
	// folders would race on one local destination.
	files := []RemoteFile{
		remoteFile("a/x.txt", 1),
		remoteFile("b/x.txt", 1),
	}

	_, _, err := Plan(files, PlanOpts{DstDir: "dst", Mapping: MapFlatten})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collides")
}

func TestPlan_FlattenExcludedDuplicateIsFine(t *testing.T) {
	files := []RemoteFile{
		remoteFile("a/x.txt", 1),
		remoteFile("b/x.txt", 1),
	}

	task, excluded, err := Plan(files, PlanOpts{DstDir: "dst", Mapping: MapFlatten, Exclude: []string{"b/"}})
	require.NoError(t, err, "only surviving files can collide")

	require.Len(t, task.Transferable, 1)
	require.Len(t, excluded, 1)
}

func TestPlan_StripPrefix(t *testing.T) {
	files := []RemoteFile{
		remoteFile("docs/reports/q1.pdf", 5),
	}

	task, _, err := Plan(files, PlanOpts{DstDir: "dst", StripPrefix: "docs/"})
	require.NoError(t, err)

	require.Len(t, task.Transferable, 1)
	assert.Equal(t, filepath.Join("dst", "reports", "q1.pdf"), task.Transferable[0].LocalPath)
}

func TestPlan_NormalizesDecomposedNames(t *testing.T) {
	// The service hands back decomposed names (e + combining acute); the plan
	// must compose them before they land on disk.
	decomposed := "re\u0301sume\u0301.txt"
	composed := "r\u00e9sum\u00e9.txt"

	task, _, err := Plan([]RemoteFile{remoteFile(decomposed, 3)}, PlanOpts{DstDir: "dst"})
	require.NoError(t, err)

	require.Len(t, task.Transferable, 1)
	assert.Equal(t, filepath.Join("dst", composed), task.Transferable[0].LocalPath)
}

func TestPlan_NoFiles(t *testing.T) {
	task, excluded, err := Plan(nil, PlanOpts{DstDir: "dst"})
	require.NoError(t, err)

	assert.Empty(t, excluded)
	assert.Empty(t, task.Transferable)
	assert.Empty(t, task.Empty)
	assert.Empty(t, task.DirsToCreate)
}
