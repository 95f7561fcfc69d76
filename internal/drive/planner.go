package drive

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/text/unicode/norm"
)

// RemoteFile is one downloadable file of a flattened subtree: its path
// relative to the tree root plus the identifying metadata a transfer needs.
type RemoteFile struct {
	Path     string
	ID       string
	DocID    string
	Zone     string
	Etag     string
	Size     int64
	Modified time.Time
}

// PlanItem pairs a remote file with its planned local destination.
type PlanItem struct {
	Remote    RemoteFile
	LocalPath string
}

// Task is a planned set of file transfers: the local directories that must
// exist (sorted parent-first), the non-empty files to transfer, and the empty
// files that are created directly without a network round trip.
type Task struct {
	DirsToCreate []string
	Transferable []PlanItem
	Empty        []PlanItem
}

// Mapping selects the remote→local path strategy.
type Mapping int

const (
	// MapMirror appends the remote relative path to the destination
	// directory, preserving structure. Used for recursive transfers.
	MapMirror Mapping = iota
	// MapFlatten drops the directory structure: every file lands directly
	// under the destination directory.
	MapFlatten
)

// PlanOpts configures planning.
type PlanOpts struct {
	// DstDir is the local destination directory.
	DstDir string
	// Include keeps only matching files; empty means keep all.
	Include []string
	// Exclude drops matching files, after Include.
	Exclude []string
	// Mapping is the path strategy (mirror by default).
	Mapping Mapping
	// StripPrefix removes a leading remote path prefix before mapping, so a
	// matched subtree can be re-rooted at DstDir.
	StripPrefix string
}

// Plan filters the flattened files and builds a transfer task. Files matching
// Include (or all of them when Include is empty) and not matching Exclude
// survive; the rest are returned as excluded. Survivors split into
// transferable (size > 0) and empty; DirsToCreate is the set of ancestor
// directories implied by the surviving local paths, parents first — a fully
// excluded plan creates nothing. Two survivors mapping to the same local
// destination (flattened basenames, or names that normalize alike) fail
// planning: every transfer must own a disjoint local path.
func Plan(files []RemoteFile, opts PlanOpts) (Task, []RemoteFile, error) {
	includes := compilePatterns(opts.Include)
	excludes := compilePatterns(opts.Exclude)

	var task Task
	var excluded []RemoteFile

	dirs := map[string]bool{}
	sources := map[string]string{}

	for _, f := range files {
		if !selected(f.Path, includes, excludes) {
			excluded = append(excluded, f)
			continue
		}

		item := PlanItem{
			Remote:    f,
			LocalPath: localPath(f.Path, opts),
		}

		if prev, ok := sources[item.LocalPath]; ok {
			return Task{}, nil, fmt.Errorf("local destination %q collides: %q and %q", item.LocalPath, prev, f.Path)
		}

		sources[item.LocalPath] = f.Path

		// The destination directory itself is created only when something
		// survives the filters.
		dirs[opts.DstDir] = true

		for dir := filepath.Dir(item.LocalPath); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
			if dirs[dir] {
				break
			}

			dirs[dir] = true
		}

		if f.Size > 0 {
			task.Transferable = append(task.Transferable, item)
		} else {
			task.Empty = append(task.Empty, item)
		}
	}

	task.DirsToCreate = sortParentFirst(dirs)

	return task, excluded, nil
}

// localPath maps a remote relative path to its local destination.
// Remote names are NFC-normalized: the service hands back decomposed
// (NFD-ish) names that should land composed on local disk.
func localPath(remotePath string, opts PlanOpts) string {
	remotePath = norm.NFC.String(remotePath)

	if opts.Mapping == MapFlatten {
		return filepath.Join(opts.DstDir, path.Base(remotePath))
	}

	if opts.StripPrefix != "" {
		remotePath = strings.TrimPrefix(remotePath, strings.TrimSuffix(opts.StripPrefix, "/"))
		remotePath = strings.TrimPrefix(remotePath, "/")
	}

	return filepath.Join(opts.DstDir, filepath.FromSlash(remotePath))
}

// selected applies the include/exclude cascade to one remote path.
func selected(remotePath string, includes, excludes *ignore.GitIgnore) bool {
	if includes != nil && !includes.MatchesPath(remotePath) {
		return false
	}

	return excludes == nil || !excludes.MatchesPath(remotePath)
}

// compilePatterns builds a gitignore-style matcher; nil for no patterns.
func compilePatterns(patterns []string) *ignore.GitIgnore {
	if len(patterns) == 0 {
		return nil
	}

	return ignore.CompileIgnoreLines(patterns...)
}

// sortParentFirst orders directory paths so a parent always precedes its
// children. Lexicographic order on clean absolute-or-relative paths gives
// exactly that, since a parent is a strict prefix of its child.
func sortParentFirst(dirs map[string]bool) []string {
	out := make([]string, 0, len(dirs))
	for dir := range dirs {
		out = append(out, dir)
	}

	sort.Strings(out)

	return out
}
