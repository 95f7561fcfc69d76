package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/icdrive/icdrive/internal/drive"
	"github.com/icdrive/icdrive/internal/icloud"
)

// defaultZone is the storage shard of the docs root; folders created under it
// inherit it unless the API says otherwise.
const defaultZone = "com.apple.CloudDocs"

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <src...> <dst>",
		Short: "Upload local files or folders into a remote folder",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runUpload,
	}

	cmd.Flags().Bool("overwrite", false, "replace remote files that already exist")
	cmd.Flags().Bool("skip-trash", false, "permanently delete replaced files instead of trashing them")

	return cmd
}

// localFile is one local file staged for upload, with its path relative to
// the upload source root.
type localFile struct {
	localPath string
	relPath   string
}

func runUpload(cmd *cobra.Command, args []string) error {
	srcs, dstPath := args[:len(args)-1], args[len(args)-1]

	overwrite, _ := cmd.Flags().GetBool("overwrite")
	skipTrash, _ := cmd.Flags().GetBool("skip-trash")

	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := resolveArg(ctx, a, dstPath, false)
	if err != nil {
		return err
	}

	dst := res.Target()
	if !dst.IsFolderLike() {
		return fmt.Errorf("upload destination %q: %w", dstPath, drive.ErrNotAFolder)
	}

	files, err := collectLocalFiles(srcs)
	if err != nil {
		return err
	}

	var (
		items   []drive.UploadItem
		skipped int
	)

	for _, f := range files {
		item, skip, err := stageUpload(ctx, a, dst, f, overwrite, skipTrash)
		if err != nil {
			return err
		}

		if skip {
			skipped++
			continue
		}

		items = append(items, item)
	}

	results := a.newExecutor(0).Upload(ctx, items)

	transfers := make([]drive.TransferResult, 0, len(results))

	for _, r := range results {
		if r.Err == nil {
			a.store.PutSummary(drive.SummaryFromItem(r.Item))
		}

		transfers = append(transfers, drive.TransferResult{
			ID:        r.Item.Drivewsid,
			LocalPath: r.LocalPath,
			Err:       r.Err,
		})
	}

	// The destination subtree changed shape; refetch its listings next time.
	a.store.Invalidate(dst.ID)

	return printSummary(summarize(transfers, skipped, 0))
}

// collectLocalFiles expands the source arguments: files upload under their
// base name, directories mirror their structure relative to the directory.
func collectLocalFiles(srcs []string) ([]localFile, error) {
	var files []localFile

	for _, src := range srcs {
		info, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", src, err)
		}

		if !info.IsDir() {
			files = append(files, localFile{localPath: src, relPath: filepath.Base(src)})
			continue
		}

		err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(src, p)
			if err != nil {
				return err
			}

			files = append(files, localFile{
				localPath: p,
				relPath:   path.Join(filepath.Base(src), filepath.ToSlash(rel)),
			})

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %q: %w", src, err)
		}
	}

	return files, nil
}

// stageUpload ensures the remote destination folder chain exists, applies the
// overwrite policy against an existing remote file, and builds the upload
// item. skip is true when an existing remote file is kept.
func stageUpload(ctx context.Context, a *app, dst drive.Entity, f localFile, overwrite, skipTrash bool) (drive.UploadItem, bool, error) {
	dir, name := path.Split(norm.NFC.String(f.relPath))

	parent, err := ensureRemoteFolder(ctx, a, dst, drive.SplitPath(dir))
	if err != nil {
		return drive.UploadItem{}, false, err
	}

	existing, found := childNamed(parent, name)
	if found {
		if !overwrite {
			a.logger.Info("remote file exists, skipping", "name", name)
			return drive.UploadItem{}, true, nil
		}

		if err := removeRemote(ctx, a, existing, skipTrash); err != nil {
			return drive.UploadItem{}, false, err
		}
	}

	zone := parent.Zone
	if zone == "" {
		zone = defaultZone
	}

	return drive.UploadItem{
		LocalPath:   f.localPath,
		Name:        name,
		Zone:        zone,
		ParentDocID: parent.DocID,
	}, false, nil
}

// ensureRemoteFolder walks segments below base, creating missing folders.
func ensureRemoteFolder(ctx context.Context, a *app, base drive.Entity, segments []string) (drive.Entity, error) {
	current := base

	for _, segment := range segments {
		entities, err := a.rec.Ensure(ctx, []string{current.ID})
		if err != nil {
			return drive.Entity{}, err
		}

		current = entities[0]

		child, found := childNamed(current, segment)
		if found {
			if !child.IsFolderLike() {
				return drive.Entity{}, fmt.Errorf("remote %q: %w", segment, drive.ErrNotAFolder)
			}

			current = child

			continue
		}

		created, err := a.client.CreateFolders(ctx, current.ID, []string{segment})
		if err != nil {
			return drive.Entity{}, err
		}

		if len(created) == 0 {
			return drive.Entity{}, fmt.Errorf("creating folder %q: empty response", segment)
		}

		folder := drive.SummaryFromItem(created[0])
		a.store.Invalidate(current.ID)
		a.store.PutSummary(folder)

		current = folder
	}

	// Callers probe the returned folder's children, so upgrade it to full
	// details before handing it back.
	entities, err := a.rec.Ensure(ctx, []string{current.ID})
	if err != nil {
		return drive.Entity{}, err
	}

	return entities[0], nil
}

// childNamed finds a child by listing name in a details-cached folder.
func childNamed(parent drive.Entity, name string) (drive.Entity, bool) {
	for _, child := range parent.Items {
		if child.FullName() == name {
			return child, true
		}
	}

	return drive.Entity{}, false
}

// removeRemote trashes (or permanently deletes) one remote item and evicts it.
func removeRemote(ctx context.Context, a *app, e drive.Entity, skipTrash bool) error {
	refs := []icloud.ItemRef{{Drivewsid: e.ID, Etag: e.Etag}}

	var err error
	if skipTrash {
		_, err = a.client.DeleteItems(ctx, refs)
	} else {
		_, err = a.client.MoveItemsToTrash(ctx, refs)
	}

	if err != nil {
		return err
	}

	a.store.Remove(e.ID)

	return nil
}
