package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icdrive/icdrive/internal/config"
	"github.com/icdrive/icdrive/internal/drive"
	"github.com/icdrive/icdrive/internal/icloud"
)

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <src> <dst>",
		Short: "Move or rename a file or folder",
		Args:  cobra.ExactArgs(2),
		RunE:  runMv,
	}
}

func runMv(cmd *cobra.Command, args []string) error {
	srcPath, dstPath := args[0], args[1]
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	srcRes, err := resolveArg(ctx, a, srcPath, false)
	if err != nil {
		return err
	}

	src := srcRes.Target()

	dst, newName, err := moveTarget(ctx, a, dstPath)
	if err != nil {
		return err
	}

	ref := icloud.ItemRef{Drivewsid: src.ID, Etag: src.Etag}

	if dst.ID != src.ParentID {
		moved, err := a.client.MoveItems(ctx, dst.ID, []icloud.ItemRef{ref})
		if err != nil {
			return err
		}

		if len(moved) > 0 {
			ref.Etag = moved[0].Etag
		}
	}

	if newName != "" && newName != src.FullName() {
		name, ext := splitExtension(src, newName)

		if _, err := a.client.RenameItems(ctx, []icloud.RenameRef{{
			Drivewsid: ref.Drivewsid,
			Etag:      ref.Etag,
			Name:      name,
			Extension: ext,
		}}); err != nil {
			return err
		}
	}

	// Both listings changed; drop the moved node and refetch lazily.
	a.store.Remove(src.ID)
	a.store.Invalidate(dst.ID)

	fmt.Printf("moved %s -> %s\n", srcPath, dstPath)

	return nil
}

// moveTarget interprets the mv destination: an existing folder means "move
// into it, keep the name"; a missing final segment under an existing folder
// means "move there and rename".
func moveTarget(ctx context.Context, a *app, dstPath string) (drive.Entity, string, error) {
	root, err := a.rec.EnsureRoot(ctx)
	if err != nil {
		return drive.Entity{}, "", err
	}

	res, err := a.rec.ResolvePath(ctx, root, drive.SplitPath(dstPath))
	if err != nil {
		return drive.Entity{}, "", err
	}

	if res.Valid() {
		if !res.Target().IsFolderLike() {
			return drive.Entity{}, "", fmt.Errorf("mv destination %q: %w", dstPath, drive.ErrNotAFolder)
		}

		return res.Target(), "", nil
	}

	if res.Reason == drive.ReasonNotFound && len(res.Rest) == 1 {
		return res.Target(), res.Rest[0], nil
	}

	return drive.Entity{}, "", resolutionError(dstPath, res)
}

// splitExtension splits a new listing name into the API's name/extension pair
// following the source entity's shape: only files carry extensions.
func splitExtension(src drive.Entity, full string) (string, string) {
	if src.Kind != drive.KindFile {
		return full, ""
	}

	for i := len(full) - 1; i > 0; i-- {
		if full[i] == '.' {
			return full[:i], full[i+1:]
		}
	}

	return full, ""
}

func newRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <paths...>",
		Short: "Move files or folders to the trash",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRm,
	}

	cmd.Flags().Bool("skip-trash", false, "permanently delete instead of trashing")
	cmd.Flags().Bool("force", false, "ignore paths that do not exist")
	cmd.Flags().BoolP("recursive", "r", false, "allow removing folders")

	return cmd
}

func runRm(cmd *cobra.Command, args []string) error {
	skipTrash, _ := cmd.Flags().GetBool("skip-trash")
	force, _ := cmd.Flags().GetBool("force")
	recursive, _ := cmd.Flags().GetBool("recursive")

	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var refs []icloud.ItemRef
	var ids []string

	for _, p := range args {
		res, err := resolveArg(ctx, a, p, false)
		if err != nil {
			if force && errors.Is(err, drive.ErrNotFound) {
				continue
			}

			return err
		}

		target := res.Target()

		if target.IsFolderLike() && !recursive {
			return fmt.Errorf("%q is a folder (use --recursive)", p)
		}

		refs = append(refs, icloud.ItemRef{Drivewsid: target.ID, Etag: target.Etag})
		ids = append(ids, target.ID)
	}

	if len(refs) == 0 {
		return nil
	}

	if skipTrash {
		_, err = a.client.DeleteItems(ctx, refs)
	} else {
		_, err = a.client.MoveItemsToTrash(ctx, refs)
	}

	if err != nil {
		return err
	}

	for _, id := range ids {
		a.store.Remove(id)
	}

	fmt.Printf("removed %d items\n", len(refs))

	return nil
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a remote folder (missing parents included)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}
}

func runMkdir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	root, err := a.rec.EnsureRoot(ctx)
	if err != nil {
		return err
	}

	folder, err := ensureRemoteFolder(ctx, a, root, drive.SplitPath(args[0]))
	if err != nil {
		return err
	}

	fmt.Printf("created %s (%s)\n", args[0], folder.ID)

	return nil
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persisted metadata cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the cached entity count and snapshot path",
		RunE:  runCacheShow,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the persisted snapshot",
		RunE:  runCacheClear,
	})

	return cmd
}

func runCacheShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return err
	}

	store, err := drive.LoadStore(cfg.CachePath)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(map[string]any{
			"path":     cfg.CachePath,
			"entities": store.Len(),
		})
	}

	fmt.Printf("%s: %d entities\n", cfg.CachePath, store.Len())

	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return err
	}

	if err := os.Remove(cfg.CachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Println("cache cleared")

	return nil
}
