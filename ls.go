package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icdrive/icdrive/internal/drive"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [paths...]",
		Short: "List files and folders",
		RunE:  runLs,
	}

	cmd.Flags().BoolP("recursive", "R", false, "list subtrees recursively")
	cmd.Flags().Int("depth", -1, "limit recursion depth (implies --recursive)")
	cmd.Flags().Bool("cached", false, "resolve from the local cache only, no network")
	cmd.Flags().BoolP("long", "l", false, "show kind, size, and modification time")

	return cmd
}

func runLs(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = []string{"/"}
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	depth, _ := cmd.Flags().GetInt("depth")
	cached, _ := cmd.Flags().GetBool("cached")
	long, _ := cmd.Flags().GetBool("long")

	if cmd.Flags().Changed("depth") {
		recursive = true
	}

	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var failed error

	for _, p := range paths {
		if err := lsOne(ctx, a, p, recursive, depth, cached, long, len(paths) > 1); err != nil {
			fmt.Println(err.Error())
			failed = err
		}
	}

	return failed
}

func lsOne(ctx context.Context, a *app, p string, recursive bool, depth int, cached, long, header bool) error {
	res, err := resolveArg(ctx, a, p, cached)
	if err != nil {
		return err
	}

	if header {
		fmt.Printf("%s:\n", p)
	}

	target := res.Target()

	if target.Kind == drive.KindFile {
		fmt.Println(entityLine(target, long))
		return nil
	}

	if recursive {
		return lsTree(ctx, a, target, depth, long)
	}

	// Resolved folders always carry details, so the children are known.
	if flagJSON {
		return printJSON(target.Items)
	}

	for _, child := range target.Items {
		fmt.Println(entityLine(child, long))
	}

	return nil
}

func lsTree(ctx context.Context, a *app, target drive.Entity, depth int, long bool) error {
	items, err := a.rec.FlattenSubtree(ctx, target, depth)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(items)
	}

	for _, item := range items {
		name := item.Path
		if item.Entity.IsFolderLike() {
			name += "/"
		}

		if long {
			fmt.Println(entityLineNamed(item.Entity, name, true))
		} else {
			fmt.Println(name)
		}
	}

	return nil
}

// resolveArg resolves one user path, reconciling unless cached-only mode is
// requested. Invalid resolutions are rendered as user-facing errors.
func resolveArg(ctx context.Context, a *app, p string, cached bool) (drive.Resolution, error) {
	segments := drive.SplitPath(p)

	if cached {
		root, err := a.store.Root()
		if err != nil {
			return drive.Resolution{}, fmt.Errorf("cache is empty: %w", err)
		}

		res := drive.Resolve(a.store, root, segments)
		if errors.Is(res.Err(), drive.ErrMissingDetails) {
			return drive.Resolution{}, fmt.Errorf("%q: not in cache (rerun without --cached): %w", p, drive.ErrMissingDetails)
		}

		if !res.Valid() {
			return drive.Resolution{}, resolutionError(p, res)
		}

		return res, nil
	}

	root, err := a.rec.EnsureRoot(ctx)
	if err != nil {
		return drive.Resolution{}, err
	}

	res, err := a.rec.ResolvePath(ctx, root, segments)
	if err != nil {
		return drive.Resolution{}, err
	}

	if !res.Valid() {
		return drive.Resolution{}, resolutionError(p, res)
	}

	return res, nil
}
