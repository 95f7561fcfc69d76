package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/icdrive/icdrive/internal/drive"
	"github.com/icdrive/icdrive/internal/prompt"
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <path> <dstpath>",
		Short: "Download a file or folder tree",
		Args:  cobra.ExactArgs(2),
		RunE:  runDownload,
	}

	cmd.Flags().StringArray("include", nil, "keep only files matching the pattern (repeatable)")
	cmd.Flags().StringArray("exclude", nil, "drop files matching the pattern (repeatable)")
	cmd.Flags().Bool("dry", false, "print the planned task without transferring")
	cmd.Flags().Int("chunk-size", 0, "parallel transfers per chunk (default from config)")
	cmd.Flags().Bool("flat", false, "place every file directly under dstpath, discarding structure")
	cmd.Flags().Bool("skip-same", false, "skip files whose local size and mtime match the remote")
	cmd.Flags().Bool("skip", false, "skip all files that already exist locally")
	cmd.Flags().Bool("overwrite", false, "overwrite all files that already exist locally")

	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	remotePath, dstPath := args[0], args[1]

	include, _ := cmd.Flags().GetStringArray("include")
	exclude, _ := cmd.Flags().GetStringArray("exclude")
	dry, _ := cmd.Flags().GetBool("dry")
	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	flat, _ := cmd.Flags().GetBool("flat")

	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := resolveArg(ctx, a, remotePath, false)
	if err != nil {
		return err
	}

	files, mapping, err := collectRemoteFiles(ctx, a, res.Target(), flat)
	if err != nil {
		return err
	}

	task, excluded, err := drive.Plan(files, drive.PlanOpts{
		DstDir:  dstPath,
		Include: include,
		Exclude: exclude,
		Mapping: mapping,
	})
	if err != nil {
		return err
	}

	if dry {
		return printJSON(struct {
			Task     drive.Task         `json:"task"`
			Excluded []drive.RemoteFile `json:"excluded"`
		}{task, excluded})
	}

	solver := downloadSolver(cmd)

	conflicts := drive.DetectConflicts(task)

	solutions, err := solver(ctx, conflicts)
	if err != nil {
		return err
	}

	final, skipped := drive.ApplySolutions(task, solutions)

	results, err := a.newExecutor(chunkSize).Download(ctx, final)
	if err != nil {
		return err
	}

	return printSummary(summarize(results, skipped, len(excluded)))
}

// collectRemoteFiles flattens the download source into planner input. A file
// target downloads flat into dstpath; a folder target mirrors its subtree
// unless --flat was given.
func collectRemoteFiles(ctx context.Context, a *app, target drive.Entity, flat bool) ([]drive.RemoteFile, drive.Mapping, error) {
	if target.Kind == drive.KindFile {
		return []drive.RemoteFile{remoteFileOf(target, target.FullName())}, drive.MapFlatten, nil
	}

	items, err := a.rec.FlattenSubtree(ctx, target, -1)
	if err != nil {
		return nil, 0, err
	}

	var files []drive.RemoteFile

	for _, item := range items {
		if item.Entity.Kind == drive.KindFile {
			files = append(files, remoteFileOf(item.Entity, item.Path))
		}
	}

	mapping := drive.MapMirror
	if flat {
		mapping = drive.MapFlatten
	}

	return files, mapping, nil
}

func remoteFileOf(e drive.Entity, path string) drive.RemoteFile {
	return drive.RemoteFile{
		Path:     path,
		ID:       e.ID,
		DocID:    e.DocID,
		Zone:     e.Zone,
		Etag:     e.Etag,
		Size:     e.Size,
		Modified: e.Modified,
	}
}

// downloadSolver builds the conflict policy from the command flags: the
// composite default policy with an interactive sticky fallback.
func downloadSolver(cmd *cobra.Command) drive.Solver {
	skipSame, _ := cmd.Flags().GetBool("skip-same")
	skip, _ := cmd.Flags().GetBool("skip")
	overwrite, _ := cmd.Flags().GetBool("overwrite")

	return drive.DefaultPolicy(drive.DefaultPolicyOpts{
		SkipSameSizeAndDate: skipSame,
		Skip:                skip,
		Overwrite:           overwrite,
		Asker:               prompt.New(),
	})
}
