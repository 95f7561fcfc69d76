package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/icdrive/icdrive/internal/drive"
)

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// humanSize formats a byte count using binary units.
func humanSize(n int64) string {
	const unit = 1024

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for n/div >= unit && exp < 4 {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTP"[exp])
}

// entityLine formats one listing row.
func entityLine(e drive.Entity, long bool) string {
	name := e.FullName()
	if e.IsFolderLike() {
		name += "/"
	}

	return entityLineNamed(e, name, long)
}

// entityLineNamed formats a listing row with an explicit display name
// (recursive listings print relative paths instead of bare filenames).
func entityLineNamed(e drive.Entity, name string, long bool) string {
	if !long {
		return name
	}

	kind := string(e.Kind)
	size := "-"

	if e.Kind == drive.KindFile {
		size = humanSize(e.Size)
	}

	mtime := "-"
	if !e.Modified.IsZero() {
		mtime = e.Modified.Format("2006-01-02 15:04")
	}

	return fmt.Sprintf("%-12s %10s  %16s  %s", kind, size, mtime, name)
}

// resolutionError renders an invalid resolution as a user-facing error.
func resolutionError(path string, res drive.Resolution) error {
	rest := strings.Join(res.Rest, "/")

	switch res.Reason {
	case drive.ReasonNotAFolder:
		return fmt.Errorf("%q: %q is not a folder: %w", path, res.Target().FullName(), drive.ErrNotAFolder)
	default:
		return fmt.Errorf("%q: no such file or folder (unresolved: %q): %w", path, rest, drive.ErrNotFound)
	}
}

// transferSummary is the machine-readable outcome of a batch transfer.
type transferSummary struct {
	Success  int               `json:"success"`
	Fail     int               `json:"fail"`
	Skipped  int               `json:"skipped"`
	Excluded int               `json:"excluded"`
	Fails    map[string]string `json:"fails,omitempty"`
}

// summarize folds per-item results into a summary.
func summarize(results []drive.TransferResult, skipped, excluded int) transferSummary {
	s := transferSummary{Skipped: skipped, Excluded: excluded}

	for _, r := range results {
		if r.Err != nil {
			if s.Fails == nil {
				s.Fails = make(map[string]string)
			}

			s.Fail++
			s.Fails[r.LocalPath] = r.Err.Error()

			continue
		}

		s.Success++
	}

	return s
}

// printSummary reports a transfer outcome, as JSON under --json. Returns a
// non-nil error when any item failed so the process exits non-zero while the
// successful siblings remain reported.
func printSummary(s transferSummary) error {
	if flagJSON {
		if err := printJSON(s); err != nil {
			return err
		}
	} else {
		fmt.Printf("%s %d  %s %d  skipped %d  excluded %d\n",
			color.GreenString("done:"), s.Success,
			color.RedString("failed:"), s.Fail,
			s.Skipped, s.Excluded,
		)

		for _, path := range sortedFailPaths(s.Fails) {
			fmt.Printf("  %s %s: %s\n", color.RedString("✗"), path, s.Fails[path])
		}
	}

	if s.Fail > 0 {
		return fmt.Errorf("%d of %d transfers failed", s.Fail, s.Fail+s.Success)
	}

	return nil
}

// sortedFailPaths orders the failure map's keys so reports are stable.
func sortedFailPaths(fails map[string]string) []string {
	paths := make([]string, 0, len(fails))
	for path := range fails {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	return paths
}
