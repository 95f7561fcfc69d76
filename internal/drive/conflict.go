package drive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// ConflictKind discriminates the conflict union.
type ConflictKind int

const (
	// ConflictExists: the planned local destination already exists.
	ConflictExists ConflictKind = iota
	// ConflictStatError: probing the destination failed for a reason other
	// than absence (permissions, I/O).
	ConflictStatError
)

// Conflict is a mismatch between a planned local write and the existing local
// filesystem: Exists carries the stat result, StatError the probe error.
type Conflict struct {
	Kind ConflictKind
	Item PlanItem
	Info fs.FileInfo // ConflictExists only
	Err  error       // ConflictStatError only
}

// Action is the resolution decision for one conflict. A rename is modeled by
// rewriting the solution's local path and overwriting, not by a third action.
type Action int

const (
	ActionSkip Action = iota
	ActionOverwrite
)

// Solution pairs a conflict with its decided action. LocalPath is the
// (possibly rewritten) destination the action applies to.
type Solution struct {
	Conflict  Conflict
	Action    Action
	LocalPath string
}

// Solver decides actions for a batch of conflicts. A solver that cannot
// decide must return an error wrapping ErrConflictUnresolved; in particular,
// StatError conflicts are never silently resolved.
type Solver func(ctx context.Context, conflicts []Conflict) ([]Solution, error)

// DetectConflicts stats every planned destination of the task. Absence is not
// a conflict; every item yields at most one conflict and detection never
// short-circuits on the first hit.
func DetectConflicts(task Task) []Conflict {
	var conflicts []Conflict

	for _, item := range allItems(task) {
		info, err := os.Lstat(item.LocalPath)

		switch {
		case err == nil:
			conflicts = append(conflicts, Conflict{Kind: ConflictExists, Item: item, Info: info})
		case os.IsNotExist(err):
			// Not a conflict.
		default:
			conflicts = append(conflicts, Conflict{Kind: ConflictStatError, Item: item, Err: err})
		}
	}

	return conflicts
}

func allItems(task Task) []PlanItem {
	items := make([]PlanItem, 0, len(task.Transferable)+len(task.Empty))
	items = append(items, task.Transferable...)
	items = append(items, task.Empty...)

	return items
}

// failOnStatError returns the terminal error for an unhandled stat failure.
func failOnStatError(c Conflict) error {
	return fmt.Errorf("stat %q: %v: %w", c.Item.LocalPath, c.Err, ErrConflictUnresolved)
}

// FailOnAny aborts if any conflict exists.
func FailOnAny() Solver {
	return func(_ context.Context, conflicts []Conflict) ([]Solution, error) {
		if len(conflicts) > 0 {
			return nil, fmt.Errorf("%q already exists: %w", conflicts[0].Item.LocalPath, ErrConflictUnresolved)
		}

		return nil, nil
	}
}

// SkipAll skips every existing destination. Stat failures still fail the batch.
func SkipAll() Solver {
	return decideEach(func(Conflict) (Action, error) {
		return ActionSkip, nil
	})
}

// OverwriteAll overwrites every existing destination. Stat failures still
// fail the batch.
func OverwriteAll() Solver {
	return decideEach(func(Conflict) (Action, error) {
		return ActionOverwrite, nil
	})
}

// RenameOnConflict writes beside the existing file: the planned local path
// gets the suffix appended and the write proceeds as an overwrite of the
// renamed (normally nonexistent) path.
func RenameOnConflict(suffix string) Solver {
	return func(_ context.Context, conflicts []Conflict) ([]Solution, error) {
		solutions := make([]Solution, 0, len(conflicts))

		for _, c := range conflicts {
			if c.Kind == ConflictStatError {
				return nil, failOnStatError(c)
			}

			solutions = append(solutions, Solution{
				Conflict:  c,
				Action:    ActionOverwrite,
				LocalPath: c.Item.LocalPath + suffix,
			})
		}

		return solutions, nil
	}
}

// OverwriteIf overwrites the conflicts the predicate selects and skips the
// rest. SizeDiffers is the usual predicate.
func OverwriteIf(pred func(Conflict) bool) Solver {
	return decideEach(func(c Conflict) (Action, error) {
		if pred(c) {
			return ActionOverwrite, nil
		}

		return ActionSkip, nil
	})
}

// SizeDiffers reports whether the local file size differs from the remote's.
func SizeDiffers(c Conflict) bool {
	return c.Info.Size() != c.Item.Remote.Size
}

// AskOncePerBatch gates the whole batch behind a single yes/no: yes
// overwrites everything, no skips everything.
func AskOncePerBatch(asker Asker) Solver {
	return func(_ context.Context, conflicts []Conflict) ([]Solution, error) {
		for _, c := range conflicts {
			if c.Kind == ConflictStatError {
				return nil, failOnStatError(c)
			}
		}

		if len(conflicts) == 0 {
			return nil, nil
		}

		overwrite, err := asker.Ask(fmt.Sprintf("%d local files already exist, overwrite all?", len(conflicts)))
		if err != nil {
			return nil, fmt.Errorf("asking: %v: %w", err, ErrConflictUnresolved)
		}

		action := ActionSkip
		if overwrite {
			action = ActionOverwrite
		}

		solutions := make([]Solution, 0, len(conflicts))
		for _, c := range conflicts {
			solutions = append(solutions, Solution{Conflict: c, Action: action, LocalPath: c.Item.LocalPath})
		}

		return solutions, nil
	}
}

// AskPerItem prompts once per conflict.
func AskPerItem(asker Asker) Solver {
	return decideEach(func(c Conflict) (Action, error) {
		overwrite, err := asker.Ask(fmt.Sprintf("%q already exists, overwrite?", c.Item.LocalPath))
		if err != nil {
			return 0, fmt.Errorf("asking: %v: %w", err, ErrConflictUnresolved)
		}

		if overwrite {
			return ActionOverwrite, nil
		}

		return ActionSkip, nil
	})
}

// decideEach lifts a per-conflict decision into a Solver, handling the
// StatError fail-the-batch rule in one place.
func decideEach(decide func(Conflict) (Action, error)) Solver {
	return func(_ context.Context, conflicts []Conflict) ([]Solution, error) {
		solutions := make([]Solution, 0, len(conflicts))

		for _, c := range conflicts {
			if c.Kind == ConflictStatError {
				return nil, failOnStatError(c)
			}

			action, err := decide(c)
			if err != nil {
				return nil, err
			}

			solutions = append(solutions, Solution{Conflict: c, Action: action, LocalPath: c.Item.LocalPath})
		}

		return solutions, nil
	}
}

// DefaultPolicyOpts configures the composite default policy.
type DefaultPolicyOpts struct {
	// SkipSameSizeAndDate skips files whose local size and mtime match the
	// remote metadata.
	SkipSameSizeAndDate bool
	// Skip resolves every remaining conflict as skip.
	Skip bool
	// Overwrite resolves every remaining conflict as overwrite.
	Overwrite bool
	// Asker is the interactive fallback for conflicts the flags do not
	// decide. nil fails such conflicts with ErrConflictUnresolved.
	Asker Asker
}

// stickyState is the interactive fallback's prompt state machine:
// asking → stickyYes | stickyNo once the user answers "for all".
type stickyState int

const (
	stateAsking stickyState = iota
	stateStickyYes
	stateStickyNo
)

// DefaultPolicy combines the flag shortcuts with a sticky interactive
// fallback: once the user answers yes-for-all or no-for-all, the remaining
// conflicts in the batch are resolved without further prompts.
func DefaultPolicy(opts DefaultPolicyOpts) Solver {
	return func(_ context.Context, conflicts []Conflict) ([]Solution, error) {
		solutions := make([]Solution, 0, len(conflicts))
		state := stateAsking

		for _, c := range conflicts {
			if c.Kind == ConflictStatError {
				return nil, failOnStatError(c)
			}

			action, nextState, err := defaultDecision(c, opts, state)
			if err != nil {
				return nil, err
			}

			state = nextState
			solutions = append(solutions, Solution{Conflict: c, Action: action, LocalPath: c.Item.LocalPath})
		}

		return solutions, nil
	}
}

func defaultDecision(c Conflict, opts DefaultPolicyOpts, state stickyState) (Action, stickyState, error) {
	if opts.SkipSameSizeAndDate && sameSizeAndDate(c) {
		return ActionSkip, state, nil
	}

	if opts.Skip {
		return ActionSkip, state, nil
	}

	if opts.Overwrite {
		return ActionOverwrite, state, nil
	}

	switch state {
	case stateStickyYes:
		return ActionOverwrite, state, nil
	case stateStickyNo:
		return ActionSkip, state, nil
	}

	if opts.Asker == nil {
		return 0, state, fmt.Errorf("%q already exists and no policy decides it: %w", c.Item.LocalPath, ErrConflictUnresolved)
	}

	answer, err := opts.Asker.AskAll(fmt.Sprintf("%q already exists, overwrite?", c.Item.LocalPath))
	if err != nil {
		return 0, state, fmt.Errorf("asking: %v: %w", err, ErrConflictUnresolved)
	}

	switch answer {
	case AnswerYes:
		return ActionOverwrite, state, nil
	case AnswerNo:
		return ActionSkip, state, nil
	case AnswerYesAll:
		return ActionOverwrite, stateStickyYes, nil
	case AnswerNoAll:
		return ActionSkip, stateStickyNo, nil
	default:
		return 0, state, fmt.Errorf("unexpected answer %d: %w", answer, ErrConflictUnresolved)
	}
}

// sameSizeAndDate reports whether the local file matches the remote's size
// and modification time. Times compare at second granularity because local
// filesystems may truncate the remote's millisecond timestamps.
func sameSizeAndDate(c Conflict) bool {
	if c.Info.IsDir() || c.Info.Size() != c.Item.Remote.Size {
		return false
	}

	return c.Info.ModTime().Truncate(time.Second).Equal(c.Item.Remote.Modified.Truncate(time.Second))
}

// ApplySolutions removes skip-resolved items from the task and substitutes
// rewritten local paths, returning the final task and the number of items
// dropped by the policy. Decisions are keyed by remote id, never by local
// path. The input task is left untouched for reporting.
func ApplySolutions(task Task, solutions []Solution) (Task, int) {
	decided := make(map[string]Solution, len(solutions))
	for _, sol := range solutions {
		decided[sol.Conflict.Item.Remote.ID] = sol
	}

	final := Task{DirsToCreate: task.DirsToCreate}
	skipped := 0

	apply := func(items []PlanItem) []PlanItem {
		var kept []PlanItem

		for _, item := range items {
			sol, ok := decided[item.Remote.ID]
			if !ok {
				kept = append(kept, item)
				continue
			}

			if sol.Action == ActionSkip {
				skipped++
				continue
			}

			item.LocalPath = sol.LocalPath
			kept = append(kept, item)
		}

		return kept
	}

	final.Transferable = apply(task.Transferable)
	final.Empty = apply(task.Empty)

	return final, skipped
}
