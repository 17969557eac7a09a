package engine

import (
	"github.com/creatorincome/wpup/internal/planner"
	"github.com/creatorincome/wpup/internal/release"
)

// MergeResult represents the result of a merge.
type MergeResult struct {
	// Plan is the generated plan
	Plan *planner.MergePlan

	// Applied is the list of operations that were executed (empty if DryRun)
	Applied []planner.Operation

	// Branch is the branch the result was written to
	Branch string

	// Versions holds the resolved version of each input branch, in order
	Versions []string

	// CommitMessage is the message used (or that would be used) for the commit
	CommitMessage string

	// Tag is the tag created (or that would be created) for the merge
	Tag string

	// Changed reports whether the working tree differs from the last commit
	Changed bool

	// Committed reports whether a commit was created
	Committed bool

	// Tagged reports whether Tag was created by this run
	Tagged bool

	// Pushed reports whether the branch was pushed
	Pushed bool

	// StubDiff previews the generated stubs (DryRun only)
	StubDiff string
}

// ImportResult represents the result of a release import.
type ImportResult = release.ImportResult
