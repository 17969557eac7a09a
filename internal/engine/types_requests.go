package engine

import "github.com/creatorincome/wpup/internal/release"

// MergeRequest represents a request to merge several branches into one tree.
type MergeRequest struct {
	// Branches is the ordered list of input branches; the first is the base
	Branches []string

	// Target is the branch to write the result to (empty for the current branch)
	Target string

	// Push commits, tags and pushes the result when it changed anything
	Push bool

	// DryRun performs planning only without making changes
	DryRun bool
}

// SyncLockedRequest represents a request to restore locked paths.
type SyncLockedRequest struct {
	// Base is the <remote>/<branch> ref to restore from (empty for the configured base)
	Base string
}

// ImportRequest represents a request to commit a release archive onto a branch.
type ImportRequest = release.ImportRequest
