package planner

// Source is one input branch materialized on disk.
type Source struct {
	// Branch is the branch name the source was read from
	Branch string

	// Dir is the directory holding the branch's files
	Dir string
}

// MergePlan represents a plan to compose branch snapshots into a working tree.
type MergePlan struct {
	// Branches is the ordered list of input branches, base first
	Branches []string

	// Operations is the ordered list of operations to execute
	Operations []Operation

	// Overrides lists the paths a later branch replaces
	Overrides []Override
}

// Operation represents a single filesystem operation to execute.
type Operation struct {
	// Type is the operation type: "copy_tree", "merge_dir", "copy", "write_stub"
	Type string

	// SourcePath is the source path in a snapshot (absolute, empty for stubs)
	SourcePath string

	// DestPath is the destination path in the working tree (absolute)
	DestPath string

	// RelPath is the relative path from the working tree root
	RelPath string

	// Branch is the branch contributing this operation
	Branch string

	// Content is the file content written by write_stub operations
	Content []byte
}

// Override records a path claimed by an earlier branch and replaced by a
// later one.
type Override struct {
	// Path is the working tree path, relative to the root
	Path string

	// Previous is the branch that placed the path first
	Previous string

	// Branch is the branch whose copy wins
	Branch string
}

// Operation type constants
const (
	// OpCopyTree copies the contents of a directory into the destination.
	OpCopyTree = "copy_tree"

	// OpMergeDir copies a directory into the destination, keeping files the
	// source does not have.
	OpMergeDir = "merge_dir"

	// OpCopy copies a single file.
	OpCopy = "copy"

	// OpWriteStub writes generated content.
	OpWriteStub = "write_stub"
)

// NewMergePlan creates a new empty MergePlan.
func NewMergePlan(branches []string) *MergePlan {
	return &MergePlan{
		Branches:   branches,
		Operations: []Operation{},
		Overrides:  []Override{},
	}
}

// HasOverrides returns true if any branch replaces another's path.
func (p *MergePlan) HasOverrides() bool {
	return len(p.Overrides) > 0
}

// AddOperation adds an operation to the plan.
func (p *MergePlan) AddOperation(op Operation) {
	p.Operations = append(p.Operations, op)
}

// AddOverride adds an override to the plan.
func (p *MergePlan) AddOverride(o Override) {
	p.Overrides = append(p.Overrides, o)
}
