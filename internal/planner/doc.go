// Package planner handles the planning phase of a multi-branch merge.
//
// The planner turns a base snapshot and an ordered list of overlay snapshots
// into a deterministic list of filesystem operations. It decides, per overlay,
// whether the overlay is a self-contained plugin (relocated into a
// subdirectory behind a generated stub) or a legacy overlay (modules merged,
// root files copied), and records which paths a later branch overrides.
//
// Key responsibilities:
//   - Generate MergePlan with ordered operations
//   - Detect overlay entry files and build their stubs
//   - Record branch-to-branch overrides
//   - Validate path safety before operations
package planner
