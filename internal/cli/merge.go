package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/creatorincome/wpup/internal/engine"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <branch1> <branch2> [branch3...]",
	Short: "Merge plugin branches into one working tree",
	Long: `Merge composes several plugin branches into the working tree of a target branch.

The first branch is the base and is copied verbatim. Each following branch is
layered on top: a branch with a plugin entry file is placed in a subdirectory
named after it behind a generated loader, any other branch contributes its
modules/ directory, root PHP files, changelog.txt and loco.xml.

Locked paths (.git, .github, .gitignore and LOCKED_PATHS) keep the target's copy.
The result is committed, tagged merged-<v1>-<v2>... and pushed unless --no-push is set.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < engine.MinMergeBranches {
			return fmt.Errorf("%w: at least %d branches required, got %d", engine.ErrValidation, engine.MinMergeBranches, len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")
		noPush, _ := cmd.Flags().GetBool("no-push")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		eng, _, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Merge(context.Background(), &engine.MergeRequest{
			Branches: args,
			Target:   target,
			Push:     !noPush,
			DryRun:   dryRun,
		})
		if err != nil {
			return err
		}

		if dryRun {
			printMergePlan(result)
			return nil
		}
		printMergeResult(result)
		return nil
	},
}

func printMergePlan(result *engine.MergeResult) {
	PrintSection("Merge plan")
	rows := make([][]string, 0, len(result.Plan.Operations))
	for _, op := range result.Plan.Operations {
		rows = append(rows, []string{op.Branch, op.Type, op.RelPath})
	}
	PrintTable(os.Stdout, []string{"BRANCH", "OPERATION", "PATH"}, rows)

	if result.Plan.HasOverrides() {
		PrintSection("Overridden paths")
		items := make([]string, 0, len(result.Plan.Overrides))
		for _, o := range result.Plan.Overrides {
			items = append(items, fmt.Sprintf("%s (%s → %s)", o.Path, o.Previous, o.Branch))
		}
		PrintList(items, 1)
	}

	if result.StubDiff != "" {
		PrintSection("Generated loaders")
		PrintDiff(result.StubDiff)
	}

	fmt.Println()
	PrintLabelValue("Commit", result.CommitMessage)
	PrintLabelValue("Tag", result.Tag)
	PrintWarning("Dry run: no changes made")
}

func printMergeResult(result *engine.MergeResult) {
	PrintLabelValue("Branch", result.Branch)
	PrintLabelValue("Operations", PrintCount(len(result.Applied), "operation", "operations"))
	PrintLabelValue("Overrides", PrintCount(len(result.Plan.Overrides), "path", "paths"))

	switch {
	case result.Pushed:
		PrintLabelValue("Commit", result.CommitMessage)
		PrintLabelValue("Tag", result.Tag)
		PrintSuccess(fmt.Sprintf("Merged and pushed %s", result.Branch))
	case !result.Changed:
		PrintSuccess("No changes after merge")
	default:
		PrintSuccess("Merge applied; changes left uncommitted")
	}
}

func init() {
	mergeCmd.Flags().String("target", "", "Branch to write the result to (default: current branch)")
	mergeCmd.Flags().Bool("no-push", false, "Apply the merge without committing, tagging or pushing")
	mergeCmd.Flags().Bool("dry-run", false, "Show the plan without changing anything")
}
