package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/creatorincome/wpup/internal/engine"
	"github.com/creatorincome/wpup/internal/release"
)

var downloadWordPressCmd = &cobra.Command{
	Use:   "download-wordpress <slug> <version> <branch>",
	Short: "Commit a WordPress.org release onto a branch",
	Long: `Download <slug> at <version> from WordPress.org, replace the content of
<branch> with it and commit, tag free-v<version> and push.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug, ver, branch := args[0], args[1], args[2]
		syncLocked, _ := cmd.Flags().GetBool("sync-locked")
		noPush, _ := cmd.Flags().GetBool("no-push")

		eng, _, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Import(context.Background(), &engine.ImportRequest{
			Branch:     branch,
			URL:        newWPOrgClient().DownloadURL(slug, ver),
			Slug:       slug,
			Name:       slug,
			Version:    ver,
			TagPrefix:  release.FreeTagPrefix,
			SyncLocked: syncLocked,
			Push:       !noPush,
		})
		if err != nil {
			return err
		}
		printImportResult(result)
		return nil
	},
}

func printImportResult(result *engine.ImportResult) {
	PrintLabelValue("Branch", result.Branch)
	PrintLabelValue("Version", result.Version)
	switch {
	case result.Pushed:
		PrintLabelValue("Tag", result.Tag)
		PrintSuccess("Committed version " + result.Version + " to " + result.Branch)
	case !result.Changed:
		PrintSuccess("No changes for version " + result.Version)
	default:
		PrintSuccess("Release imported; changes left uncommitted")
	}
}

func init() {
	downloadWordPressCmd.Flags().Bool("sync-locked", false, "Restore locked paths from the base branch first")
	downloadWordPressCmd.Flags().Bool("no-push", false, "Import without committing, tagging or pushing")
}
