package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/creatorincome/wpup/internal/engine"
	"github.com/creatorincome/wpup/internal/release"
)

var downloadLicensedCmd = &cobra.Command{
	Use:   "download-licensed <url> <branch>",
	Short: "Commit a licensed release onto a branch",
	Long: `Download the archive at <url> (usually the download_url printed by
check-license), replace the content of <branch> with the plugin it holds and
commit, tag pro-v<version> and push. The version is read from the plugin
header.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		syncLocked, _ := cmd.Flags().GetBool("sync-locked")
		noPush, _ := cmd.Flags().GetBool("no-push")

		eng, _, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Import(context.Background(), &engine.ImportRequest{
			Branch:     args[1],
			URL:        args[0],
			TagPrefix:  release.ProTagPrefix,
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

func init() {
	downloadLicensedCmd.Flags().Bool("sync-locked", false, "Restore locked paths from the base branch first")
	downloadLicensedCmd.Flags().Bool("no-push", false, "Import without committing, tagging or pushing")
}
