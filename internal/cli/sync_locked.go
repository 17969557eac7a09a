package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/creatorincome/wpup/internal/engine"
)

var syncLockedCmd = &cobra.Command{
	Use:   "sync-locked",
	Short: "Restore locked paths from the base branch",
	Long: `Fetch the base branch and check out every locked path it holds into the
working tree, committing the result when it changed anything.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, _ := cmd.Flags().GetString("base")

		eng, cfg, err := newEngine()
		if err != nil {
			return err
		}
		if base == "" {
			base = cfg.BaseRef()
		}

		if err := eng.SyncLocked(context.Background(), &engine.SyncLockedRequest{Base: base}); err != nil {
			return err
		}
		PrintSuccess("Locked paths synced from " + base)
		return nil
	},
}

func init() {
	syncLockedCmd.Flags().String("base", "", "Ref to restore from, as <remote>/<branch> (default: WPUP_REMOTE/WPUP_BASE_BRANCH)")
}
