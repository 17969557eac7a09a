package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/creatorincome/wpup/internal/wporg"
)

// newWPOrgClient is replaced in tests.
var newWPOrgClient = wporg.NewClient

var checkWordPressOrgCmd = &cobra.Command{
	Use:   "check-wordpress-org <slug>",
	Short: "Print the latest WordPress.org release of a plugin as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rel, err := newWPOrgClient().Check(context.Background(), args[0])
		if err != nil {
			return err
		}
		return outputJSON(cmd.OutOrStdout(), rel)
	},
}
